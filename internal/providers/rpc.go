package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tokensentry/tokensentry/internal/infrastructure/httpclient"
)

// JSON-RPC 2.0 envelope shared by the chain-facing clients. Supply,
// holders, and metadata all speak this shape against the same endpoint.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// tokenAmount is the RPC representation of a token quantity. Amount is the
// raw integer as a decimal string; UIAmount is pre-scaled by decimals and
// may be absent on older nodes.
type tokenAmount struct {
	Amount         string   `json:"amount"`
	Decimals       int      `json:"decimals"`
	UIAmount       *float64 `json:"uiAmount"`
	UIAmountString string   `json:"uiAmountString"`
}

// rpcCall posts one request and decodes result into out. An error payload
// in the envelope is returned as *rpcError.
func rpcCall(ctx context.Context, pool *httpclient.Pool, url, method string, params []any, out interface{}) error {
	req := rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params}
	var resp rpcResponse
	if err := pool.PostJSON(ctx, url, req, &resp); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if out != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
	}
	return nil
}
