package providers

import (
	"context"
	"fmt"
	"math"

	"github.com/tokensentry/tokensentry/internal/domain"
)

// SupplyClient fetches a token's total supply over the chain RPC.
type SupplyClient struct {
	guard guard
	url   string
}

func NewSupplyClient(opts Options) *SupplyClient {
	return &SupplyClient{
		guard: newGuard(SourceSupply, opts.RPCURL, opts),
		url:   opts.RPCURL,
	}
}

// FetchSupply returns the circulating supply in UI units along with the
// mint's decimal count. Failures come back as domain.SourceError.
func (c *SupplyClient) FetchSupply(ctx context.Context, mint string) (domain.SupplyInfo, error) {
	var cached domain.SupplyInfo
	if c.guard.cached(mint, &cached) {
		return cached, nil
	}

	var result struct {
		Value tokenAmount `json:"value"`
	}
	err := c.guard.call(ctx, func(ctx context.Context) error {
		return rpcCall(ctx, c.guard.pool, c.url, "getTokenSupply", []any{mint}, &result)
	})
	if err != nil {
		return domain.SupplyInfo{}, c.guard.fail(err)
	}

	info, err := normalizeSupply(result.Value)
	if err != nil {
		c.guard.health.RecordFailure(err)
		return domain.SupplyInfo{}, c.guard.fail(err)
	}

	c.guard.store(mint, info)
	return info, nil
}

// DefaultSupply is the neutral fact substituted when the fetch fails:
// zero supply, which the concentration math treats as "unknown" rather
// than dividing through.
func (c *SupplyClient) DefaultSupply() domain.SupplyInfo {
	return domain.SupplyInfo{}
}

func (c *SupplyClient) Health() HealthSnapshot { return c.guard.health.Snapshot() }

// normalizeSupply converts the RPC token amount into UI units, preferring
// the node's pre-scaled value and falling back to scaling the raw string.
func normalizeSupply(v tokenAmount) (domain.SupplyInfo, error) {
	total, err := uiUnits(v)
	if err != nil {
		return domain.SupplyInfo{}, err
	}
	if total < 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return domain.SupplyInfo{}, fmt.Errorf("supply out of range: %v", total)
	}
	return domain.SupplyInfo{TotalSupply: total, Decimals: v.Decimals}, nil
}
