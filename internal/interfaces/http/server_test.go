package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokensentry/tokensentry/internal/domain"
	"github.com/tokensentry/tokensentry/internal/report"
)

const testMint = "So11111111111111111111111111111111111111112"

type stubSupply struct {
	info domain.SupplyInfo
	err  error
}

func (s stubSupply) FetchSupply(ctx context.Context, mint string) (domain.SupplyInfo, error) {
	return s.info, s.err
}
func (s stubSupply) DefaultSupply() domain.SupplyInfo { return domain.SupplyInfo{} }

type stubHolders struct {
	holders []domain.HolderBalance
	err     error
}

func (s stubHolders) FetchLargestHolders(ctx context.Context, mint string) ([]domain.HolderBalance, error) {
	return s.holders, s.err
}
func (s stubHolders) DefaultHolders() []domain.HolderBalance { return []domain.HolderBalance{} }

type stubMetadata struct {
	meta domain.TokenMetadata
	err  error
}

func (s stubMetadata) FetchMetadata(ctx context.Context, mint string) (domain.TokenMetadata, error) {
	return s.meta, s.err
}
func (s stubMetadata) DefaultMetadata() domain.TokenMetadata { return domain.TokenMetadata{} }

type stubLiquidity struct {
	info domain.LiquidityInfo
	err  error
}

func (s stubLiquidity) FetchLiquidity(ctx context.Context, mint string) (domain.LiquidityInfo, error) {
	return s.info, s.err
}
func (s stubLiquidity) DefaultLiquidity() domain.LiquidityInfo { return domain.LiquidityInfo{} }

func testFetchers() report.Fetchers {
	mintAuth := "MintAuth11111111111111111111111111111111111"
	return report.Fetchers{
		Supply: stubSupply{info: domain.SupplyInfo{TotalSupply: 1_000_000, Decimals: 6}},
		Holders: stubHolders{holders: []domain.HolderBalance{
			{Address: "Holder1111111111111111111111111111111111111", Amount: 400_000},
			{Address: "Holder2222222222222222222222222222222222222", Amount: 100_000},
			{Address: "Holder3333333333333333333333333333333333333", Amount: 50_000},
		}},
		Metadata: stubMetadata{meta: domain.TokenMetadata{
			Name:          "Test Token",
			Symbol:        "TEST",
			Decimals:      6,
			MintAuthority: &mintAuth,
			MintParsed:    true,
		}},
		Liquidity: stubLiquidity{info: domain.LiquidityInfo{
			Pools: []domain.PoolInfo{
				{Address: "Pool111", Dex: "raydium", QuoteToken: "USDC", LiquidityUSD: 100_000, Volume24h: 50_000},
			},
			Volume24h:    50_000,
			LiquidityUSD: 100_000,
		}},
	}
}

func newTestServer(t *testing.T, deps Deps) (*Server, *httptest.Server) {
	t.Helper()
	if deps.Assembler == nil {
		deps.Assembler = report.NewAssembler(testFetchers(), nil, 2*time.Second)
	}
	if deps.Version == "" {
		deps.Version = "test"
	}
	config := DefaultServerConfig()
	config.Port = 0

	s, err := NewServer(config, deps)
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return s, srv
}

func getJSON(t *testing.T, srv *httptest.Server, path string, out interface{}) *http.Response {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestServer_HealthEndpoint(t *testing.T) {
	_, srv := newTestServer(t, Deps{})

	var body map[string]interface{}
	resp := getJSON(t, srv, "/health", &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Len(t, resp.Header.Get("X-Request-ID"), 8)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestServer_ScanReturnsReport(t *testing.T) {
	_, srv := newTestServer(t, Deps{})

	var rep domain.RiskReport
	resp := getJSON(t, srv, "/api/v1/scan/"+testMint, &rep)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testMint, rep.Mint)
	assert.NotEmpty(t, rep.ID)
	assert.GreaterOrEqual(t, rep.Overall, 0.0)
	assert.LessOrEqual(t, rep.Overall, 10.0)
	assert.Contains(t, rep.Flags.Warnings, "mint authority present")
	assert.Empty(t, rep.Degraded)
	assert.Equal(t, 3, rep.Holders.TotalHolders)
}

func TestServer_ScanRejectsBadMint(t *testing.T) {
	_, srv := newTestServer(t, Deps{})

	var body map[string]string
	resp := getJSON(t, srv, "/api/v1/scan/not-a-mint", &body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestServer_ScanDegradesWhenSourceDown(t *testing.T) {
	fetchers := testFetchers()
	fetchers.Holders = stubHolders{err: errors.New("rpc down")}
	deps := Deps{Assembler: report.NewAssembler(fetchers, nil, 2*time.Second)}
	_, srv := newTestServer(t, deps)

	var rep domain.RiskReport
	resp := getJSON(t, srv, "/api/v1/scan/"+testMint, &rep)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"holders"}, rep.Degraded)
	assert.Equal(t, 0, rep.Holders.TotalHolders)
}

func TestServer_ReportsUnavailableWithoutStore(t *testing.T) {
	_, srv := newTestServer(t, Deps{})

	var body map[string]string
	resp := getJSON(t, srv, "/api/v1/reports", &body)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body["error"], "persistence")

	resp = getJSON(t, srv, "/api/v1/reports/"+testMint, &body)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_MintReportsValidatesFirst(t *testing.T) {
	_, srv := newTestServer(t, Deps{})

	var body map[string]string
	resp := getJSON(t, srv, "/api/v1/reports/nope", &body)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestServer_MetricsExposed(t *testing.T) {
	_, srv := newTestServer(t, Deps{})

	resp := getJSON(t, srv, "/api/v1/scan/"+testMint, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	metricsResp, err := srv.Client().Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()

	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, metricsResp.StatusCode)
	assert.Contains(t, string(body), "tokensentry_scans_total 1")
	assert.Contains(t, string(body), "tokensentry_overall_score")
}

func TestServer_NotFoundIsJSON(t *testing.T) {
	_, srv := newTestServer(t, Deps{})

	var body map[string]string
	resp := getJSON(t, srv, "/nope", &body)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, body["error"], "no route")
}

func TestServer_StreamBroadcastsReports(t *testing.T) {
	s, srv := newTestServer(t, Deps{})

	wsURL := strings.Replace(srv.URL, "http", "ws", 1) + "/ws"
	conn, dialResp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if dialResp != nil {
		dialResp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.Count() == 1 },
		time.Second, 10*time.Millisecond)

	resp := getJSON(t, srv, "/api/v1/scan/"+testMint, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var rep domain.RiskReport
	require.NoError(t, json.Unmarshal(msg, &rep))
	assert.Equal(t, testMint, rep.Mint)
}

func TestNewServer_RequiresAssembler(t *testing.T) {
	_, err := NewServer(DefaultServerConfig(), Deps{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assembler")
}

func TestNewServer_RejectsBusyPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	config := DefaultServerConfig()
	config.Port = ln.Addr().(*net.TCPAddr).Port

	deps := Deps{Assembler: report.NewAssembler(testFetchers(), nil, time.Second)}
	_, err = NewServer(config, deps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "busy")
}
