package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/tokensentry/tokensentry/internal/domain"
)

// LiquidityClient fetches the token's pools and trading activity from a
// pairs-style market data endpoint. One response carries both depth and
// 24h volume, so liquidity is a single fetch like the other three facts.
type LiquidityClient struct {
	guard guard
	url   string
}

func NewLiquidityClient(opts Options) *LiquidityClient {
	return &LiquidityClient{
		guard: newGuard(SourceLiquidity, opts.MarketURL, opts),
		url:   strings.TrimSuffix(opts.MarketURL, "/"),
	}
}

// FetchLiquidity returns every discovered pool plus summed 24h volume and
// USD depth. A token with no pools is a valid empty fact, not an error.
func (c *LiquidityClient) FetchLiquidity(ctx context.Context, mint string) (domain.LiquidityInfo, error) {
	var cached domain.LiquidityInfo
	if c.guard.cached(mint, &cached) {
		return cached, nil
	}

	var doc pairsDocument
	err := c.guard.call(ctx, func(ctx context.Context) error {
		url := fmt.Sprintf("%s/latest/dex/tokens/%s", c.url, mint)
		return c.guard.pool.GetJSON(ctx, url, &doc)
	})
	if err != nil {
		return domain.LiquidityInfo{}, c.guard.fail(err)
	}

	info := normalizePairs(doc)
	c.guard.store(mint, info)
	return info, nil
}

// DefaultLiquidity is the neutral fact for a failed fetch: no pools and
// zero volume, which scores as fully illiquid.
func (c *LiquidityClient) DefaultLiquidity() domain.LiquidityInfo {
	return domain.LiquidityInfo{}
}

func (c *LiquidityClient) Health() HealthSnapshot { return c.guard.health.Snapshot() }

type pairsDocument struct {
	Pairs []struct {
		DexID       string `json:"dexId"`
		PairAddress string `json:"pairAddress"`
		QuoteToken  struct {
			Symbol string `json:"symbol"`
		} `json:"quoteToken"`
		Liquidity struct {
			USD float64 `json:"usd"`
		} `json:"liquidity"`
		Volume struct {
			H24 float64 `json:"h24"`
		} `json:"volume"`
	} `json:"pairs"`
}

func normalizePairs(doc pairsDocument) domain.LiquidityInfo {
	info := domain.LiquidityInfo{Pools: make([]domain.PoolInfo, 0, len(doc.Pairs))}
	for _, pair := range doc.Pairs {
		info.Pools = append(info.Pools, domain.PoolInfo{
			Address:      pair.PairAddress,
			Dex:          pair.DexID,
			QuoteToken:   pair.QuoteToken.Symbol,
			LiquidityUSD: pair.Liquidity.USD,
			Volume24h:    pair.Volume.H24,
		})
		info.Volume24h += pair.Volume.H24
		info.LiquidityUSD += pair.Liquidity.USD
	}
	return info
}
