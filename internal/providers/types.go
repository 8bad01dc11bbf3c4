// Package providers implements the four fact-fetching capabilities the
// report assembler consumes: total supply, largest holders, token
// metadata/authorities, and liquidity. Each client normalizes its upstream
// wire format into the domain fact shapes; nothing past this package knows
// what the upstream JSON looks like.
//
// Every fetch runs under the same guard chain: call budget, per-host rate
// limit, circuit breaker, health accounting. Failures come back as
// domain.SourceError so the assembler can substitute the client's
// documented default.
package providers

import (
	"context"
	"net/url"
	"time"

	"github.com/tokensentry/tokensentry/infra/breakers"
	"github.com/tokensentry/tokensentry/internal/domain"
	"github.com/tokensentry/tokensentry/internal/infrastructure/cache"
	"github.com/tokensentry/tokensentry/internal/infrastructure/httpclient"
	"github.com/tokensentry/tokensentry/internal/net/ratelimit"
)

// Source names used for cache categories, budget accounting, degraded
// reporting, and metrics labels.
const (
	SourceSupply    = "supply"
	SourceHolders   = "holders"
	SourceMetadata  = "metadata"
	SourceLiquidity = "liquidity"
)

// Options wires the shared infrastructure into a provider set.
type Options struct {
	// RPCURL is the JSON-RPC endpoint serving supply, holder, and account
	// queries.
	RPCURL string
	// MarketURL is the pairs-style market data endpoint serving pools and
	// 24h volume.
	MarketURL string
	// MetaURL is the off-chain token metadata endpoint. Empty disables the
	// off-chain lookup and metadata comes from the mint account alone.
	MetaURL string
	// HolderPageSize bounds the largest-accounts sample. The upstream page
	// is capped at 20 either way.
	HolderPageSize int

	Pool    *httpclient.Pool
	Limiter *ratelimit.Limiter
	Budget  *BudgetGuard
	Cache   *cache.Manager

	// CacheObserver, when set, is told the outcome of every fact cache
	// lookup. The metrics layer hooks in here.
	CacheObserver func(category string, hit bool)
	// FetchObserver, when set, is told the outcome of every upstream
	// call attempt, including ones the budget guard refused.
	FetchObserver func(source string, ok bool)
}

// Set bundles one client per fact source.
type Set struct {
	Supply    *SupplyClient
	Holders   *HoldersClient
	Metadata  *MetadataClient
	Liquidity *LiquidityClient
}

// NewSet builds the four clients on the shared pool, limiter, budget, and
// cache. Each client keeps its own breaker and health tracker so one
// misbehaving source cannot trip the others.
func NewSet(opts Options) *Set {
	if opts.Pool == nil {
		opts.Pool = httpclient.NewPool(httpclient.DefaultConfig())
	}
	if opts.HolderPageSize <= 0 || opts.HolderPageSize > 20 {
		opts.HolderPageSize = 20
	}
	return &Set{
		Supply:    NewSupplyClient(opts),
		Holders:   NewHoldersClient(opts),
		Metadata:  NewMetadataClient(opts),
		Liquidity: NewLiquidityClient(opts),
	}
}

// Health snapshots every client for the health endpoint.
func (s *Set) Health() map[string]HealthSnapshot {
	return map[string]HealthSnapshot{
		SourceSupply:    s.Supply.Health(),
		SourceHolders:   s.Holders.Health(),
		SourceMetadata:  s.Metadata.Health(),
		SourceLiquidity: s.Liquidity.Health(),
	}
}

// BreakerStates reports each client's circuit state.
func (s *Set) BreakerStates() map[string]string {
	return map[string]string{
		SourceSupply:    s.Supply.guard.breaker.State(),
		SourceHolders:   s.Holders.guard.breaker.State(),
		SourceMetadata:  s.Metadata.guard.breaker.State(),
		SourceLiquidity: s.Liquidity.guard.breaker.State(),
	}
}

// guard is the shared per-client call chain.
type guard struct {
	name         string
	host         string
	pool         *httpclient.Pool
	limiter      *ratelimit.Limiter
	breaker      *breakers.Breaker
	budget       *BudgetGuard
	cache        *cache.Manager
	observe      func(category string, hit bool)
	observeFetch func(source string, ok bool)
	health       *Health
}

func newGuard(name, endpoint string, opts Options) guard {
	return guard{
		name:         name,
		host:         hostOf(endpoint),
		pool:         opts.Pool,
		limiter:      opts.Limiter,
		breaker:      breakers.New(name),
		budget:       opts.Budget,
		cache:        opts.Cache,
		observe:      opts.CacheObserver,
		observeFetch: opts.FetchObserver,
		health:       NewHealth(name),
	}
}

// call runs op under budget, rate limit, and breaker, recording the
// outcome in the client's health tracker and the fetch observer.
func (g *guard) call(ctx context.Context, op func(context.Context) error) error {
	if g.budget != nil {
		if err := g.budget.Consume(g.name, 1); err != nil {
			g.health.RecordFailure(err)
			g.noteFetch(false)
			return err
		}
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, g.host); err != nil {
			return err
		}
	}

	start := time.Now()
	_, err := g.breaker.Execute(func() (any, error) {
		return nil, op(ctx)
	})
	if err != nil {
		g.health.RecordFailure(err)
		g.noteFetch(false)
		return err
	}
	g.health.RecordSuccess(time.Since(start))
	g.noteFetch(true)
	return nil
}

func (g *guard) noteFetch(ok bool) {
	if g.observeFetch != nil {
		g.observeFetch(g.name, ok)
	}
}

// cached loads (category, mint) into out, reporting a hit.
func (g *guard) cached(mint string, out interface{}) bool {
	if g.cache == nil {
		return false
	}
	hit := g.cache.Get(g.name, mint, out)
	if g.observe != nil {
		g.observe(g.name, hit)
	}
	return hit
}

// store caches the freshly fetched fact.
func (g *guard) store(mint string, val interface{}) {
	if g.cache != nil {
		g.cache.Put(g.name, mint, val)
	}
}

func (g *guard) fail(err error) *domain.SourceError {
	return domain.NewSourceError(g.name, err)
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return endpoint
	}
	return u.Host
}
