package application

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tokensentry/tokensentry/internal/infrastructure/cache"
	"github.com/tokensentry/tokensentry/internal/infrastructure/db"
	"github.com/tokensentry/tokensentry/internal/infrastructure/httpclient"
	"github.com/tokensentry/tokensentry/internal/net/ratelimit"
	"github.com/tokensentry/tokensentry/internal/providers"
	"github.com/tokensentry/tokensentry/internal/report"
	"github.com/tokensentry/tokensentry/internal/risk"
)

// App is the assembled scanning stack. Both the server and the CLI
// build one of these and differ only in what they do with it.
type App struct {
	Config    *Config
	Cache     *cache.Manager
	Budget    *providers.BudgetGuard
	Providers *providers.Set
	Engine    *risk.Engine
	Assembler *report.Assembler
	DB        *db.Manager

	stopJanitor func()
}

// Instrumentation receives cache, fetch, and build-step observations
// from the stack. The server's metrics registry implements it; CLI
// runs pass nil.
type Instrumentation interface {
	ObserveCache(category string, hit bool)
	ObserveFetch(source string, ok bool)
	ObserveStep(step, result string, elapsed time.Duration)
}

// NewApp builds the stack from configuration.
func NewApp(config *Config, instr Instrumentation) (*App, error) {
	policy, err := config.RiskPolicy()
	if err != nil {
		return nil, err
	}
	engine := risk.NewEngine(policy)

	var store cache.Store
	var stopJanitor func()
	if config.Cache.RedisAddr != "" {
		store = cache.NewRedis(config.Cache.RedisAddr)
		log.Info().Str("addr", config.Cache.RedisAddr).Msg("fact cache backed by redis")
	} else {
		mem := cache.NewMemory()
		stopJanitor = mem.StartJanitor(time.Minute)
		store = mem
	}
	cacheManager := cache.NewManager(store)

	budget := providers.NewBudgetGuard()
	if config.Budgets.Enabled {
		for _, source := range []string{
			providers.SourceSupply,
			providers.SourceHolders,
			providers.SourceMetadata,
			providers.SourceLiquidity,
		} {
			limits := config.Budgets.limitsFor(source)
			budget.Register(source, limits.Hourly, limits.Daily, limits.Monthly)
		}
	}

	opts := providers.Options{
		RPCURL:         config.Sources.RPCURL,
		MarketURL:      config.Sources.MarketURL,
		MetaURL:        config.Sources.RegistryURL,
		HolderPageSize: config.Sources.HolderPageSize,
		Pool:           httpclient.NewPool(config.ClientConfig()),
		Limiter:        ratelimit.NewLimiter(config.Sources.RateLimitRPS, config.Sources.RateLimitBurst),
		Budget:         budget,
		Cache:          cacheManager,
	}
	if instr != nil {
		opts.CacheObserver = instr.ObserveCache
		opts.FetchObserver = instr.ObserveFetch
	}
	set := providers.NewSet(opts)

	assembler := report.NewAssembler(report.Fetchers{
		Supply:    set.Supply,
		Holders:   set.Holders,
		Metadata:  set.Metadata,
		Liquidity: set.Liquidity,
	}, engine, config.FetchTimeout())
	if instr != nil {
		assembler.OnStep(instr.ObserveStep)
	}

	database, err := db.NewManager(config.DatabaseConfig())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	return &App{
		Config:      config,
		Cache:       cacheManager,
		Budget:      budget,
		Providers:   set,
		Engine:      engine,
		Assembler:   assembler,
		DB:          database,
		stopJanitor: stopJanitor,
	}, nil
}

// Close releases held resources.
func (a *App) Close() error {
	if a.stopJanitor != nil {
		a.stopJanitor()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
