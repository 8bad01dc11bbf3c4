package report

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tokensentry/tokensentry/internal/domain"
	"github.com/tokensentry/tokensentry/internal/domain/concentration"
	"github.com/tokensentry/tokensentry/internal/risk"
)

// DefaultFetchTimeout bounds each individual fact fetch. A slow source
// costs at most this much wall time before its default takes over.
const DefaultFetchTimeout = 8 * time.Second

// StepObserver is told how long each build step took and how it ended.
// The metrics layer hooks in here.
type StepObserver func(step, result string, elapsed time.Duration)

// Assembler builds risk reports from the four fact sources and a scoring
// engine.
type Assembler struct {
	fetchers     Fetchers
	engine       *risk.Engine
	fetchTimeout time.Duration
	observeStep  StepObserver
}

// NewAssembler wires fetchers to an engine. A nil engine gets the default
// policy; a non-positive timeout gets DefaultFetchTimeout.
func NewAssembler(fetchers Fetchers, engine *risk.Engine, fetchTimeout time.Duration) *Assembler {
	if engine == nil {
		engine = risk.NewEngine(nil)
	}
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	return &Assembler{
		fetchers:     fetchers,
		engine:       engine,
		fetchTimeout: fetchTimeout,
	}
}

// Engine exposes the scoring policy in use.
func (a *Assembler) Engine() *risk.Engine { return a.engine }

// OnStep registers an observer for build step timings.
func (a *Assembler) OnStep(obs StepObserver) { a.observeStep = obs }

func (a *Assembler) stepDone(step, result string, start time.Time) {
	if a.observeStep != nil {
		a.observeStep(step, result, time.Since(start))
	}
}

// BuildRiskReport produces a complete report for one mint.
//
// The four fetches run concurrently, each writing into its own slot with
// its own deadline. A failed fetch is not fatal: the source's default fact
// is substituted and the source is listed in Degraded. Only two things
// abort a build: an invalid mint, and facts that violate domain invariants
// (a negative balance or supply), which indicate a defect rather than an
// unavailable source.
func (a *Assembler) BuildRiskReport(ctx context.Context, mint string) (*domain.RiskReport, error) {
	start := time.Now()
	if err := domain.ValidateMint(mint); err != nil {
		a.stepDone("validate", "invalid", start)
		return nil, err
	}
	a.stepDone("validate", "ok", start)

	fetchStart := time.Now()
	var (
		supply     domain.SupplyInfo
		holders    []domain.HolderBalance
		meta       domain.TokenMetadata
		liq        domain.LiquidityInfo
		supplyErr  error
		holdersErr error
		metaErr    error
		liqErr     error
	)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		fctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
		defer cancel()
		supply, supplyErr = a.fetchers.Supply.FetchSupply(fctx, mint)
	}()
	go func() {
		defer wg.Done()
		fctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
		defer cancel()
		holders, holdersErr = a.fetchers.Holders.FetchLargestHolders(fctx, mint)
	}()
	go func() {
		defer wg.Done()
		fctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
		defer cancel()
		meta, metaErr = a.fetchers.Metadata.FetchMetadata(fctx, mint)
	}()
	go func() {
		defer wg.Done()
		fctx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
		defer cancel()
		liq, liqErr = a.fetchers.Liquidity.FetchLiquidity(fctx, mint)
	}()
	wg.Wait()

	var degraded []string
	if supplyErr != nil {
		degraded = append(degraded, degradeName(supplyErr, "supply"))
		logDegraded(mint, "supply", supplyErr)
		supply = a.fetchers.Supply.DefaultSupply()
	}
	if holdersErr != nil {
		degraded = append(degraded, degradeName(holdersErr, "holders"))
		logDegraded(mint, "holders", holdersErr)
		holders = a.fetchers.Holders.DefaultHolders()
	}
	if metaErr != nil {
		degraded = append(degraded, degradeName(metaErr, "metadata"))
		logDegraded(mint, "metadata", metaErr)
		meta = a.fetchers.Metadata.DefaultMetadata()
	}
	if liqErr != nil {
		degraded = append(degraded, degradeName(liqErr, "liquidity"))
		logDegraded(mint, "liquidity", liqErr)
		liq = a.fetchers.Liquidity.DefaultLiquidity()
	}
	sort.Strings(degraded)
	fetchResult := "ok"
	if len(degraded) > 0 {
		fetchResult = "degraded"
	}
	a.stepDone("fetch", fetchResult, fetchStart)

	computeStart := time.Now()
	if err := domain.CheckSupply(supply.TotalSupply); err != nil {
		a.stepDone("compute", "defect", computeStart)
		return nil, err
	}
	if err := domain.CheckHolders(holders); err != nil {
		a.stepDone("compute", "defect", computeStart)
		return nil, err
	}

	metrics := concentration.Compute(holders, supply.TotalSupply, a.engine.Config().TopN)
	assessment := a.engine.Evaluate(risk.Input{
		Concentration: metrics,
		Metadata:      meta,
		Liquidity:     liq,
	})
	a.stepDone("compute", "ok", computeStart)

	assembleStart := time.Now()
	top := make([]domain.HolderBalance, len(holders))
	copy(top, holders)
	domain.SortHoldersDesc(top)

	rep := &domain.RiskReport{
		ID:              uuid.NewString(),
		Mint:            mint,
		Overall:         assessment.Overall,
		Categories:      assessment.Categories,
		Flags:           assessment.Flags,
		Recommendations: assessment.Recommendations,
		Holders: domain.HolderSection{
			TotalHolders:  len(holders),
			TopHolders:    top,
			Concentration: metrics,
		},
		Liquidity: domain.LiquiditySection{
			PoolCount:    len(liq.Pools),
			Volume24h:    liq.Volume24h,
			LiquidityUSD: liq.LiquidityUSD,
			Pools:        liq.Pools,
		},
		Audit: domain.AuditSection{
			MintAuthority:      meta.MintAuthority,
			FreezeAuthority:    meta.FreezeAuthority,
			UpdateAuthority:    meta.UpdateAuthority,
			MintRevoked:        meta.MintParsed && meta.MintAuthority == nil,
			FreezeRevoked:      meta.MintParsed && meta.FreezeAuthority == nil,
			MintProxyHeuristic: assessment.MintProxyApplied,
		},
		Degraded:    degraded,
		GeneratedAt: time.Now().UTC(),
	}
	a.stepDone("assemble", "ok", assembleStart)

	log.Info().
		Str("mint", mint).
		Float64("overall", rep.Overall).
		Int("degraded", len(degraded)).
		Dur("elapsed", time.Since(start)).
		Msg("risk report assembled")
	return rep, nil
}

// degradeName prefers the source name the error carries over the slot the
// assembler was filling; for a well-behaved fetcher they agree.
func degradeName(err error, slot string) string {
	var src *domain.SourceError
	if errors.As(err, &src) && src.Source != "" {
		return src.Source
	}
	return slot
}

func logDegraded(mint, source string, err error) {
	log.Warn().
		Str("mint", mint).
		Str("source", source).
		Err(err).
		Msg("fact source failed, using default")
}
