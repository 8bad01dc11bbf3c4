package risk

import (
	"math"

	"github.com/tokensentry/tokensentry/internal/domain"
)

// Input bundles the facts one evaluation consumes. Zero values are the
// neutral defaults, so an absent fact scores as its documented fallback
// instead of failing the evaluation.
type Input struct {
	Concentration domain.ConcentrationMetrics
	Metadata      domain.TokenMetadata
	Liquidity     domain.LiquidityInfo
}

// Scorecard carries the category scores, the overall score, and the signal
// snapshot the flag table evaluates against.
type Scorecard struct {
	Overall          float64
	Categories       domain.CategoryScores
	Signals          map[string]float64
	MintCapability   bool
	MintProxyApplied bool
}

// Assessment is a Scorecard plus the derived flags and recommendations.
type Assessment struct {
	Scorecard
	Flags           domain.ReportFlags
	Recommendations []string
}

// Engine scores tokens against a policy. Evaluation is purely derivational:
// no I/O, no clock, no randomness, so identical inputs always produce
// identical assessments.
type Engine struct {
	config *Config
}

// NewEngine returns an engine for the given policy. A nil config selects
// the built-in defaults.
func NewEngine(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{config: config}
}

// Config exposes the active policy.
func (e *Engine) Config() *Config { return e.config }

// Evaluate runs the full chain: category scores, overall score, flags,
// recommendations.
func (e *Engine) Evaluate(in Input) Assessment {
	sc := e.Score(in)
	return Assessment{
		Scorecard:       sc,
		Flags:           e.Flags(sc),
		Recommendations: e.Recommendations(sc),
	}
}

// Score derives the category scores and the overall score from the input
// facts. Overall is monotonic non-decreasing in top-N share and Gini,
// non-increasing in 24h volume, and strictly higher with mint capability
// present than absent, all else equal.
func (e *Engine) Score(in Input) Scorecard {
	tokenomics := e.scoreTokenomics(in.Concentration.TopNPercentage)
	liquidity := e.scoreLiquidity(in.Liquidity.Volume24h)
	security, mintCap, proxied := e.scoreSecurity(in.Metadata)
	social := clampCategory(e.config.SocialNeutral)

	categories := domain.CategoryScores{
		Tokenomics: tokenomics,
		Liquidity:  liquidity,
		Security:   security,
		Social:     social,
	}

	weighted := e.config.Weights.Tokenomics*float64(tokenomics) +
		e.config.Weights.Liquidity*float64(liquidity) +
		e.config.Weights.Security*float64(security) +
		e.config.Weights.Social*float64(social)
	overall := e.config.OverallScale*weighted + e.config.GiniWeight*in.Concentration.Gini
	overall = math.Min(10, math.Max(0, overall))

	signals := map[string]float64{
		"tokenomics":       float64(tokenomics),
		"liquidity":        float64(liquidity),
		"security":         float64(security),
		"social":           float64(social),
		"overall":          overall,
		"gini":             in.Concentration.Gini,
		"top_n_percentage": in.Concentration.TopNPercentage,
		"volume_24h":       in.Liquidity.Volume24h,
		"liquidity_usd":    in.Liquidity.LiquidityUSD,
		"pool_count":       float64(len(in.Liquidity.Pools)),
		"mint_authority":   boolSignal(mintCap),
		"freeze_authority": boolSignal(in.Metadata.FreezeAuthority != nil),
	}

	return Scorecard{
		Overall:          overall,
		Categories:       categories,
		Signals:          signals,
		MintCapability:   mintCap,
		MintProxyApplied: proxied,
	}
}

// scoreTokenomics maps top-N concentration to [0, 10]: every ten percentage
// points of supply in the top holders adds a point of risk.
func (e *Engine) scoreTokenomics(topNPct float64) int {
	return clampCategory(int(math.Round(topNPct / 10)))
}

// scoreLiquidity maps 24h volume to [0, 10], inverted: every $10k of daily
// volume removes a point of risk. Zero or unknown volume scores the
// maximum.
func (e *Engine) scoreLiquidity(volume24h float64) int {
	if volume24h <= 0 {
		return 10
	}
	relief := math.Min(10, math.Round(volume24h/10000))
	return clampCategory(10 - int(relief))
}

// scoreSecurity scores authority permissions. Mint capability dominates:
// whoever can mint can dilute every holder. When the mint account was
// unreadable and the policy allows it, a present update authority stands in
// for the capability signal; proxyApplied reports that substitution.
func (e *Engine) scoreSecurity(meta domain.TokenMetadata) (score int, mintCapability, proxyApplied bool) {
	mintCapability = meta.MintAuthority != nil
	if !mintCapability && !meta.MintParsed &&
		meta.UpdateAuthority != nil && e.config.Security.TreatUpdateAuthorityAsMint {
		mintCapability = true
		proxyApplied = true
	}
	if mintCapability {
		return clampCategory(e.config.Security.MintPresentScore), mintCapability, proxyApplied
	}
	return clampCategory(e.config.Security.MintAbsentScore), mintCapability, proxyApplied
}

func clampCategory(v int) int {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}

func boolSignal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
