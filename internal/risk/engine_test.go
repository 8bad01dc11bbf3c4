package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokensentry/tokensentry/internal/domain"
)

func addr(s string) *string { return &s }

func TestScore_StrongRiskSignals(t *testing.T) {
	engine := NewEngine(nil)

	in := Input{
		Concentration: domain.ConcentrationMetrics{
			Gini:           0.95,
			TopNPercentage: 95,
			AverageBalance: 1_000_000,
		},
		Metadata: domain.TokenMetadata{
			MintAuthority: addr("Mint1111111111111111111111111111111111111111"),
			MintParsed:    true,
		},
		Liquidity: domain.LiquidityInfo{Volume24h: 500},
	}

	sc := engine.Score(in)

	assert.Equal(t, 10, sc.Categories.Tokenomics, "95%% concentration should max tokenomics risk")
	assert.Equal(t, 10, sc.Categories.Liquidity, "$500 daily volume should max liquidity risk")
	assert.Equal(t, 6, sc.Categories.Security, "present mint authority should score the high baseline")
	assert.Greater(t, sc.Overall, 8.0, "strong risk signals should push overall high")
	assert.LessOrEqual(t, sc.Overall, 10.0)
	assert.True(t, sc.MintCapability)
	assert.False(t, sc.MintProxyApplied)
}

func TestScore_QuietToken(t *testing.T) {
	engine := NewEngine(nil)

	in := Input{
		Concentration: domain.ConcentrationMetrics{Gini: 0.12, TopNPercentage: 14},
		Metadata:      domain.TokenMetadata{MintParsed: true},
		Liquidity:     domain.LiquidityInfo{Volume24h: 250_000, LiquidityUSD: 500_000},
	}

	sc := engine.Score(in)

	assert.Equal(t, 1, sc.Categories.Tokenomics)
	assert.Equal(t, 0, sc.Categories.Liquidity, "deep volume should zero out liquidity risk")
	assert.Equal(t, 2, sc.Categories.Security, "revoked authorities should score the low baseline")
	assert.Less(t, sc.Overall, 4.0, "quiet token should land in the low tier")
}

func TestScore_TokenomicsMapping(t *testing.T) {
	engine := NewEngine(nil)

	testCases := []struct {
		topNPct float64
		want    int
	}{
		{0, 0},
		{4.9, 0},
		{34, 3},
		{85, 9},
		{100, 10},
		{250, 10}, // inconsistent source data sums above supply; clamp holds
	}
	for _, tc := range testCases {
		sc := engine.Score(Input{
			Concentration: domain.ConcentrationMetrics{TopNPercentage: tc.topNPct},
		})
		assert.Equal(t, tc.want, sc.Categories.Tokenomics, "topN=%.1f", tc.topNPct)
	}
}

func TestScore_LiquidityMapping(t *testing.T) {
	engine := NewEngine(nil)

	testCases := []struct {
		volume float64
		want   int
	}{
		{0, 10},
		{-1, 10}, // unknown volume is neutralized to zero upstream
		{999, 10},
		{5_000, 9},
		{50_000, 5},
		{100_000, 0},
		{10_000_000, 0},
	}
	for _, tc := range testCases {
		sc := engine.Score(Input{Liquidity: domain.LiquidityInfo{Volume24h: tc.volume}})
		assert.Equal(t, tc.want, sc.Categories.Liquidity, "volume=%.0f", tc.volume)
	}
}

func TestScore_SecurityAuthorities(t *testing.T) {
	engine := NewEngine(nil)

	present := engine.Score(Input{Metadata: domain.TokenMetadata{
		MintAuthority: addr("Mint1111111111111111111111111111111111111111"),
		MintParsed:    true,
	}})
	assert.Equal(t, 6, present.Categories.Security)
	assert.True(t, present.MintCapability)

	absent := engine.Score(Input{Metadata: domain.TokenMetadata{MintParsed: true}})
	assert.Equal(t, 2, absent.Categories.Security)
	assert.False(t, absent.MintCapability)
}

func TestScore_UpdateAuthorityProxy(t *testing.T) {
	engine := NewEngine(nil)

	// Mint account unreadable, only off-chain metadata available: a present
	// update authority stands in for mint capability.
	proxied := engine.Score(Input{Metadata: domain.TokenMetadata{
		MintParsed:      false,
		UpdateAuthority: addr("Upd11111111111111111111111111111111111111111"),
	}})
	assert.Equal(t, 6, proxied.Categories.Security)
	assert.True(t, proxied.MintCapability)
	assert.True(t, proxied.MintProxyApplied)

	// Same facts with the heuristic disabled.
	config := DefaultConfig()
	config.Security.TreatUpdateAuthorityAsMint = false
	strict := NewEngine(config).Score(Input{Metadata: domain.TokenMetadata{
		MintParsed:      false,
		UpdateAuthority: addr("Upd11111111111111111111111111111111111111111"),
	}})
	assert.Equal(t, 2, strict.Categories.Security)
	assert.False(t, strict.MintProxyApplied)

	// A readable mint account with no mint authority is revoked, not
	// unknown: the proxy must not fire.
	revoked := engine.Score(Input{Metadata: domain.TokenMetadata{
		MintParsed:      true,
		UpdateAuthority: addr("Upd11111111111111111111111111111111111111111"),
	}})
	assert.Equal(t, 2, revoked.Categories.Security)
	assert.False(t, revoked.MintProxyApplied)
}

func TestScore_MonotonicInConcentration(t *testing.T) {
	engine := NewEngine(nil)

	var last float64 = -1
	for _, pct := range []float64{0, 10, 25, 40, 60, 80, 95, 100} {
		sc := engine.Score(Input{
			Concentration: domain.ConcentrationMetrics{TopNPercentage: pct},
		})
		assert.GreaterOrEqual(t, sc.Overall, last, "overall must not drop as topN rises (pct=%.0f)", pct)
		last = sc.Overall
	}

	last = -1
	for _, gini := range []float64{0, 0.2, 0.5, 0.8, 1.0} {
		sc := engine.Score(Input{
			Concentration: domain.ConcentrationMetrics{Gini: gini},
		})
		assert.GreaterOrEqual(t, sc.Overall, last, "overall must not drop as gini rises (g=%.1f)", gini)
		last = sc.Overall
	}
}

func TestScore_MonotonicInVolume(t *testing.T) {
	engine := NewEngine(nil)

	last := 11.0
	for _, volume := range []float64{0, 1_000, 10_000, 50_000, 100_000, 1_000_000} {
		sc := engine.Score(Input{Liquidity: domain.LiquidityInfo{Volume24h: volume}})
		assert.LessOrEqual(t, sc.Overall, last, "overall must not rise with more volume (v=%.0f)", volume)
		last = sc.Overall
	}
}

func TestScore_MintStrictlyRiskier(t *testing.T) {
	engine := NewEngine(nil)

	// Even at the risk ceiling for every other signal the mint authority
	// must still separate the two scores.
	extreme := domain.ConcentrationMetrics{Gini: 1.0, TopNPercentage: 100}
	flood := domain.LiquidityInfo{Volume24h: 0}

	withMint := engine.Score(Input{
		Concentration: extreme,
		Liquidity:     flood,
		Metadata: domain.TokenMetadata{
			MintAuthority: addr("Mint1111111111111111111111111111111111111111"),
			MintParsed:    true,
		},
	})
	withoutMint := engine.Score(Input{
		Concentration: extreme,
		Liquidity:     flood,
		Metadata:      domain.TokenMetadata{MintParsed: true},
	})

	assert.Greater(t, withMint.Overall, withoutMint.Overall,
		"mint capability must strictly raise the overall score")
	assert.LessOrEqual(t, withMint.Overall, 10.0)
}

func TestScore_EmptyInputIsNeutral(t *testing.T) {
	engine := NewEngine(nil)

	sc := engine.Score(Input{})

	assert.Equal(t, 0, sc.Categories.Tokenomics)
	assert.Equal(t, 10, sc.Categories.Liquidity, "no volume data reads as maximum liquidity risk")
	assert.Equal(t, 2, sc.Categories.Security)
	assert.Equal(t, 5, sc.Categories.Social)
	assert.GreaterOrEqual(t, sc.Overall, 0.0)
	assert.LessOrEqual(t, sc.Overall, 10.0)
}

func TestEvaluate_Deterministic(t *testing.T) {
	engine := NewEngine(nil)

	in := Input{
		Concentration: domain.ConcentrationMetrics{Gini: 0.6, TopNPercentage: 55, AverageBalance: 42},
		Metadata: domain.TokenMetadata{
			MintAuthority: addr("Mint1111111111111111111111111111111111111111"),
			MintParsed:    true,
		},
		Liquidity: domain.LiquidityInfo{Volume24h: 20_000},
	}

	first := engine.Evaluate(in)
	second := engine.Evaluate(in)
	require.Equal(t, first, second, "identical facts must produce identical assessments")
}
