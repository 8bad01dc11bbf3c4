package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tokensentry/tokensentry/internal/domain"
)

func TestFlags_HighConcentrationCritical(t *testing.T) {
	engine := NewEngine(nil)

	out := engine.Evaluate(Input{
		Concentration: domain.ConcentrationMetrics{TopNPercentage: 85},
		Liquidity:     domain.LiquidityInfo{Volume24h: 50_000},
		Metadata:      domain.TokenMetadata{MintParsed: true},
	})

	assert.Contains(t, out.Flags.Critical, "high holder concentration")
}

func TestFlags_LowVolumeCritical(t *testing.T) {
	engine := NewEngine(nil)

	out := engine.Evaluate(Input{
		Liquidity: domain.LiquidityInfo{Volume24h: 0},
		Metadata:  domain.TokenMetadata{MintParsed: true},
	})
	assert.Contains(t, out.Flags.Critical, "low liquidity")

	healthy := engine.Evaluate(Input{
		Liquidity: domain.LiquidityInfo{Volume24h: 5_000},
		Metadata:  domain.TokenMetadata{MintParsed: true},
	})
	assert.NotContains(t, healthy.Flags.Critical, "low liquidity",
		"$5k daily volume is above the low-liquidity line")
}

func TestFlags_MintAuthorityWarning(t *testing.T) {
	engine := NewEngine(nil)

	withMint := engine.Evaluate(Input{Metadata: domain.TokenMetadata{
		MintAuthority: addr("Mint1111111111111111111111111111111111111111"),
		MintParsed:    true,
	}})
	assert.Contains(t, withMint.Flags.Warnings, "mint authority present")

	revoked := engine.Evaluate(Input{Metadata: domain.TokenMetadata{MintParsed: true}})
	assert.NotContains(t, revoked.Flags.Warnings, "mint authority present")
}

func TestFlags_ProxyProvenance(t *testing.T) {
	engine := NewEngine(nil)

	out := engine.Evaluate(Input{Metadata: domain.TokenMetadata{
		MintParsed:      false,
		UpdateAuthority: addr("Upd11111111111111111111111111111111111111111"),
	}})

	assert.Contains(t, out.Flags.Warnings, "mint authority present")
	assert.Contains(t, out.Flags.Warnings, "update authority treated as mint capability",
		"the proxy substitution must be visible in the report")
}

func TestFlags_QuietTokenIsClean(t *testing.T) {
	engine := NewEngine(nil)

	out := engine.Evaluate(Input{
		Concentration: domain.ConcentrationMetrics{Gini: 0.1, TopNPercentage: 12},
		Metadata:      domain.TokenMetadata{MintParsed: true},
		Liquidity:     domain.LiquidityInfo{Volume24h: 400_000, LiquidityUSD: 1_000_000},
	})

	assert.Empty(t, out.Flags.Critical)
	assert.Empty(t, out.Flags.Warnings)
}

func TestFlags_CustomRuleTable(t *testing.T) {
	config := DefaultConfig()
	config.FlagRules = append(config.FlagRules, FlagRule{
		Signal:   "gini",
		Op:       "gte",
		Value:    0.8,
		Severity: SeverityCritical,
		Message:  "extreme distribution skew",
	})
	engine := NewEngine(config)

	out := engine.Evaluate(Input{
		Concentration: domain.ConcentrationMetrics{Gini: 0.92},
		Metadata:      domain.TokenMetadata{MintParsed: true},
		Liquidity:     domain.LiquidityInfo{Volume24h: 50_000},
	})

	assert.Contains(t, out.Flags.Critical, "extreme distribution skew")
}

func TestRecommendations_Tiers(t *testing.T) {
	engine := NewEngine(nil)

	testCases := []struct {
		name    string
		overall float64
		expect  string
	}{
		{"high tier", 8.2, "Avoid large positions until risk factors improve"},
		{"high boundary", 7.0, "Avoid large positions until risk factors improve"},
		{"medium tier", 5.5, "Perform additional due diligence before taking exposure"},
		{"medium boundary", 4.0, "Perform additional due diligence before taking exposure"},
		{"low tier", 2.1, "Standard monitoring is sufficient"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recs := engine.Recommendations(Scorecard{Overall: tc.overall})
			assert.Contains(t, recs, tc.expect)
			assert.Contains(t, recs, "Verify LP tokens are locked or burned",
				"LP-lock check is appended for every tier")
			assert.Contains(t, recs, "Verify update authority status before trusting metadata",
				"update-authority check is appended for every tier")
		})
	}
}
