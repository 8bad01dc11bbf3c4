// Package risk turns concentration metrics, authority facts, and liquidity
// facts into category scores, an overall score, severity flags, and
// recommendations. All scoring policy lives in Config so thresholds are
// auditable in one place instead of scattered across call sites.
package risk

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete scoring policy: category weights, the overall
// composition, the flag rule table, and recommendation tiers.
type Config struct {
	Weights         Weights              `yaml:"weights"`
	OverallScale    float64              `yaml:"overall_scale"`
	GiniWeight      float64              `yaml:"gini_weight"`
	TopN            int                  `yaml:"top_n"`
	SocialNeutral   int                  `yaml:"social_neutral"`
	Security        SecurityConfig       `yaml:"security"`
	FlagRules       []FlagRule           `yaml:"flag_rules"`
	Recommendations RecommendationConfig `yaml:"recommendations"`
}

// Weights are the category weights in the overall score. They must sum to 1.
type Weights struct {
	Tokenomics float64 `yaml:"tokenomics"`
	Liquidity  float64 `yaml:"liquidity"`
	Security   float64 `yaml:"security"`
	Social     float64 `yaml:"social"`
}

// SecurityConfig controls the authority-based security score.
// TreatUpdateAuthorityAsMint enables the proxy heuristic: when the mint
// account itself was unreadable, a present update authority counts as mint
// capability. Reports surface when the proxy fired.
type SecurityConfig struct {
	MintPresentScore           int  `yaml:"mint_present_score"`
	MintAbsentScore            int  `yaml:"mint_absent_score"`
	TreatUpdateAuthorityAsMint bool `yaml:"treat_update_authority_as_mint"`
}

// FlagRule is one row of the declarative flag table: compare a named signal
// against a value and emit the message at the given severity when it
// matches.
type FlagRule struct {
	Signal   string  `yaml:"signal"`
	Op       string  `yaml:"op"`
	Value    float64 `yaml:"value"`
	Severity string  `yaml:"severity"`
	Message  string  `yaml:"message"`
}

// RecommendationConfig tiers guidance on the overall score. Always entries
// are appended regardless of tier.
type RecommendationConfig struct {
	HighMin   float64  `yaml:"high_min"`
	MediumMin float64  `yaml:"medium_min"`
	High      []string `yaml:"high"`
	Medium    []string `yaml:"medium"`
	Low       []string `yaml:"low"`
	Always    []string `yaml:"always"`
}

const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// Signals a flag rule may reference. Category scores appear under their
// category name; the rest are raw facts from the same evaluation.
var knownSignals = map[string]bool{
	"tokenomics":       true,
	"liquidity":        true,
	"security":         true,
	"social":           true,
	"overall":          true,
	"gini":             true,
	"top_n_percentage": true,
	"volume_24h":       true,
	"liquidity_usd":    true,
	"pool_count":       true,
	"mint_authority":   true,
	"freeze_authority": true,
}

var knownOps = map[string]bool{
	"gt": true, "gte": true, "lt": true, "lte": true, "eq": true,
}

// DefaultConfig returns the built-in scoring policy.
func DefaultConfig() *Config {
	return &Config{
		Weights: Weights{
			Tokenomics: 0.35,
			Liquidity:  0.30,
			Security:   0.20,
			Social:     0.15,
		},
		// 0.9*10 + 1.0 caps the unclamped overall at exactly 10.
		OverallScale:  0.9,
		GiniWeight:    1.0,
		TopN:          10,
		SocialNeutral: 5,
		Security: SecurityConfig{
			MintPresentScore:           6,
			MintAbsentScore:            2,
			TreatUpdateAuthorityAsMint: true,
		},
		FlagRules: []FlagRule{
			{Signal: "tokenomics", Op: "gte", Value: 8, Severity: SeverityCritical, Message: "high holder concentration"},
			{Signal: "volume_24h", Op: "lt", Value: 1000, Severity: SeverityCritical, Message: "low liquidity"},
			{Signal: "mint_authority", Op: "eq", Value: 1, Severity: SeverityWarning, Message: "mint authority present"},
			{Signal: "freeze_authority", Op: "eq", Value: 1, Severity: SeverityWarning, Message: "freeze authority present"},
		},
		Recommendations: RecommendationConfig{
			HighMin:   7,
			MediumMin: 4,
			High: []string{
				"Avoid large positions until risk factors improve",
				"Monitor on-chain flows for large holder movements",
			},
			Medium: []string{
				"Perform additional due diligence before taking exposure",
				"Watch liquidity depth for deterioration",
			},
			Low: []string{
				"Standard monitoring is sufficient",
			},
			Always: []string{
				"Verify LP tokens are locked or burned",
				"Verify update authority status before trusting metadata",
			},
		},
	}
}

// LoadConfig reads a policy file and overlays it on the defaults, so a
// partial file only overrides what it names. The merged policy is validated
// before use.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read risk config: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse risk config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid risk config %s: %w", path, err)
	}
	return config, nil
}

// Validate checks the policy for internally consistent values.
func (c *Config) Validate() error {
	sum := c.Weights.Tokenomics + c.Weights.Liquidity + c.Weights.Security + c.Weights.Social
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("category weights must sum to 1.0, got %.3f", sum)
	}
	for name, w := range map[string]float64{
		"tokenomics": c.Weights.Tokenomics,
		"liquidity":  c.Weights.Liquidity,
		"security":   c.Weights.Security,
		"social":     c.Weights.Social,
	} {
		if w < 0 {
			return fmt.Errorf("weight %s must be nonnegative, got %.3f", name, w)
		}
	}
	if c.OverallScale <= 0 || c.OverallScale > 1 {
		return fmt.Errorf("overall_scale must be in (0, 1], got %.3f", c.OverallScale)
	}
	if c.GiniWeight < 0 {
		return fmt.Errorf("gini_weight must be nonnegative, got %.3f", c.GiniWeight)
	}
	if c.OverallScale*10+c.GiniWeight > 10.0001 {
		return fmt.Errorf("overall_scale*10 + gini_weight must not exceed 10, got %.3f",
			c.OverallScale*10+c.GiniWeight)
	}
	if c.TopN < 1 {
		return fmt.Errorf("top_n must be at least 1, got %d", c.TopN)
	}
	if c.SocialNeutral < 0 || c.SocialNeutral > 10 {
		return fmt.Errorf("social_neutral must be in [0, 10], got %d", c.SocialNeutral)
	}
	if c.Security.MintPresentScore < 0 || c.Security.MintPresentScore > 10 {
		return fmt.Errorf("mint_present_score must be in [0, 10], got %d", c.Security.MintPresentScore)
	}
	if c.Security.MintAbsentScore < 0 || c.Security.MintAbsentScore > 10 {
		return fmt.Errorf("mint_absent_score must be in [0, 10], got %d", c.Security.MintAbsentScore)
	}
	for i, rule := range c.FlagRules {
		if !knownSignals[rule.Signal] {
			return fmt.Errorf("flag rule %d references unknown signal %q", i, rule.Signal)
		}
		if !knownOps[rule.Op] {
			return fmt.Errorf("flag rule %d uses unknown op %q", i, rule.Op)
		}
		if rule.Severity != SeverityCritical && rule.Severity != SeverityWarning {
			return fmt.Errorf("flag rule %d has severity %q, want %q or %q",
				i, rule.Severity, SeverityCritical, SeverityWarning)
		}
		if rule.Message == "" {
			return fmt.Errorf("flag rule %d has an empty message", i)
		}
	}
	if c.Recommendations.HighMin <= c.Recommendations.MediumMin {
		return fmt.Errorf("recommendation high_min (%.1f) must exceed medium_min (%.1f)",
			c.Recommendations.HighMin, c.Recommendations.MediumMin)
	}
	return nil
}

// Describe renders the active policy for operator inspection.
func (c *Config) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Risk Policy:\n")
	fmt.Fprintf(&b, "  Weights: tokenomics=%.2f liquidity=%.2f security=%.2f social=%.2f\n",
		c.Weights.Tokenomics, c.Weights.Liquidity, c.Weights.Security, c.Weights.Social)
	fmt.Fprintf(&b, "  Overall: scale=%.2f gini_weight=%.2f top_n=%d\n",
		c.OverallScale, c.GiniWeight, c.TopN)
	fmt.Fprintf(&b, "  Security: mint_present=%d mint_absent=%d update_authority_proxy=%t\n",
		c.Security.MintPresentScore, c.Security.MintAbsentScore,
		c.Security.TreatUpdateAuthorityAsMint)
	fmt.Fprintf(&b, "  Flag rules (%d):\n", len(c.FlagRules))
	for _, rule := range c.FlagRules {
		fmt.Fprintf(&b, "    [%s] %s %s %.0f -> %q\n",
			rule.Severity, rule.Signal, rule.Op, rule.Value, rule.Message)
	}
	fmt.Fprintf(&b, "  Recommendation tiers: high>=%.1f medium>=%.1f\n",
		c.Recommendations.HighMin, c.Recommendations.MediumMin)
	return b.String()
}
