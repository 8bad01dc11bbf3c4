package risk

import "github.com/tokensentry/tokensentry/internal/domain"

// Flags evaluates the policy's rule table against the scorecard signals.
// Severity and message come from the table, keeping every threshold in one
// auditable place. When the mint-capability proxy fired, a provenance
// warning names the substitution so the reader knows which authority was
// actually observed.
func (e *Engine) Flags(sc Scorecard) domain.ReportFlags {
	flags := domain.ReportFlags{
		Critical: []string{},
		Warnings: []string{},
	}
	for _, rule := range e.config.FlagRules {
		value, ok := sc.Signals[rule.Signal]
		if !ok {
			continue
		}
		if !ruleMatches(rule.Op, value, rule.Value) {
			continue
		}
		switch rule.Severity {
		case SeverityCritical:
			flags.Critical = append(flags.Critical, rule.Message)
		case SeverityWarning:
			flags.Warnings = append(flags.Warnings, rule.Message)
		}
	}
	if sc.MintProxyApplied {
		flags.Warnings = append(flags.Warnings, "update authority treated as mint capability")
	}
	return flags
}

func ruleMatches(op string, signal, threshold float64) bool {
	switch op {
	case "gt":
		return signal > threshold
	case "gte":
		return signal >= threshold
	case "lt":
		return signal < threshold
	case "lte":
		return signal <= threshold
	case "eq":
		return signal == threshold
	default:
		return false
	}
}

// Recommendations tiers guidance on the overall score and appends the
// unconditional items.
func (e *Engine) Recommendations(sc Scorecard) []string {
	tiers := e.config.Recommendations

	var recs []string
	switch {
	case sc.Overall >= tiers.HighMin:
		recs = append(recs, tiers.High...)
	case sc.Overall >= tiers.MediumMin:
		recs = append(recs, tiers.Medium...)
	default:
		recs = append(recs, tiers.Low...)
	}
	return append(recs, tiers.Always...)
}
