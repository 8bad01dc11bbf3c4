package report

import (
	"fmt"
	"strings"

	"github.com/tokensentry/tokensentry/internal/domain"
)

// RiskLabel buckets an overall score for display, mirroring the default
// recommendation tiers.
func RiskLabel(overall float64) string {
	switch {
	case overall >= 7:
		return "HIGH RISK"
	case overall >= 4:
		return "MEDIUM RISK"
	default:
		return "LOW RISK"
	}
}

// FormatText renders a report for terminal output.
func FormatText(r *domain.RiskReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Risk Report   %s\n", r.Mint)
	fmt.Fprintf(&b, "Generated     %s  (id %s)\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05 MST"), shortID(r.ID))

	fmt.Fprintf(&b, "Overall       %.1f / 10  %s\n", r.Overall, RiskLabel(r.Overall))
	fmt.Fprintf(&b, "Categories    tokenomics %d   liquidity %d   security %d   social %d\n",
		r.Categories.Tokenomics, r.Categories.Liquidity, r.Categories.Security, r.Categories.Social)

	if len(r.Flags.Critical) > 0 {
		b.WriteString("\nCritical\n")
		for _, f := range r.Flags.Critical {
			fmt.Fprintf(&b, "  ! %s\n", f)
		}
	}
	if len(r.Flags.Warnings) > 0 {
		b.WriteString("\nWarnings\n")
		for _, f := range r.Flags.Warnings {
			fmt.Fprintf(&b, "  * %s\n", f)
		}
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("\nRecommendations\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "  - %s\n", rec)
		}
	}

	c := r.Holders.Concentration
	fmt.Fprintf(&b, "\nHolders       %d sampled\n", r.Holders.TotalHolders)
	fmt.Fprintf(&b, "  gini %.3f   top-n share %.1f%%   avg balance %.2f\n", c.Gini, c.TopNPercentage, c.AverageBalance)
	for i, h := range r.Holders.TopHolders {
		if i == 5 {
			fmt.Fprintf(&b, "  ... %d more\n", len(r.Holders.TopHolders)-5)
			break
		}
		fmt.Fprintf(&b, "  %d. %-12s %20.2f\n", i+1, shortAddr(h.Address), h.Amount)
	}

	fmt.Fprintf(&b, "\nLiquidity     %d pools   $%.2f volume 24h   $%.2f depth\n",
		r.Liquidity.PoolCount, r.Liquidity.Volume24h, r.Liquidity.LiquidityUSD)

	fmt.Fprintf(&b, "Authorities   %s\n", authorityLine(r.Audit))

	if len(r.Degraded) > 0 {
		fmt.Fprintf(&b, "Degraded      %s (defaults substituted)\n", strings.Join(r.Degraded, ", "))
	}
	return b.String()
}

func authorityLine(a domain.AuditSection) string {
	parts := []string{
		"mint " + authorityState(a.MintAuthority, a.MintRevoked),
		"freeze " + authorityState(a.FreezeAuthority, a.FreezeRevoked),
	}
	if a.UpdateAuthority != nil {
		parts = append(parts, "update present")
	} else {
		parts = append(parts, "update none")
	}
	line := strings.Join(parts, "   ")
	if a.MintProxyHeuristic {
		line += "   [update authority proxied as mint]"
	}
	return line
}

func authorityState(authority *string, revoked bool) string {
	switch {
	case authority != nil:
		return "present"
	case revoked:
		return "revoked"
	default:
		return "unknown"
	}
}

func shortAddr(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:8] + ".." + addr[len(addr)-2:]
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
