// Package domain defines the normalized facts, derived metrics, and report
// shapes shared by the fetch, scoring, and serving layers. Fact types carry
// only what the engine needs; upstream wire formats stay in the provider
// layer.
package domain

import (
	"sort"
	"time"
)

// HolderBalance is one account's balance of the analyzed token. Amounts are
// UI amounts (decimal-adjusted), never raw lamport-style integers.
type HolderBalance struct {
	Address string  `json:"address"`
	Amount  float64 `json:"amount"`
}

// SupplyInfo is the total circulating supply of the token. Zero is a valid
// value for a freshly created or fully burned mint.
type SupplyInfo struct {
	TotalSupply float64 `json:"total_supply"`
	Decimals    int     `json:"decimals"`
}

// TokenMetadata carries the token's identity and privileged authorities.
// Authority pointers are nil when the authority has been revoked or was
// never set. MintParsed records whether the mint account itself was
// readable; when false the authority fields are unknown rather than absent.
type TokenMetadata struct {
	Name            string  `json:"name"`
	Symbol          string  `json:"symbol"`
	Decimals        int     `json:"decimals"`
	MintAuthority   *string `json:"mint_authority"`
	FreezeAuthority *string `json:"freeze_authority"`
	UpdateAuthority *string `json:"update_authority"`
	MintParsed      bool    `json:"mint_parsed"`
}

// PoolInfo describes one liquidity venue for the token.
type PoolInfo struct {
	Address      string  `json:"address"`
	Dex          string  `json:"dex"`
	QuoteToken   string  `json:"quote_token"`
	LiquidityUSD float64 `json:"liquidity_usd"`
	Volume24h    float64 `json:"volume_24h"`
}

// LiquidityInfo aggregates the token's tradeable depth and 24h activity
// across all discovered pools.
type LiquidityInfo struct {
	Pools        []PoolInfo `json:"pools"`
	Volume24h    float64    `json:"volume_24h"`
	LiquidityUSD float64    `json:"liquidity_usd"`
}

// ConcentrationMetrics are the derived distribution statistics. They are
// recomputed fresh for every report; nothing caches them.
type ConcentrationMetrics struct {
	Gini           float64 `json:"gini_coefficient"`
	TopNPercentage float64 `json:"top_n_percentage"`
	AverageBalance float64 `json:"average_balance"`
}

// CategoryScores are the per-category risk scores, each clamped to the
// closed integer range [0, 10]. Higher means riskier.
type CategoryScores struct {
	Tokenomics int `json:"tokenomics"`
	Liquidity  int `json:"liquidity"`
	Security   int `json:"security"`
	Social     int `json:"social"`
}

// ReportFlags split human-readable findings by severity.
type ReportFlags struct {
	Critical []string `json:"critical"`
	Warnings []string `json:"warnings"`
}

// HolderSection is the holder-distribution portion of a report.
type HolderSection struct {
	TotalHolders  int                  `json:"total_holders"`
	TopHolders    []HolderBalance      `json:"top_holders"`
	Concentration ConcentrationMetrics `json:"concentration"`
}

// LiquiditySection is the liquidity portion of a report.
type LiquiditySection struct {
	PoolCount    int        `json:"pool_count"`
	Volume24h    float64    `json:"volume_24h"`
	LiquidityUSD float64    `json:"liquidity_usd"`
	Pools        []PoolInfo `json:"pools,omitempty"`
}

// AuditSection records the authority facts the security score was derived
// from. MintProxyHeuristic is true when a present update authority was
// counted as mint capability because the mint account was unreadable.
type AuditSection struct {
	MintAuthority      *string `json:"mint_authority"`
	FreezeAuthority    *string `json:"freeze_authority"`
	UpdateAuthority    *string `json:"update_authority"`
	MintRevoked        bool    `json:"mint_revoked"`
	FreezeRevoked      bool    `json:"freeze_revoked"`
	MintProxyHeuristic bool    `json:"mint_proxy_heuristic"`
}

// RiskReport is the terminal artifact of one analysis request. It has no
// persisted identity; it is built, returned, and discarded. Degraded names
// the fact sources that failed and were replaced by their defaults.
type RiskReport struct {
	ID              string           `json:"id"`
	Mint            string           `json:"mint"`
	Overall         float64          `json:"overall"`
	Categories      CategoryScores   `json:"categories"`
	Flags           ReportFlags      `json:"flags"`
	Recommendations []string         `json:"recommendations"`
	Holders         HolderSection    `json:"holders"`
	Liquidity       LiquiditySection `json:"liquidity"`
	Audit           AuditSection     `json:"audit"`
	Degraded        []string         `json:"degraded,omitempty"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// SortHoldersDesc orders holders by amount, largest first, with address as
// the tiebreak so equal balances sort deterministically.
func SortHoldersDesc(holders []HolderBalance) {
	sort.Slice(holders, func(i, j int) bool {
		if holders[i].Amount != holders[j].Amount {
			return holders[i].Amount > holders[j].Amount
		}
		return holders[i].Address < holders[j].Address
	})
}
