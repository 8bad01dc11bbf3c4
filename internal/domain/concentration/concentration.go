// Package concentration computes holder-distribution statistics: Gini
// coefficient, top-N supply share, and average balance. All functions are
// pure and total: any well-typed input, including an empty list, yields a
// finite result without panicking.
package concentration

import (
	"sort"

	"github.com/tokensentry/tokensentry/internal/domain"
)

// Gini returns the Gini coefficient of the holder balances in [0, 1], where
// 0 is a perfectly equal distribution and values near 1 indicate a single
// dominant holder. With zero or one holders there is no inequality to
// measure and the result is 0.
//
// The sorted-cumulative formulation is used rather than the pairwise
// mean-absolute-difference: sort ascending, then
//
//	G = (2 * sum((i+1) * v_i)) / (n * sum(v)) - (n+1)/n
//
// which is O(n log n) and avoids accumulating pairwise rounding error. Note
// the n-holder maximum of this formulation is (n-1)/n, approaching 1 only in
// the limit.
func Gini(holders []domain.HolderBalance) float64 {
	n := len(holders)
	if n <= 1 {
		return 0
	}

	amounts := make([]float64, n)
	for i, h := range holders {
		amounts[i] = h.Amount
	}
	sort.Float64s(amounts)

	var total, weighted float64
	for i, v := range amounts {
		total += v
		weighted += float64(i+1) * v
	}
	if total <= 0 {
		return 0
	}

	gini := (2*weighted)/(float64(n)*total) - float64(n+1)/float64(n)
	if gini < 0 {
		return 0
	}
	if gini > 1 {
		return 1
	}
	return gini
}

// TopNPercentage returns the share of totalSupply held by the n largest
// holders, in [0, 100]. The denominator is the real total supply, not the
// sum of the sampled balances: the holder list is a bounded-size sample of
// the full holder set and its sum understates the denominator. A zero or
// unknown supply yields 0 rather than a division error.
func TopNPercentage(holders []domain.HolderBalance, totalSupply float64, n int) float64 {
	if totalSupply <= 0 || n <= 0 || len(holders) == 0 {
		return 0
	}

	sorted := make([]domain.HolderBalance, len(holders))
	copy(sorted, holders)
	domain.SortHoldersDesc(sorted)

	if n > len(sorted) {
		n = len(sorted)
	}
	var sum float64
	for _, h := range sorted[:n] {
		sum += h.Amount
	}
	return sum / totalSupply * 100
}

// AverageBalance returns the arithmetic mean of the holder balances, or 0
// for an empty list.
func AverageBalance(holders []domain.HolderBalance) float64 {
	if len(holders) == 0 {
		return 0
	}
	var sum float64
	for _, h := range holders {
		sum += h.Amount
	}
	return sum / float64(len(holders))
}

// Compute bundles the three statistics for a holder sample against the
// token's total supply, counting the top n holders for the share metric.
func Compute(holders []domain.HolderBalance, totalSupply float64, n int) domain.ConcentrationMetrics {
	return domain.ConcentrationMetrics{
		Gini:           Gini(holders),
		TopNPercentage: TopNPercentage(holders, totalSupply, n),
		AverageBalance: AverageBalance(holders),
	}
}
