// Package report assembles risk reports. It fans out to the four fact
// sources, degrades to documented defaults when a source fails, derives
// concentration metrics, runs the scoring engine, and folds everything
// into one RiskReport.
package report

import (
	"context"

	"github.com/tokensentry/tokensentry/internal/domain"
)

// The assembler consumes capabilities, not concrete clients. Each fetcher
// pairs its fetch with the neutral default substituted when the fetch
// fails; the default is part of the capability's contract, not a detail
// the assembler invents.

type SupplyFetcher interface {
	FetchSupply(ctx context.Context, mint string) (domain.SupplyInfo, error)
	DefaultSupply() domain.SupplyInfo
}

type HoldersFetcher interface {
	FetchLargestHolders(ctx context.Context, mint string) ([]domain.HolderBalance, error)
	DefaultHolders() []domain.HolderBalance
}

type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, mint string) (domain.TokenMetadata, error)
	DefaultMetadata() domain.TokenMetadata
}

type LiquidityFetcher interface {
	FetchLiquidity(ctx context.Context, mint string) (domain.LiquidityInfo, error)
	DefaultLiquidity() domain.LiquidityInfo
}

// Fetchers bundles one fetcher per fact source.
type Fetchers struct {
	Supply    SupplyFetcher
	Holders   HoldersFetcher
	Metadata  MetadataFetcher
	Liquidity LiquidityFetcher
}
