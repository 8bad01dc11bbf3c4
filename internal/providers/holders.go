package providers

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/tokensentry/tokensentry/internal/domain"
)

// HoldersClient fetches the largest token accounts for a mint. The node
// caps the page at 20 entries, which is the sample every concentration
// metric downstream works from.
type HoldersClient struct {
	guard    guard
	url      string
	pageSize int
}

func NewHoldersClient(opts Options) *HoldersClient {
	size := opts.HolderPageSize
	if size <= 0 || size > 20 {
		size = 20
	}
	return &HoldersClient{
		guard:    newGuard(SourceHolders, opts.RPCURL, opts),
		url:      opts.RPCURL,
		pageSize: size,
	}
}

// FetchLargestHolders returns up to pageSize holder balances in descending
// order of amount.
func (c *HoldersClient) FetchLargestHolders(ctx context.Context, mint string) ([]domain.HolderBalance, error) {
	var cached []domain.HolderBalance
	if c.guard.cached(mint, &cached) {
		return cached, nil
	}

	var result struct {
		Value []struct {
			Address string `json:"address"`
			tokenAmount
		} `json:"value"`
	}
	err := c.guard.call(ctx, func(ctx context.Context) error {
		return rpcCall(ctx, c.guard.pool, c.url, "getTokenLargestAccounts", []any{mint}, &result)
	})
	if err != nil {
		return nil, c.guard.fail(err)
	}

	holders := make([]domain.HolderBalance, 0, len(result.Value))
	for _, entry := range result.Value {
		amount, convErr := uiUnits(entry.tokenAmount)
		if convErr != nil {
			c.guard.health.RecordFailure(convErr)
			return nil, c.guard.fail(convErr)
		}
		holders = append(holders, domain.HolderBalance{
			Address: entry.Address,
			Amount:  amount,
		})
	}

	domain.SortHoldersDesc(holders)
	if len(holders) > c.pageSize {
		holders = holders[:c.pageSize]
	}

	c.guard.store(mint, holders)
	return holders, nil
}

// DefaultHolders is the empty sample used when the fetch fails. Empty is
// a first-class input downstream: metrics come out zero, never NaN.
func (c *HoldersClient) DefaultHolders() []domain.HolderBalance {
	return []domain.HolderBalance{}
}

func (c *HoldersClient) Health() HealthSnapshot { return c.guard.health.Snapshot() }

// uiUnits scales an RPC token amount into UI units.
func uiUnits(v tokenAmount) (float64, error) {
	if v.UIAmount != nil {
		return *v.UIAmount, nil
	}
	if v.Amount == "" {
		return 0, nil
	}
	raw, err := strconv.ParseFloat(v.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", v.Amount, err)
	}
	return raw / math.Pow10(v.Decimals), nil
}
