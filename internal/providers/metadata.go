package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tokensentry/tokensentry/internal/domain"
)

// MetadataClient resolves a token's identity and authority set from two
// places: the mint account on the chain RPC (decimals, mint and freeze
// authority) and an off-chain token registry (name, symbol, update
// authority). Either leg may fail independently; the fetch only errors
// when both do. MintParsed records whether the on-chain leg succeeded so
// downstream scoring knows when the authorities are actually unknown
// rather than revoked.
type MetadataClient struct {
	guard   guard
	rpcURL  string
	metaURL string
}

func NewMetadataClient(opts Options) *MetadataClient {
	return &MetadataClient{
		guard:   newGuard(SourceMetadata, opts.RPCURL, opts),
		rpcURL:  opts.RPCURL,
		metaURL: strings.TrimSuffix(opts.MetaURL, "/"),
	}
}

// FetchMetadata returns the best metadata view both legs can produce.
func (c *MetadataClient) FetchMetadata(ctx context.Context, mint string) (domain.TokenMetadata, error) {
	var cached domain.TokenMetadata
	if c.guard.cached(mint, &cached) {
		return cached, nil
	}

	var meta domain.TokenMetadata
	err := c.guard.call(ctx, func(ctx context.Context) error {
		rpcErr := c.fetchMintAccount(ctx, mint, &meta)
		var regErr error
		if c.metaURL != "" {
			regErr = c.fetchRegistry(ctx, mint, &meta)
		}

		switch {
		case rpcErr != nil && c.metaURL == "":
			return rpcErr
		case rpcErr != nil && regErr != nil:
			return errors.Join(rpcErr, regErr)
		case rpcErr != nil:
			log.Debug().Str("mint", mint).Err(rpcErr).
				Msg("mint account unavailable, registry metadata only")
		case regErr != nil:
			log.Debug().Str("mint", mint).Err(regErr).
				Msg("token registry unavailable, mint account metadata only")
		}
		return nil
	})
	if err != nil {
		return domain.TokenMetadata{}, c.guard.fail(err)
	}

	c.guard.store(mint, meta)
	return meta, nil
}

// DefaultMetadata is the neutral fact for a failed fetch: nothing known,
// no authorities, mint account unread.
func (c *MetadataClient) DefaultMetadata() domain.TokenMetadata {
	return domain.TokenMetadata{}
}

func (c *MetadataClient) Health() HealthSnapshot { return c.guard.health.Snapshot() }

// fetchMintAccount reads the jsonParsed mint account and fills decimals
// and the on-chain authorities. A missing or non-mint account is a leg
// failure, not a parse success with empty fields.
func (c *MetadataClient) fetchMintAccount(ctx context.Context, mint string, meta *domain.TokenMetadata) error {
	var result struct {
		Value *struct {
			Data struct {
				Program string `json:"program"`
				Parsed  struct {
					Type string `json:"type"`
					Info struct {
						Decimals        int     `json:"decimals"`
						MintAuthority   *string `json:"mintAuthority"`
						FreezeAuthority *string `json:"freezeAuthority"`
						IsInitialized   bool    `json:"isInitialized"`
					} `json:"info"`
				} `json:"parsed"`
			} `json:"data"`
		} `json:"value"`
	}

	params := []any{mint, map[string]string{"encoding": "jsonParsed"}}
	if err := rpcCall(ctx, c.guard.pool, c.rpcURL, "getAccountInfo", params, &result); err != nil {
		return err
	}
	if result.Value == nil {
		return fmt.Errorf("mint account %s not found", mint)
	}
	if result.Value.Data.Parsed.Type != "mint" {
		return fmt.Errorf("account %s is not a mint (parsed type %q)", mint, result.Value.Data.Parsed.Type)
	}

	info := result.Value.Data.Parsed.Info
	meta.Decimals = info.Decimals
	meta.MintAuthority = info.MintAuthority
	meta.FreezeAuthority = info.FreezeAuthority
	meta.MintParsed = true
	return nil
}

// fetchRegistry fills name, symbol, and update authority from the
// off-chain token registry.
func (c *MetadataClient) fetchRegistry(ctx context.Context, mint string, meta *domain.TokenMetadata) error {
	var doc struct {
		Name            string  `json:"name"`
		Symbol          string  `json:"symbol"`
		UpdateAuthority *string `json:"updateAuthority"`
	}
	url := fmt.Sprintf("%s/tokens/%s", c.metaURL, mint)
	if err := c.guard.pool.GetJSON(ctx, url, &doc); err != nil {
		return err
	}

	meta.Name = doc.Name
	meta.Symbol = doc.Symbol
	meta.UpdateAuthority = doc.UpdateAuthority
	return nil
}
