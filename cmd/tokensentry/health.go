package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tokensentry/tokensentry/internal/application"
	"github.com/tokensentry/tokensentry/internal/domain"
	"github.com/tokensentry/tokensentry/internal/providers"
)

// probeMint is wrapped SOL. Every mainnet-compatible endpoint can answer
// for it, so a failed probe blames the source, not the token.
const probeMint = "So11111111111111111111111111111111111111112"

type probeResult struct {
	Source  string `json:"source"`
	Healthy bool   `json:"healthy"`
	Latency string `json:"latency"`
	Error   string `json:"error,omitempty"`
}

type healthReport struct {
	Status    string        `json:"status"`
	CheckedAt time.Time     `json:"checked_at"`
	Mint      string        `json:"mint"`
	Sources   []probeResult `json:"sources"`
}

// runHealth fires one real fetch per configured source and reports
// whether each answered.
func runHealth(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	mint, _ := cmd.Flags().GetString("mint")
	if err := domain.ValidateMint(mint); err != nil {
		return err
	}

	app, err := application.NewApp(config, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	probes := []struct {
		source string
		fetch  func(context.Context, string) error
	}{
		{providers.SourceSupply, func(ctx context.Context, mint string) error {
			_, err := app.Providers.Supply.FetchSupply(ctx, mint)
			return err
		}},
		{providers.SourceHolders, func(ctx context.Context, mint string) error {
			_, err := app.Providers.Holders.FetchLargestHolders(ctx, mint)
			return err
		}},
		{providers.SourceMetadata, func(ctx context.Context, mint string) error {
			_, err := app.Providers.Metadata.FetchMetadata(ctx, mint)
			return err
		}},
		{providers.SourceLiquidity, func(ctx context.Context, mint string) error {
			_, err := app.Providers.Liquidity.FetchLiquidity(ctx, mint)
			return err
		}},
	}

	report := healthReport{Status: "ok", CheckedAt: time.Now().UTC(), Mint: mint}
	unhealthy := 0
	for _, probe := range probes {
		start := time.Now()
		err := probe.fetch(ctx, mint)
		result := probeResult{
			Source:  probe.source,
			Healthy: err == nil,
			Latency: time.Since(start).Round(time.Millisecond).String(),
		}
		if err != nil {
			result.Error = err.Error()
			unhealthy++
		}
		report.Sources = append(report.Sources, result)
	}
	if unhealthy > 0 {
		report.Status = "degraded"
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		out := cmd.OutOrStdout()
		for _, result := range report.Sources {
			mark := "ok  "
			if !result.Healthy {
				mark = "FAIL"
			}
			fmt.Fprintf(out, "%-10s %s %8s", result.Source, mark, result.Latency)
			if result.Error != "" {
				fmt.Fprintf(out, "  %s", result.Error)
			}
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%d of %d sources healthy\n", len(probes)-unhealthy, len(probes))
	}

	if unhealthy > 0 {
		return fmt.Errorf("%d of %d sources unhealthy", unhealthy, len(probes))
	}
	return nil
}
