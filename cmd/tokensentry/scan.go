package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tokensentry/tokensentry/internal/application"
	"github.com/tokensentry/tokensentry/internal/cli"
	"github.com/tokensentry/tokensentry/internal/domain"
	"github.com/tokensentry/tokensentry/internal/report"
)

func runScan(cmd *cobra.Command, args []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	topN, _ := cmd.Flags().GetInt("top-n")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	file, _ := cmd.Flags().GetString("file")

	app, err := application.NewApp(config, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	// Policy override happens before the first scan starts.
	if topN > 0 {
		app.Engine.Config().TopN = topN
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if file == "" {
		if len(args) != 1 {
			return fmt.Errorf("scan needs exactly one mint address, or --file for a batch")
		}
		rep, err := app.Assembler.BuildRiskReport(ctx, args[0])
		if err != nil {
			return err
		}
		return printReport(cmd.OutOrStdout(), rep, asJSON)
	}

	mode, _ := cmd.Flags().GetString("progress")
	return runBatch(ctx, cmd, app, file, asJSON, cli.ProgressMode(mode))
}

// runBatch scans a watchlist sequentially. Reports stream to stdout
// while the progress meter stays on stderr, so JSON output pipes clean.
func runBatch(ctx context.Context, cmd *cobra.Command, app *application.App, path string, asJSON bool, mode cli.ProgressMode) error {
	mints, err := readMintList(path)
	if err != nil {
		return err
	}
	if len(mints) == 0 {
		return fmt.Errorf("no mint addresses in %s", path)
	}

	tty := term.IsTerminal(int(os.Stderr.Fd()))
	meter := cli.NewMeter(os.Stderr, "scan", len(mints), mode, tty)
	out := cmd.OutOrStdout()

	var failed int
	for _, mint := range mints {
		rep, err := app.Assembler.BuildRiskReport(ctx, mint)
		if err != nil {
			failed++
			meter.Step(mint, false)
			log.Error().Err(err).Str("mint", mint).Msg("scan failed")
			if ctx.Err() != nil {
				break
			}
			continue
		}
		meter.Step(mint, true)
		if err := printReport(out, rep, asJSON); err != nil {
			return err
		}
	}
	meter.Finish()

	if failed > 0 {
		return fmt.Errorf("%d of %d scans failed", failed, len(mints))
	}
	return nil
}

func printReport(w io.Writer, rep *domain.RiskReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	_, err := fmt.Fprint(w, report.FormatText(rep))
	return err
}

// readMintList reads one mint per line, skipping blanks and # comments.
func readMintList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var mints []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		mints = append(mints, line)
	}
	return mints, scanner.Err()
}
