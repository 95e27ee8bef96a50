package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/mindshare-cli/internal/config"
	"github.com/sells-group/mindshare-cli/internal/fetcher"
	"github.com/sells-group/mindshare-cli/internal/harvest"
	"github.com/sells-group/mindshare-cli/internal/resilience"
	"github.com/sells-group/mindshare-cli/internal/wallchain"
)

var (
	harvestConcurrency   int
	harvestMaxPage       int
	harvestPeriods       []string
	harvestCompanies     []string
	harvestCompaniesFile string
	harvestStorePath     string
	harvestNoRunLog      bool
)

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Fetch every leaderboard page and merge new entries into the store",
	Long: "Discovers companies (or uses --companies), requests every period, sort direction and page " +
		"up to the page ceiling with bounded concurrency, drops accounts already stored, and writes " +
		"the merged result. Ctrl-C stops new requests and still writes what was collected.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := harvestContext(cmd.Context())
		defer stop()

		applyHarvestFlags(cfg)
		_, err := runHarvest(ctx, cfg, os.Stdout)
		return err
	},
}

// harvestContext is cancelled on SIGINT or SIGTERM, which stops submission
// and lets the harvester flush what it has.
func harvestContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

// runHarvest opens the stores, runs one harvest and prints its summary.
func runHarvest(ctx context.Context, c *config.Config, out io.Writer) (*harvest.Summary, error) {
	if err := c.Validate("harvest"); err != nil {
		return nil, err
	}
	hcfg, err := buildHarvestConfig(c)
	if err != nil {
		return nil, err
	}

	st, err := openRecordStore(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open record store")
	}
	defer st.Close() //nolint:errcheck

	client := newWallchainClient(c)

	var opts []harvest.Option
	if cb := newCircuitBreaker(c.Fetch); cb != nil {
		opts = append(opts, harvest.WithCircuitBreaker(cb))
	}
	if !harvestNoRunLog {
		rl, err := openRunLog(ctx, c.RunLog)
		if err != nil {
			zap.L().Warn("run log unavailable, continuing without it", zap.Error(err))
		} else {
			defer rl.Close() //nolint:errcheck
			opts = append(opts, harvest.WithRunLog(rl))
		}
	}

	summary, err := harvest.New(hcfg, st, client, client, opts...).Run(ctx)
	if summary != nil {
		formatSummary(out, summary)
	}
	return summary, err
}

func init() {
	harvestCmd.Flags().IntVar(&harvestConcurrency, "concurrency", 0, "max in-flight requests (default from config)")
	harvestCmd.Flags().IntVar(&harvestMaxPage, "max-page", 0, "page ceiling per company, period and direction (default from config)")
	harvestCmd.Flags().StringSliceVar(&harvestPeriods, "periods", nil, "periods to fetch: 30d, 7d, epoch-1, epoch-2 (default from config)")
	harvestCmd.Flags().StringSliceVar(&harvestCompanies, "companies", nil, "company ids to fetch instead of calling discovery")
	harvestCmd.Flags().StringVar(&harvestCompaniesFile, "companies-file", "", "YAML file listing company ids")
	harvestCmd.Flags().StringVar(&harvestStorePath, "store-path", "", "record store path for csv and sqlite drivers")
	harvestCmd.Flags().BoolVar(&harvestNoRunLog, "no-runlog", false, "do not record this run in the run log")
	rootCmd.AddCommand(harvestCmd)
}

// applyHarvestFlags overrides config values with any flags that were set.
func applyHarvestFlags(c *config.Config) {
	if harvestConcurrency > 0 {
		c.Harvest.Concurrency = harvestConcurrency
	}
	if harvestMaxPage > 0 {
		c.Source.MaxPage = harvestMaxPage
	}
	if len(harvestPeriods) > 0 {
		c.Source.Periods = harvestPeriods
	}
	if harvestCompaniesFile != "" {
		c.Source.CompaniesFile = harvestCompaniesFile
	}
	if harvestStorePath != "" {
		c.Store.Path = harvestStorePath
	}
}

// buildHarvestConfig resolves periods and the static company list. Explicit
// --companies win over a companies file; with neither, discovery is used.
func buildHarvestConfig(c *config.Config) (harvest.Config, error) {
	periods, err := c.Source.ParsedPeriods()
	if err != nil {
		return harvest.Config{}, err
	}

	companies := harvestCompanies
	if len(companies) == 0 && c.Source.CompaniesFile != "" {
		companies, err = wallchain.LoadCompaniesFile(c.Source.CompaniesFile)
		if err != nil {
			return harvest.Config{}, err
		}
	}

	retry := resilience.DefaultRetryConfig()
	if c.Source.DiscoveryAttempts > 0 {
		retry.MaxAttempts = c.Source.DiscoveryAttempts
	}

	return harvest.Config{
		Companies:    companies,
		Periods:      periods,
		MaxPage:      c.Source.MaxPage,
		Concurrency:  c.Harvest.Concurrency,
		FlushTimeout: c.Harvest.FlushTimeout(),
		Discovery:    retry,
	}, nil
}

func newWallchainClient(c *config.Config) *wallchain.Client {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:     c.Fetch.Timeout(),
		MaxAttempts: c.Fetch.MaxAttempts,
		RatePerSec:  c.Fetch.RatePerSec,
		Burst:       c.Fetch.Burst,
		MaxConns:    c.Harvest.Concurrency,
	})
	return wallchain.NewClient(f, wallchain.Options{
		BaseURL:  c.Source.BaseURL,
		PageSize: c.Source.PageSize,
		OrderBy:  c.Source.OrderBy,
		Headers:  c.Source.Headers,
	})
}

// newCircuitBreaker returns nil when the breaker is disabled.
func newCircuitBreaker(fc config.FetchConfig) *resilience.Breaker {
	if fc.CircuitFailureThreshold <= 0 {
		return nil
	}
	return resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: fc.CircuitFailureThreshold,
		ResetTimeout:     fc.CircuitReset(),
		OnStateChange: func(from, to resilience.BreakerState) {
			zap.L().Warn("circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// formatSummary writes a human-readable harvest summary to out.
func formatSummary(out io.Writer, s *harvest.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if s.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", s.RunID)
	}
	_, _ = fmt.Fprintf(w, "Status:\t%s\n", s.Status)
	_, _ = fmt.Fprintf(w, "Companies:\t%d\n", s.Companies)
	_, _ = fmt.Fprintf(w, "Tasks:\t%d of %d submitted\n", s.Submitted, s.TasksTotal)
	_, _ = fmt.Fprintf(w, "  Succeeded:\t%d\n", s.Stats.Succeeded)
	_, _ = fmt.Fprintf(w, "  Empty:\t%d\n", s.Stats.Empty)
	_, _ = fmt.Fprintf(w, "  Failed:\t%d\n", s.Stats.Failed)
	_, _ = fmt.Fprintf(w, "New records:\t%d\n", s.Stats.Records)
	_, _ = fmt.Fprintf(w, "Already stored:\t%d\n", s.Stats.Dropped)
	if s.Written {
		_, _ = fmt.Fprintf(w, "Store:\t%d -> %d records\n", s.RecordsPrior, s.RecordsTotal)
	} else {
		_, _ = fmt.Fprintf(w, "Store:\tunchanged (%d records)\n", s.RecordsPrior)
	}
	_, _ = fmt.Fprintf(w, "Elapsed:\t%s\n", s.Elapsed.Round(time.Millisecond))
	_ = w.Flush()
}
