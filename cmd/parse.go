package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	csvsource "github.com/bnema/kmlx/internal/adapters/csv"
	errorlogtoml "github.com/bnema/kmlx/internal/adapters/errorlog/toml"
	"github.com/bnema/kmlx/internal/adapters/metrics/prom"
	summaryadapter "github.com/bnema/kmlx/internal/adapters/render/summary"
	"github.com/bnema/kmlx/internal/application"
	"github.com/bnema/kmlx/internal/domain"
	"github.com/bnema/kmlx/internal/logging"
	"github.com/bnema/kmlx/internal/ports"
	"github.com/spf13/cobra"
)

type parseOptions struct {
	files             []string
	output            string
	placementsPerFile int
	dryRun            bool
	stats             bool
	noProgress        bool
	metricsFile       string
	errorLog          string
}

var parseFlagBindings = map[string]string{
	keyParallel:          "parallel",
	keyBatch:             "batch",
	keyTimeout:           "timeout",
	keyPollInterval:      "poll-interval",
	keyMaxAttempts:       "max-attempts",
	keyNavigationTimeout: "navigation-timeout",
	keyBackend:           "backend",
	keyBrowserPath:       "browser-path",
	keyInstallBrowsers:   "install-browsers",
	keyIncludeComments:   "include-comments",
	keyStopOnError:       "stop-on-error",
}

func newParseCmd(app *app) *cobra.Command {
	opts := &parseOptions{}

	cmd := &cobra.Command{
		Use:   "parse [file.csv...]",
		Short: "Resolve saved-place CSV exports into KML",
		Long: "parse reads one or more saved-place CSV exports, resolves every place to coordinates and writes a KML document.\n" +
			"Places whose URL carries no coordinates are opened in a headless browser until the page reveals them.",
		Example: "  kmlx parse -f saved.csv -o trip.kml\n" +
			"  kmlx parse -f a.csv -f b.csv -o s3://maps/exports/trip.kml --placements-per-file 500",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(app.config, cmd.Flags(), parseFlagBindings); err != nil {
				return err
			}
			opts.files = append(opts.files, args...)
			return runParse(cmd, app, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&opts.files, "file", "f", nil, "CSV files to parse (repeatable)")
	flags.StringVarP(&opts.output, "output", "o", "", "Output KML file or s3://bucket/key.kml")
	flags.IntVar(&opts.placementsPerFile, "placements-per-file", 0, "Split the output into files of at most this many placemarks (0 keeps one file)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Read and classify the input and estimate the run time without resolving")
	flags.BoolVarP(&opts.stats, "stats", "s", false, "Print the time spent in each stage")
	flags.BoolVar(&opts.noProgress, "no-progress", false, "Report progress as log lines instead of a spinner")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file after the run")
	flags.StringVar(&opts.errorLog, "error-log", "", "Error log path (default <output>.errors.toml)")

	flags.IntP("parallel", "p", application.DefaultParallelism, "Browser sessions resolving places at once")
	flags.IntP("batch", "b", application.DefaultBatchSize, "Places per batch; each batch gets a fresh session pool")
	flags.DurationP("timeout", "t", application.DefaultItemTimeout, "How long to wait for a place page to reveal its coordinates")
	flags.Duration("poll-interval", application.DefaultPollInterval, "How often a place page is checked for coordinates")
	flags.Int("max-attempts", application.DefaultMaxAttempts, "Attempts per place before it is recorded as failed")
	flags.Duration("navigation-timeout", application.DefaultNavigationTimeout, "Page load timeout inside the browser")
	flags.String("backend", defaultBackendID, "Browser backend: auto (chromedp, falling back to playwright), chromedp or playwright")
	flags.String("browser-path", "", "Chrome executable for the chromedp backend")
	flags.Bool("install-browsers", false, "Download the playwright driver and WebKit before launching")
	flags.Bool("include-comments", false, "Append the CSV comment column to each description")
	flags.Bool("stop-on-error", false, "Stop at the first row error and write only the error log")

	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func runParse(cmd *cobra.Command, app *app, opts *parseOptions) error {
	if len(opts.files) == 0 {
		return errors.New("at least one CSV file is required (--file or positional)")
	}
	for _, file := range opts.files {
		if _, err := os.Stat(file); err != nil {
			return fmt.Errorf("input file %s: %w", file, err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewLogger("parse")

	target, err := newDocumentTarget(app.config, opts.output)
	if err != nil {
		return err
	}
	errorLogPath := opts.errorLog
	if errorLogPath == "" {
		errorLogPath = target.errorLogPath
	}
	errorLog, err := errorlogtoml.NewStore(errorLogPath)
	if err != nil {
		return err
	}

	backend, err := newSessionBackend(app.config)
	if err != nil {
		return err
	}

	metrics := prom.NewRecorder()
	clock := clockFunc(app.now)
	resolver := application.NewResolutionService(backend, metrics, clock, logging.NewLogger("resolver"))
	service := application.NewParseService(
		csvsource.NewSource(logging.NewLogger("csv")),
		resolver,
		target.store,
		errorLog,
		clock,
		logger,
	)

	req := application.ParseRequest{
		Files:             opts.files,
		OutputName:        target.name,
		PlacementsPerFile: opts.placementsPerFile,
		DryRun:            opts.dryRun,
		Settings:          resolveSettings(app.config),
	}

	var result application.ParseResult
	runErr := runWithProgress(ctx, cmd.ErrOrStderr(), "Reading CSV files", opts.noProgress, logger, func(ctx context.Context, progress ports.ProgressReporter) error {
		var err error
		result, err = service.Parse(ctx, req, progress)
		return err
	})

	if opts.metricsFile != "" {
		if err := metrics.WriteTextfile(opts.metricsFile); err != nil {
			logger.Warn().Err(err).Str("path", opts.metricsFile).Msg("metrics not written")
		}
	}

	if runErr != nil && !errors.Is(runErr, domain.ErrNoPlacemarks) {
		return runErr
	}

	return reportParse(cmd, app, opts, result, errorLog.Path(), runErr)
}

func reportParse(cmd *cobra.Command, app *app, opts *parseOptions, result application.ParseResult, errorLogPath string, runErr error) error {
	out := cmd.OutOrStdout()

	rendered, err := app.summaryRenderer(result, summaryadapter.RenderOptions{ErrorLogPath: errorLogPath})
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	if _, err := fmt.Fprintln(out, rendered); err != nil {
		return err
	}

	if len(result.Outcome.Errors) > 0 {
		if err := writeErrorTable(out, "Row errors", result.Outcome.Errors); err != nil {
			return err
		}
	}
	if opts.stats {
		writeStatsTable(out, result.Stats)
	}

	switch {
	case runErr != nil:
		return runErr
	case result.Stopped():
		return fmt.Errorf("%w: %d row error(s), see %s", domain.ErrStoppedOnError, len(result.Outcome.Errors), errorLogPath)
	default:
		return nil
	}
}

type clockFunc func() time.Time

func (f clockFunc) Now() time.Time {
	return f()
}
