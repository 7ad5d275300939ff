package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/poharvest/internal/core"
	"github.com/RecoveryAshes/poharvest/internal/crawlers"
	"github.com/RecoveryAshes/poharvest/internal/models"
	"github.com/RecoveryAshes/poharvest/internal/rules"
	"github.com/RecoveryAshes/poharvest/internal/storage"
	"github.com/RecoveryAshes/poharvest/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	// global
	configFile string
	verbose    bool
	logLevel   string

	headers        []string
	validateConfig bool

	// run
	pages       int
	workers     int
	headless    bool
	outputDir   string
	formats     []string
	metricsAddr string
	sessionFile string

	// login
	saveSession string

	appConfig *core.Config
	logger    zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "poharvest",
	Short: "Extract purchase orders from a paginated ERP web UI",
	Long: `poharvest logs into an Odoo-style web application once, walks the paginated
purchase order list and extracts every order with its line items in parallel,
each in an isolated browser context. Results are checkpointed after every page.

Examples:
  # three pages, credentials from the environment
  POHARVEST_CREDENTIALS_USERNAME=admin POHARVEST_CREDENTIALS_PASSWORD=... poharvest -p 3

  # JSON and SQLite output, extra header
  poharvest -c configs/config.yaml --format json --format sqlite -H "X-Tenant: acme"

  # check configuration and headers only
  poharvest --validate-config

Version: ` + Version + `
Build time: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		flags := core.CLIFlags{Pages: -1, LogLevel: logLevel, MetricsAddr: metricsAddr, OutputDir: outputDir}
		if cmd.Flags().Changed("pages") {
			flags.Pages = pages
		}
		if cmd.Flags().Changed("workers") {
			flags.Workers = workers
		}
		if cmd.Flags().Changed("headless") {
			flags.Headless = &headless
		}
		if cmd.Flags().Changed("format") {
			flags.Formats = formats
		}
		if verbose && logLevel == "" {
			flags.LogLevel = "debug"
		}
		cfg.MergeCLIFlags(flags)

		l, err := utils.InitLogger(cfg.LogConfig())
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		appConfig, logger = cfg, l
		logger.Debug().Interface("config", cfg.Snapshot()).Msg("configuration loaded")
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		headerManager, err := core.NewHeaderManager(appConfig.Headers, headers, logger)
		if err != nil {
			return fmt.Errorf("parse headers: %w", err)
		}

		if validateConfig {
			return runValidateConfig(cmd.OutOrStdout(), headerManager)
		}

		if err := ValidateFlags(appConfig.Run.Pages, appConfig.Run.Workers, appConfig.Output.Formats, sessionFile); err != nil {
			return err
		}
		if err := appConfig.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		extraHeaders, err := headerManager.GetHeaders()
		if err != nil {
			return fmt.Errorf("invalid headers: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			logger.Warn().Msg("interrupt received, finishing the current page")
		}()

		return runScrape(ctx, cmd.OutOrStdout(), extraHeaders)
	},
}

func runValidateConfig(w io.Writer, hm *core.HeaderManager) error {
	logger.Info().Msg("🔍 validating configuration")
	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}
	if err := hm.Validate(); err != nil {
		return fmt.Errorf("headers invalid: %w", err)
	}

	safe := hm.GetSafeHeaders()
	fmt.Fprintln(w, "✅ configuration valid")
	fmt.Fprintf(w, "extra request headers (%d):\n", len(safe))
	for name, value := range safe {
		fmt.Fprintf(w, "  %s: %s\n", name, value)
	}
	return nil
}

// runScrape wires the components and executes one run.
func runScrape(ctx context.Context, out io.Writer, extraHeaders http.Header) error {
	cfg := appConfig
	runID := models.NewRunID()

	n, reason := crawlers.NewResourceMonitor(cfg.Resource, logger).RecommendWorkers(cfg.Run.Workers)
	if reason != "" {
		logger.Warn().Int("configured", cfg.Run.Workers).Int("workers", n).Msg("reducing workers: " + reason)
		cfg.Run.Workers = n
	}

	metrics := utils.NewMetrics()
	utils.ServeMetrics(ctx, cfg.Metrics.Addr, metrics, logger)

	sink, err := storage.New(cfg.Output, runID)
	if err != nil {
		return fmt.Errorf("create output sink: %w", err)
	}
	if c, ok := sink.(interface{ Close() error }); ok {
		defer c.Close()
	}

	sessions := newSessionSource(cfg)

	// the shared browser outlives ctx so the current page can drain after an interrupt
	browser, err := crawlers.LaunchBrowser(context.WithoutCancel(ctx), cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer crawlers.CloseBrowser(browser, logger)

	enumerator := crawlers.NewPageEnumerator(browser, cfg.Target, cfg.Selectors, cfg.Timeouts, extraHeaders, cfg.Browser.BlockResources, metrics, logger).
		WithDebugDir(cfg.Output.Dir)
	extractor := crawlers.NewDetailExtractor(browser, cfg.Target, cfg.Selectors, cfg.Timeouts, extraHeaders, cfg.Browser.BlockResources,
		rules.NewSelectorRules(cfg.Rules), cfg.ExtractorConfig(), metrics, logger)

	orchestrator := core.NewOrchestrator(cfg.Run, core.Deps{
		Sessions:   sessions,
		Enumerator: enumerator,
		Extractor:  extractor,
		Sink:       sink,
		Metrics:    metrics,
	}, runID, logger).WithProgress(os.Stderr)

	start := time.Now()
	summary, runErr := orchestrator.Run(ctx)

	report := &models.RunReport{
		Summary:   summary,
		StartTime: start,
		EndTime:   time.Now(),
		Config:    cfg.Snapshot(),
	}
	if runErr != nil {
		report.Error = runErr.Error()
	}
	if _, err := utils.NewReporter(cfg.Output.Dir, logger).GenerateReport(report, orchestrator.Records()); err != nil {
		logger.Error().Err(err).Msg("failed to write reports")
	}

	utils.PrintSummary(out, summary)
	return runErr
}

func newSessionSource(cfg *core.Config) core.SessionSource {
	if sessionFile != "" {
		return fileSession{path: sessionFile, logger: logger}
	}
	return newSessionProvider(cfg)
}

func newSessionProvider(cfg *core.Config) *crawlers.SessionProvider {
	var preflight *crawlers.Preflight
	if cfg.Preflight.Enabled {
		preflight = crawlers.NewPreflight(cfg.Selectors.LoginField, cfg.Preflight.Timeout, cfg.Browser.IgnoreCertErrors)
	}
	return crawlers.NewSessionProvider(cfg.Browser, cfg.Target, cfg.Credentials, cfg.Selectors, cfg.Timeouts, preflight, logger)
}

// fileSession reuses a session exported by "poharvest login --save".
type fileSession struct {
	path   string
	logger zerolog.Logger
}

func (f fileSession) Acquire(ctx context.Context) (*models.Session, error) {
	s, err := models.LoadSessionFromFile(f.path)
	if err != nil {
		return nil, &models.AuthenticationError{Stage: "session_file", Cause: err}
	}
	if s.Len() == 0 {
		return nil, &models.AuthenticationError{Stage: "session_file", Cause: fmt.Errorf("%s holds no cookies", f.path)}
	}
	f.logger.Info().Str("file", f.path).Time("acquired_at", s.AcquiredAt).Msg("reusing saved session")
	return s, nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in once and optionally export the session cookies",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := models.ValidateURL(appConfig.Target.LoginURL); err != nil {
			return fmt.Errorf("target.login_url: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		session, err := newSessionProvider(appConfig).Acquire(ctx)
		if err != nil {
			return err
		}

		if saveSession != "" {
			if err := session.SaveToFile(saveSession); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			logger.Info().Str("file", saveSession).Msg("💾 session saved")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✅ logged in to %s (%d cookies)\n", session.Origin, session.Len())
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "poharvest %s\n", Version)
		fmt.Fprintf(cmd.OutOrStdout(), "build time: %s\n", BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default: configs/config.yaml, ./config.yaml, ~/.poharvest/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug level)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "run the browser headless")

	rootCmd.Flags().StringSliceVarP(&headers, "header", "H", []string{}, "extra request header 'Name: Value', repeatable")
	rootCmd.Flags().BoolVar(&validateConfig, "validate-config", false, "validate configuration and headers, then exit")
	rootCmd.Flags().IntVarP(&pages, "pages", "p", 3, "number of list pages to process")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", crawlers.DefaultWorkers, "concurrent detail extractions")
	rootCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	rootCmd.Flags().StringSliceVar(&formats, "format", []string{"json"}, "output format (json|csv|sqlite), repeatable")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")
	rootCmd.Flags().StringVar(&sessionFile, "session", "", "reuse a session saved by 'login --save' instead of logging in")

	loginCmd.Flags().StringVar(&saveSession, "save", "", "write the session cookies to this file (0600)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
