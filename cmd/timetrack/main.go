package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ifruncillo/timetrack-agent/internal/agent"
	"github.com/ifruncillo/timetrack-agent/internal/api"
	"github.com/ifruncillo/timetrack-agent/internal/capture"
	"github.com/ifruncillo/timetrack-agent/internal/config"
	"github.com/ifruncillo/timetrack-agent/internal/input"
	"github.com/ifruncillo/timetrack-agent/internal/logger"
	"github.com/ifruncillo/timetrack-agent/internal/metrics"
	"github.com/ifruncillo/timetrack-agent/internal/onboarding"
	"github.com/ifruncillo/timetrack-agent/internal/ui"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

type flags struct {
	configPath string
	headless   bool
	logLevel   string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:          "timetrack",
		Short:        "TimeTrack workstation agent",
		Long:         "Reports screenshots and idle periods of this workstation to the TimeTrack collector.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", "", "path to config file (default: per-user config dir, then ./config.json)")
	root.Flags().BoolVar(&f.headless, "headless", false, "run without the tray icon")
	root.Flags().StringVar(&f.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(newInitCommand(&f))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "TimeTrack Agent %s\n", version)
		},
	})
	return root
}

func newInitCommand(f *flags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := f.configPath
			if path == "" {
				p, err := config.DefaultPath()
				if err != nil {
					return err
				}
				path = p
			}
			if !force && !onboarding.IsFirstRun(path) {
				return fmt.Errorf("%s already holds a valid configuration; use --force to replace it", path)
			}

			cfg, err := onboarding.NewWizard(cmd.InOrStdin(), cmd.OutOrStdout()).Run()
			if err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration")
	return cmd
}

func run(parent context.Context, f flags) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	cfg.Version = version
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("TimeTrack Agent starting",
		zap.String("version", version),
		zap.String("user_id", cfg.UserID),
		zap.Duration("screenshot_interval", cfg.ScreenshotInterval()),
		zap.Duration("idle_threshold", cfg.IdleThreshold()))

	client := api.NewClient(api.Config{
		URL:     cfg.APIURL,
		APIKey:  cfg.APIKey,
		UserID:  cfg.UserID,
		Timeout: cfg.RequestTimeout(),
		Version: version,
	}, nil, log.Named("api"))
	tracker := metrics.NewTracker()

	opts := agent.Options{
		ScreenshotInterval: cfg.ScreenshotInterval(),
		IdleThreshold:      cfg.IdleThreshold(),
		IdlePoll:           cfg.IdlePoll(),
		HeartbeatInterval:  cfg.HeartbeatInterval(),
		Version:            version,
		Workers:            cfg.Workers,
		QueueSize:          cfg.QueueSize,
		MetricsAddr:        cfg.MetricsAddr,
	}
	deps := agent.Deps{
		Input:    input.NewSystemSource(log.Named("input")),
		Session:  input.NewSystemSessionWatcher(log.Named("session")),
		Capturer: capture.NewScreen(nil, capture.DefaultMaxWidth, log.Named("capture")),
		Reporter: client,
		Metrics:  tracker,
		Log:      log,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if f.headless || !cfg.Tray {
		err = runHeadless(ctx, opts, deps, log)
	} else {
		err = runTray(ctx, opts, deps, log)
	}
	if err != nil {
		return err
	}

	logSummary(log, tracker.Stats())
	return nil
}

func runHeadless(ctx context.Context, opts agent.Options, deps agent.Deps, log *logger.Logger) error {
	deps.Indicator = ui.NewLogIndicator(log.Named("status"))
	a, err := agent.New(opts, deps)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}
	log.Info("agent running, press Ctrl+C to stop")
	<-a.Done()
	return nil
}

// runTray hands the main goroutine to the tray. The agent starts once the
// icon is up; a signal, the Quit item or a start failure ends the tray.
func runTray(ctx context.Context, opts agent.Options, deps agent.Deps, log *logger.Logger) error {
	var a *agent.Agent
	tray := ui.NewTray(log.Named("tray"), func() { a.Stop() })
	deps.Indicator = tray

	a, err := agent.New(opts, deps)
	if err != nil {
		return err
	}

	var startErr error
	tray.Run(func() {
		if startErr = a.Start(ctx); startErr != nil {
			log.Error("agent failed to start", zap.Error(startErr))
			tray.Stop()
		}
	})
	a.Stop()
	return startErr
}

func logSummary(log *logger.Logger, s metrics.Stats) {
	log.Info("session summary",
		zap.Duration("runtime", s.SessionRuntime.Round(time.Second)),
		zap.Int("screenshots", s.Screenshots),
		zap.Int("reports_sent", s.ReportsSent),
		zap.Int("reports_failed", s.ReportsFailed),
		zap.Int("skipped_idle", s.SkippedIdle),
		zap.Int("capture_failed", s.CaptureFailed),
		zap.Int("idle_periods", s.IdlePeriods),
		zap.Duration("total_idle", s.TotalIdle.Round(time.Second)))
}
