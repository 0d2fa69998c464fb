package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/cdispd/internal/component"
	"git.home.luguber.info/inful/cdispd/internal/config"
	"git.home.luguber.info/inful/cdispd/internal/daemon"
	"git.home.luguber.info/inful/cdispd/internal/dispatch"
	"git.home.luguber.info/inful/cdispd/internal/events"
	"git.home.luguber.info/inful/cdispd/internal/history"
	"git.home.luguber.info/inful/cdispd/internal/metrics"
	"git.home.luguber.info/inful/cdispd/internal/pivot"
	"git.home.luguber.info/inful/cdispd/internal/profile"
	"git.home.luguber.info/inful/cdispd/internal/statestore"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"/etc/cdispd/cdispd.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Run struct {
		Listen string `short:"l" help:"Status/metrics listen address, overrides configuration"`
		DryRun bool   `help:"Decide and log, but never invoke the dispatch program"`
	} `cmd:"" help:"Run the dispatch daemon"`

	Once struct {
		DryRun bool `help:"Decide and log, but never invoke the dispatch program"`
	} `cmd:"" help:"Perform a single poll and comparison cycle, then exit"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "run":
		cfg := mustLoadConfig()
		if CLI.Run.Listen != "" {
			cfg.HTTP.Listen = CLI.Run.Listen
		}
		if CLI.Run.DryRun {
			cfg.DryRun = true
		}
		if err := runDaemon(cfg); err != nil {
			slog.Error("Daemon failed", "error", err)
			os.Exit(1)
		}
	case "once":
		cfg := mustLoadConfig()
		if CLI.Once.DryRun {
			cfg.DryRun = true
		}
		if err := runOnce(cfg); err != nil {
			slog.Error("Cycle failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := runInit(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Unknown command", "command", ctx.Command())
		os.Exit(1)
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	return cfg
}

// assemble wires the collaborators shared by the run and once commands.
func assemble(cfg *config.Config, rec metrics.Recorder) (*daemon.Daemon, func(), error) {
	source, err := profile.NewCacheSource(cfg.CacheDir)
	if err != nil {
		return nil, nil, err
	}

	pivotStore, err := pivot.NewStore(cfg.DataDir).Get()
	if err != nil {
		return nil, nil, err
	}
	machine, err := pivot.NewMachine(pivotStore)
	if err != nil {
		return nil, nil, err
	}

	markers, err := statestore.NewStore(cfg.StateDir).Get()
	if err != nil {
		return nil, nil, err
	}

	invoker := &dispatch.ExecInvoker{
		Program:  cfg.Dispatch.Program,
		StateDir: cfg.StateDir,
		Retries:  cfg.Dispatch.Retries,
		Timeout:  cfg.DispatchTimeout(),
	}
	driver := dispatch.NewDriver(invoker, markers, rec, dispatch.Options{
		Resolve: component.ResolveOptions{
			AutoRegisterComponentPath: cfg.AutoRegisterComponentPath(),
			AutoRegisterPackagePath:   cfg.AutoRegisterPackagePath(),
		},
		DryRun: cfg.DryRun,
	})

	deps := daemon.Deps{
		Source:  source,
		Machine: machine,
		Runner:  driver,
		Markers: markers,
	}

	var closers []func()
	if cfg.History.Enabled {
		hist, err := history.NewStore(cfg.History.Path)
		if err != nil {
			return nil, nil, err
		}
		deps.History = hist
		closers = append(closers, func() {
			if err := hist.Close(); err != nil {
				slog.Warn("cannot close history store", "error", err)
			}
		})
	}
	if cfg.Events.Enabled {
		pub, err := events.NewPublisher(cfg.Events.URL, cfg.Events.Subject)
		if err != nil {
			return nil, nil, err
		}
		deps.Events = pub
		closers = append(closers, pub.Close)
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return daemon.New(cfg, deps), cleanup, nil
}

func runDaemon(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prom.NewRegistry()
	rec := metrics.NewPrometheusRecorder(reg)

	d, cleanup, err := assemble(cfg, rec)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.HTTP.Listen != "" {
		srv := daemon.NewStatusServer(cfg.HTTP.Listen, d, reg)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("status server shutdown error", "error", err)
			}
		}()
	}

	return d.Run(ctx)
}

func runOnce(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, cleanup, err := assemble(cfg, metrics.NoopRecorder{})
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := d.RunOnce(ctx)
	if err != nil {
		return err
	}
	if res == nil {
		slog.Info("Nothing to do")
		return nil
	}
	slog.Info("Cycle finished",
		"outcome", string(res.Outcome),
		"reason", res.Reason,
		"profile_id", res.ProfileID,
		"forced_all", res.ForcedAll)
	if res.Outcome == dispatch.OutcomeFailure {
		if res.Err != nil {
			return res.Err
		}
		return fmt.Errorf("cycle ended with outcome %s", res.Outcome)
	}
	return nil
}

const starterConfig = `# cdispd configuration
cache_dir: /var/lib/cdispd/cache
data_dir: /var/lib/cdispd/data
state_dir: /var/run/cdispd

poll_interval: 60s
dry_run: false

auto_register:
  component_path: true
  package_path: true

dispatch:
  program: ncm-ncd
  retries: 1
  timeout: 30m

http:
  listen: ""        # e.g. 127.0.0.1:9465 to enable /metrics, /healthz, /status

history:
  enabled: false
  # path: /var/lib/cdispd/data/history.db

events:
  enabled: false
  # url: nats://localhost:4222
  # subject: cdispd.cycles

fetch_retry:
  mode: linear
  initial: 5s
  max: 2m
`

func runInit(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file %s already exists (use --force to overwrite)", path)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}
	slog.Info("Created configuration file", "path", path)
	return nil
}
