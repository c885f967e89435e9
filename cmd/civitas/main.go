package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/google/uuid"
	"github.com/hylla/civitas/internal/adapters/metrics"
	serveradapter "github.com/hylla/civitas/internal/adapters/server"
	servercommon "github.com/hylla/civitas/internal/adapters/server/common"
	"github.com/hylla/civitas/internal/adapters/storage/sqlite"
	"github.com/hylla/civitas/internal/app"
	"github.com/hylla/civitas/internal/config"
	"github.com/hylla/civitas/internal/platform"
	"github.com/spf13/cobra"
)

// version is stamped at build time.
var version = "dev"

// serveCommandRunner starts the HTTP+MCP serve flow.
var serveCommandRunner = func(ctx context.Context, cfg serveradapter.Config, deps serveradapter.Dependencies) error {
	return serveradapter.Run(ctx, cfg, deps)
}

// clock is the wall clock used by CLI-built services.
var clock = time.Now

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(os.Stdout, os.Stderr)
	if err := fang.Execute(ctx, root, fang.WithVersion(version), fang.WithoutManpage()); err != nil {
		os.Exit(1)
	}
}

// run executes the command tree without fang styling.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCommand(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
	stdout     io.Writer
	stderr     io.Writer
}

// newRootCommand builds the civitas command tree.
func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("CIVITAS_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	defaultApp := "civitas"
	if envApp := strings.TrimSpace(os.Getenv("CIVITAS_APP_NAME")); envApp != "" {
		defaultApp = envApp
	}

	root := &cobra.Command{
		Use:           "civitas",
		Short:         "Municipal service-request lifecycle engine",
		Long:          "civitas tracks citizen service requests from submission to closure with SLA deadlines, automatic priority escalation, and district-scoped staff access.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config TOML")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "path to sqlite database")
	root.PersistentFlags().StringVar(&opts.appName, "app", defaultApp, "application name for config/data path resolution")
	root.PersistentFlags().BoolVar(&opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newServeCommand(opts),
		newPathsCommand(opts),
		newSeedCommand(opts),
		newEscalateCommand(opts),
		newReportCommand(opts),
		newVersionCommand(opts),
	)
	return root
}

// newPathsCommand prints resolved runtime paths.
func newPathsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, and database paths",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			paths, err := opts.paths()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(opts.stdout, "app: %s\n", opts.appName)
			_, _ = fmt.Fprintf(opts.stdout, "dev_mode: %t\n", opts.devMode)
			_, _ = fmt.Fprintf(opts.stdout, "config: %s\n", paths.ConfigPath)
			_, _ = fmt.Fprintf(opts.stdout, "data_dir: %s\n", paths.DataDir)
			_, _ = fmt.Fprintf(opts.stdout, "db: %s\n", paths.DBPath)
			_, _ = fmt.Fprintf(opts.stdout, "log: %s\n", paths.LogPath)
			return nil
		},
	}
}

// newVersionCommand prints the build version.
func newVersionCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(opts.stdout, "civitas %s\n", version)
		},
	}
}

// newServeCommand runs the HTTP API, MCP, and metrics surfaces.
func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		httpBind    string
		apiEndpoint string
		mcpEndpoint string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API and MCP tools over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(opts, "serve")
			if err != nil {
				return err
			}
			defer rt.Close()

			cfg := rt.cfg.Server
			if cmd.Flags().Changed("http") {
				cfg.HTTPBind = httpBind
			}
			if cmd.Flags().Changed("api-endpoint") {
				cfg.APIEndpoint = apiEndpoint
			}
			if cmd.Flags().Changed("mcp-endpoint") {
				cfg.MCPEndpoint = mcpEndpoint
			}

			interval, err := rt.cfg.Escalation.Interval()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sweepDone := make(chan struct{})
			go func() {
				defer close(sweepDone)
				runEscalationLoop(ctx, rt.svc, interval, rt.logger)
			}()

			adapter := servercommon.NewAppServiceAdapter(rt.svc)
			deps := serveradapter.Dependencies{Public: adapter, Admin: adapter}
			if rt.metrics != nil {
				deps.Metrics = rt.metrics
			}
			rt.logger.Info("command flow start", "command", "serve", "http", cfg.HTTPBind, "sweep_interval", interval)
			err = serveCommandRunner(ctx, serveradapter.Config{
				HTTPBind:      cfg.HTTPBind,
				APIEndpoint:   cfg.APIEndpoint,
				MCPEndpoint:   cfg.MCPEndpoint,
				MetricsPath:   cfg.MetricsPath,
				ServerName:    opts.appName,
				ServerVersion: version,
			}, deps)
			cancel()
			<-sweepDone
			if err != nil {
				rt.logger.Error("command flow failed", "command", "serve", "err", err)
				return fmt.Errorf("run serve command: %w", err)
			}
			rt.logger.Info("command flow complete", "command", "serve")
			return nil
		},
	}
	cmd.Flags().StringVar(&httpBind, "http", "127.0.0.1:8080", "HTTP listen address")
	cmd.Flags().StringVar(&apiEndpoint, "api-endpoint", "/api/v1", "HTTP API base endpoint")
	cmd.Flags().StringVar(&mcpEndpoint, "mcp-endpoint", "/mcp", "MCP streamable HTTP endpoint")
	return cmd
}

// newSeedCommand loads the demo organization or a JSON seed file.
func newSeedCommand(opts *rootOptions) *cobra.Command {
	var seedFile string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a municipality, districts, users, and sample requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			seed := app.DefaultSeed()
			if strings.TrimSpace(seedFile) != "" {
				f, err := os.Open(seedFile)
				if err != nil {
					return fmt.Errorf("open seed file: %w", err)
				}
				seed, err = app.DecodeSeed(f)
				_ = f.Close()
				if err != nil {
					return err
				}
			}

			rt, err := openRuntime(opts, "seed")
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.svc.ApplySeed(cmd.Context(), seed)
			if err != nil {
				rt.logger.Error("command flow failed", "command", "seed", "err", err)
				return fmt.Errorf("apply seed: %w", err)
			}
			if result.Skipped {
				_, _ = fmt.Fprintln(opts.stdout, "database already seeded; nothing to do")
				return nil
			}
			_, _ = fmt.Fprintf(opts.stdout, "seeded %s: %d districts, %d users, %d requests\n",
				result.Municipality.Name, len(result.Districts), len(result.Users), len(result.Requests))
			for _, req := range result.Requests {
				_, _ = fmt.Fprintf(opts.stdout, "  %s  %-8s %s\n", req.TrackingCode, req.Category, req.Description)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&seedFile, "file", "", "JSON seed document (defaults to the built-in demo organization)")
	return cmd
}

// newEscalateCommand runs one on-demand escalation and SLA sweep.
func newEscalateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "escalate",
		Short: "Escalate overdue requests and record SLA breaches once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(opts, "escalate")
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.svc.EscalateDue(cmd.Context())
			if err != nil {
				rt.logger.Error("command flow failed", "command", "escalate", "err", err)
				return fmt.Errorf("escalate due requests: %w", err)
			}
			_, _ = fmt.Fprintf(opts.stdout, "examined %d open requests: %d escalated, %d breached, %d conflicts\n",
				result.Examined, result.Escalated, result.Breached, result.Conflicts)
			return nil
		},
	}
}

// newReportCommand renders the SLA compliance report for one actor's scope.
func newReportCommand(opts *rootOptions) *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show SLA compliance over closed requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(opts, "report")
			if err != nil {
				return err
			}
			defer rt.Close()

			actor, err := rt.svc.ResolveActor(cmd.Context(), actorID)
			if err != nil {
				return fmt.Errorf("resolve actor %q: %w", actorID, err)
			}
			report, err := rt.svc.SLACompliance(cmd.Context(), actor)
			if err != nil {
				return fmt.Errorf("sla compliance: %w", err)
			}
			_, _ = fmt.Fprintln(opts.stdout, renderComplianceReport(actor.Name, servercommon.ToComplianceView(report)))
			return nil
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "user id whose scope the report covers")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

// cliRuntime bundles the resources one command needs.
type cliRuntime struct {
	cfg     config.Config
	logger  *runtimeLogger
	repo    *sqlite.Repository
	svc     *app.Service
	metrics *metrics.Recorder
}

// paths resolves per-user paths for the selected app name and mode.
func (o *rootOptions) paths() (platform.Paths, error) {
	return platform.DefaultPathsWithOptions(platform.Options{
		AppName: o.appName,
		DevMode: o.devMode,
	})
}

// openRuntime resolves config, opens the logger and repository, and builds the service.
func openRuntime(opts *rootOptions, command string) (*cliRuntime, error) {
	paths, err := opts.paths()
	if err != nil {
		return nil, err
	}

	configPath := opts.configPath
	if configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("CIVITAS_CONFIG")); envPath != "" {
			configPath = envPath
		} else {
			configPath = paths.ConfigPath
		}
	}
	dbPath := strings.TrimSpace(opts.dbPath)
	dbOverridden := dbPath != ""
	if !dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("CIVITAS_DB_PATH")); envPath != "" {
			dbPath = envPath
			dbOverridden = true
		} else {
			dbPath = paths.DBPath
		}
	}

	cfg, err := config.Load(configPath, config.Default(dbPath))
	if err != nil {
		return nil, fmt.Errorf("load config %q: %w", configPath, err)
	}
	if dbOverridden {
		cfg.Database.Path = dbPath
	}

	logger, err := newRuntimeLogger(opts.stderr, opts.appName, opts.devMode, cfg.Logging, paths.LogPath, clock)
	if err != nil {
		return nil, fmt.Errorf("configure runtime logger: %w", err)
	}
	logger.Info("startup configuration resolved", "app", opts.appName, "dev_mode", opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", configPath, "data_dir", paths.DataDir, "db_path", dbPath)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}

	if err := config.EnsureConfigDir(cfg.Database.Path); err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	logger.Info("opening sqlite repository", "db_path", cfg.Database.Path)
	repo, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		logger.Error("sqlite open failed", "db_path", cfg.Database.Path, "err", err)
		_ = logger.Close()
		return nil, fmt.Errorf("open sqlite repository: %w", err)
	}
	logger.Info("sqlite repository ready", "db_path", cfg.Database.Path, "migrations", "ensured")

	rt := &cliRuntime{cfg: cfg, logger: logger, repo: repo}
	svcCfg := app.ServiceConfig{
		TrackingCodeLength:   cfg.Tracking.CodeLength,
		TrackingCodeAttempts: cfg.Tracking.MaxAttempts,
		DefaultPageSize:      cfg.Listing.DefaultPageSize,
		MaxPageSize:          cfg.Listing.MaxPageSize,
	}
	if command == "serve" && cfg.Server.EnableMetrics {
		rt.metrics = metrics.NewRecorder()
		svcCfg.Observer = rt.metrics
	}
	rt.svc = app.NewService(repo, uuid.NewString, app.Clock(clock), svcCfg)
	logger.Debug("application service initialized", "page_size", cfg.Listing.DefaultPageSize, "metrics", rt.metrics != nil)
	return rt, nil
}

// Close releases the repository and log sinks.
func (rt *cliRuntime) Close() {
	if rt == nil {
		return
	}
	if err := rt.repo.Close(); err != nil {
		rt.logger.Warn("sqlite close failed", "db_path", rt.cfg.Database.Path, "err", err)
	}
	_ = rt.logger.Close()
}

// runEscalationLoop sweeps open requests every interval until ctx ends.
func runEscalationLoop(ctx context.Context, svc *app.Service, interval time.Duration, logger *runtimeLogger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := svc.EscalateDue(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Warn("escalation sweep failed", "err", err)
				continue
			}
			if result.Escalated > 0 || result.Breached > 0 || result.Conflicts > 0 {
				logger.Info("escalation sweep complete", "examined", result.Examined, "escalated", result.Escalated, "breached", result.Breached, "conflicts", result.Conflicts)
			}
		}
	}
}

// parseBoolEnv reads a boolean environment variable when it is set and valid.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
