// Package cli implements the dashboard command-line interface.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aiodash/aiodash/internal/config"
	"github.com/aiodash/aiodash/internal/logging"
	"github.com/aiodash/aiodash/internal/metrics"
	"github.com/aiodash/aiodash/pkg/client"
	"github.com/aiodash/aiodash/pkg/dashboard"
	"github.com/aiodash/aiodash/pkg/guard"
	"github.com/aiodash/aiodash/pkg/query"
	"github.com/aiodash/aiodash/pkg/retry"
	"github.com/aiodash/aiodash/pkg/session"
)

// Version is set at build time.
var Version = "dev"

// app holds the state shared by every command of one invocation.
type app struct {
	flags struct {
		configPath  string
		apiURL      string
		logLevel    string
		logFormat   string
		metricsAddr string
		output      string
	}

	stdin  io.Reader
	reader *bufio.Reader
	stdout io.Writer
	stderr io.Writer

	cfg     *config.Config
	client  *client.Client
	cache   *query.Cache
	store   *session.Store
	svc     *dashboard.Service
	routes  guard.Table
	metrics *http.Server
	log     *zap.Logger
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	return &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		routes: guard.DefaultRoutes(),
	}
}

// Execute runs the CLI.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	defer a.close()
	err := newRootCmd(a).ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(a.stderr, styleError.Render("Error: ")+err.Error())
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "dashboard",
		Short: "AI optimization dashboard client",
		Long: `dashboard talks to the AI optimization backend: brand analyses,
server log uploads, bot activity reports and the admin console.

Configuration is read from ~/.config/aiodash/config.yaml, a .env file in the
working directory and AIODASH_* environment variables, in that order.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default ~/.config/aiodash/config.yaml)")
	pf.StringVar(&a.flags.apiURL, "api-url", "", "backend base URL")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&a.flags.logFormat, "log-format", "", "log format: console or json")
	pf.StringVar(&a.flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.StringVarP(&a.flags.output, "output", "o", "", "output format: json or table")

	// Add subcommands (alphabetical)
	root.AddCommand(a.adminCmd())
	root.AddCommand(a.analyzeCmd())
	root.AddCommand(a.brandsCmd())
	root.AddCommand(a.healthCmd())
	root.AddCommand(a.loginCmd())
	root.AddCommand(a.logoutCmd())
	root.AddCommand(a.logsCmd())
	root.AddCommand(a.overviewCmd())
	root.AddCommand(a.passwordResetCmd())
	root.AddCommand(a.registerCmd())
	root.AddCommand(a.whoamiCmd())
	return root
}

// setup loads configuration and wires the client, cache and session store.
// It restores the persisted session without contacting the backend.
func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.flags.apiURL != "" {
		cfg.APIURL = a.flags.apiURL
	}
	if a.flags.logLevel != "" {
		cfg.LogLevel = a.flags.logLevel
	}
	if a.flags.logFormat != "" {
		cfg.LogFormat = a.flags.logFormat
	}
	if a.flags.metricsAddr != "" {
		cfg.MetricsAddr = a.flags.metricsAddr
	}
	if a.flags.output != "" {
		cfg.Output = a.flags.output
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	applyColor(cfg.NoColor)

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	a.log = logging.Named("cli")

	a.client = client.New(client.Config{
		BaseURL:     cfg.APIURL,
		Timeout:     cfg.Timeout,
		RetryConfig: retry.DefaultConfig().WithRetries(cfg.Retries),
		UserAgent:   "aiodash-cli/" + Version,
		RateLimit:   cfg.RateLimit,
	})

	profile := session.NewFileStorage(cfg.SessionFile)
	var storage session.Storage = profile
	if cfg.TokenStore == "keyring" {
		storage = session.NewKeyringStorage(cfg.APIURL, profile)
	}
	a.store = session.NewStore(storage, a.client)
	a.client.SetTokenSource(a.store.TokenSource())
	a.client.OnUnauthorized(a.store.HandleUnauthorized)

	a.cache = query.New(query.Config{StaleTime: cfg.StaleTime})
	a.svc = dashboard.New(a.client, a.cache, dashboard.Options{
		APIVersion:         cfg.APIVersion,
		UploadPollInterval: cfg.UploadPollInterval,
	})

	if cfg.MetricsAddr != "" {
		a.startMetrics(cfg.MetricsAddr)
	}

	if _, err := a.store.RefreshUser(ctx); err != nil {
		if !errors.Is(err, session.ErrSessionExpired) {
			return fmt.Errorf("restore session: %w", err)
		}
		fmt.Fprintln(a.stderr, styleWarning.Render("Your session has expired. Sign in again."))
	}
	return nil
}

func (a *app) startMetrics(addr string) {
	a.metrics = &http.Server{
		Addr:              addr,
		Handler:           metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.log.Info("metrics server listening", zap.String("addr", addr))
		if err := a.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics server error", zap.Error(err))
		}
	}()
}

// close releases everything setup created. Safe to call more than once.
func (a *app) close() {
	if a.cache != nil {
		a.cache.Close()
	}
	if a.metrics != nil {
		a.metrics.Close()
		a.metrics = nil
	}
	logging.Sync()
}
