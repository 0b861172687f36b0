package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tkingovr/postguard/internal/approval"
	"github.com/tkingovr/postguard/internal/audit"
	"github.com/tkingovr/postguard/internal/dashboard"
	"github.com/tkingovr/postguard/internal/filter"
	"github.com/tkingovr/postguard/internal/gateway"
	"github.com/tkingovr/postguard/internal/metrics"
	"github.com/tkingovr/postguard/internal/policy"
)

var (
	gwListen      string
	gwUpstream    string
	gwNoDashboard bool
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the post gateway and the web dashboard",
	Long: `Start an HTTP reverse proxy in front of the feed backend. POST requests
to the post path are classified and moderated before they are forwarded;
every other request passes through untouched. The dashboard runs alongside
unless --no-dashboard is given.`,
	Example: `  postguard gateway -c policy.yaml
  postguard gateway --upstream http://localhost:3000 --listen :8088`,
	RunE: runGateway,
}

func init() {
	gatewayCmd.Flags().StringVarP(&gwListen, "listen", "l", "", "gateway listen address (overrides settings.listen)")
	gatewayCmd.Flags().StringVar(&gwUpstream, "upstream", "", "feed backend URL (overrides settings.upstream)")
	gatewayCmd.Flags().BoolVar(&gwNoDashboard, "no-dashboard", false, "do not start the dashboard")
	rootCmd.AddCommand(gatewayCmd)
}

func runGateway(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if gwListen != "" {
		cfg.Listen = gwListen
	}
	if gwUpstream != "" {
		cfg.Upstream = gwUpstream
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	auditStore, err := audit.NewJSONLStore(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("creating audit store: %w", err)
	}
	defer auditStore.Close()

	aq := approval.NewQueue(cfg.ApprovalTimeout)
	m := metrics.New()

	chain := filter.BuildPostChain(filter.ChainConfig{
		Classifier:   cfg.Classifier,
		Engine:       engine,
		AuditStore:   auditStore,
		Metrics:      m,
		Logger:       logger,
		ContentField: cfg.ContentField,
		AgentField:   cfg.AgentField,
		RateLimit:    filter.RateLimitConfigFromPolicy(cfg.PolicyFile.Settings.RateLimit),
	})

	gw, err := gateway.New(gateway.Config{
		Upstream:     cfg.Upstream,
		PostPath:     cfg.PostPath,
		MaxBodyBytes: cfg.MaxBodyBytes,
	}, chain, logger, gateway.WithApprovals(aq), gateway.WithUpstreamRecorder(m))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	go reloadOnHangup(ctx, engine)

	var metricsHandler http.Handler = m.Handler()
	if !gwNoDashboard {
		dash := dashboard.NewServer(cfg.DashboardAddr, dashboard.Options{
			Store:      auditStore,
			Approvals:  aq,
			Classifier: cfg.Classifier,
			Policy:     cfg.PolicyFile,
			Metrics:    metricsHandler,
		}, logger)
		go func() {
			if err := dash.ListenAndServe(ctx); err != nil {
				logger.Error("dashboard error", "error", err)
			}
		}()
	}

	logger.Info("classifier ready",
		slog.String("policy", cfg.PolicyPath),
		slog.Int("rules", cfg.Classifier.RuleCount()),
		slog.Int("known_contracts", cfg.Classifier.Allowlist().Len()),
	)
	return gw.ListenAndServe(ctx, cfg.Listen)
}

// reloadOnHangup re-reads the moderation policy on SIGHUP. The classifier
// catalog and allowlist are fixed for the life of the process.
func reloadOnHangup(ctx context.Context, engine policy.Engine) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-hup:
			if err := engine.Reload(ctx); err != nil {
				logger.Error("reloading moderation policy", "error", err)
				continue
			}
			logger.Info("moderation policy reloaded")
		case <-ctx.Done():
			return
		}
	}
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
