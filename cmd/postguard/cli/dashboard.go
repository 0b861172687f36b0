package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tkingovr/postguard/internal/approval"
	"github.com/tkingovr/postguard/internal/audit"
	"github.com/tkingovr/postguard/internal/dashboard"
)

var (
	dashAddr   string
	dashLogDir string
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Start the web dashboard only (no gateway)",
	Long: `Start the web dashboard for browsing audit logs, the rule catalog and
the active policy. Reads from existing audit log files; the classify API
uses the configured catalog and allowlist.`,
	Example: `  postguard dashboard -l :8089 -a ~/.postguard/logs
  postguard dashboard -c policy.yaml`,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().StringVarP(&dashAddr, "listen", "l", "", "dashboard listen address (overrides settings.dashboard_addr)")
	dashboardCmd.Flags().StringVarP(&dashLogDir, "audit-dir", "a", "", "audit log directory")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if dashAddr != "" {
		cfg.DashboardAddr = dashAddr
	}
	if dashLogDir != "" {
		cfg.LogDir = dashLogDir
	}

	auditStore, err := audit.NewJSONLStore(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("creating audit store: %w", err)
	}
	defer auditStore.Close()

	ctx, cancel := signalContext()
	defer cancel()

	dash := dashboard.NewServer(cfg.DashboardAddr, dashboard.Options{
		Store:      auditStore,
		Approvals:  approval.NewQueue(cfg.ApprovalTimeout),
		Classifier: cfg.Classifier,
		Policy:     cfg.PolicyFile,
	}, logger)
	return dash.ListenAndServe(ctx)
}
