package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tkingovr/postguard/internal/approval"
	"github.com/tkingovr/postguard/internal/audit"
	"github.com/tkingovr/postguard/internal/classifier"
	"github.com/tkingovr/postguard/internal/policy"
)

// Options wires the dashboard to the running gate.
type Options struct {
	Store      audit.Store
	Approvals  *approval.Queue
	Classifier *classifier.Classifier

	// Policy is displayed read-only; nil hides the policy page content.
	Policy *policy.PolicyFile

	// Metrics, when set, is served at /metrics.
	Metrics http.Handler
}

// Server is the web dashboard HTTP server.
type Server struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	auditStore audit.Store
	approvalQ  *approval.Queue
	classifier *classifier.Classifier
	policy     *policy.PolicyFile
	addr       string
}

// NewServer creates a new dashboard server.
func NewServer(addr string, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		auditStore: opts.Store,
		approvalQ:  opts.Approvals,
		classifier: opts.Classifier,
		policy:     opts.Policy,
		addr:       addr,
	}
	s.registerRoutes(opts.Metrics)
	return s
}

func (s *Server) registerRoutes(metrics http.Handler) {
	s.mux.HandleFunc("GET /", s.handleOverview)
	s.mux.HandleFunc("GET /audit", s.handleAudit)
	s.mux.HandleFunc("GET /audit/stream", s.handleAuditStream)
	s.mux.HandleFunc("GET /approval", s.handleApproval)
	s.mux.HandleFunc("POST /approval/{id}/approve", s.handleApprovalAction)
	s.mux.HandleFunc("POST /approval/{id}/deny", s.handleApprovalDenyAction)
	s.mux.HandleFunc("GET /catalog", s.handleCatalog)
	s.mux.HandleFunc("GET /policy", s.handlePolicy)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/stats", s.handleAPIStats)
	s.mux.HandleFunc("GET /api/v1/audit", s.handleAPIAudit)
	s.mux.HandleFunc("GET /api/v1/approvals", s.handleAPIApprovals)
	s.mux.HandleFunc("POST /api/v1/classify", s.handleAPIClassify)
	if metrics != nil {
		s.mux.Handle("GET /metrics", metrics)
	}
}

// ListenAndServe starts the dashboard HTTP server.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	s.logger.Info("starting dashboard", "addr", s.addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the HTTP handler for embedding in other servers.
func (s *Server) Handler() http.Handler {
	return s.mux
}
