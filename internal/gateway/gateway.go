// Package gateway fronts a feed backend and gates post creation through the
// filter chain.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tkingovr/postguard/api"
	"github.com/tkingovr/postguard/internal/approval"
	"github.com/tkingovr/postguard/internal/filter"
)

// DefaultAgentHeader carries the author when the post body does not.
const DefaultAgentHeader = "X-Agent-ID"

// Error codes returned in api.RejectResponse.
const (
	CodeContentBlocked = "content_blocked"
	CodeRateLimited    = "rate_limited"
	CodeModeration     = "moderation_denied"
	CodeApprovalDenied = "approval_denied"
	CodeInvalidPost    = "invalid_post"
	CodeTooLarge       = "post_too_large"
	CodeUpstream       = "upstream_unavailable"
	CodeInternal       = "internal_error"
)

// Config describes which requests are gated and where they go.
type Config struct {
	Upstream     string
	PostPath     string
	MaxBodyBytes int64
	AgentHeader  string
}

// UpstreamRecorder is notified when forwarding fails.
type UpstreamRecorder interface {
	RecordUpstreamError()
}

// Gateway is an HTTP reverse proxy that classifies post submissions before
// they reach the backend.
type Gateway struct {
	cfg          Config
	target       *url.URL
	reverseProxy *httputil.ReverseProxy
	chain        *filter.Chain
	approvals    *approval.Queue
	recorder     UpstreamRecorder
	logger       *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithApprovals enables operator review for posts moderated with "ask".
// Without a queue such posts are rejected.
func WithApprovals(q *approval.Queue) Option {
	return func(g *Gateway) { g.approvals = q }
}

// WithUpstreamRecorder reports forwarding failures.
func WithUpstreamRecorder(r UpstreamRecorder) Option {
	return func(g *Gateway) { g.recorder = r }
}

// New creates a gateway for the given upstream.
func New(cfg Config, chain *filter.Chain, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	u, err := url.Parse(cfg.Upstream)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q: scheme and host are required", cfg.Upstream)
	}
	if cfg.PostPath == "" {
		return nil, errors.New("post path is required")
	}
	cfg.PostPath = cleanPath(cfg.PostPath)
	if cfg.AgentHeader == "" {
		cfg.AgentHeader = DefaultAgentHeader
	}

	g := &Gateway{
		cfg:    cfg,
		target: u,
		chain:  chain,
		logger: logger,
	}
	for _, opt := range opts {
		opt(g)
	}

	rp := httputil.NewSingleHostReverseProxy(u)
	director := rp.Director
	rp.Director = func(req *http.Request) {
		director(req)
		req.Host = u.Host
	}
	rp.ErrorHandler = g.errorHandler
	g.reverseProxy = rp

	return g, nil
}

// ServeHTTP gates writes to the post path and passes everything else through.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !g.gated(r) {
		g.reverseProxy.ServeHTTP(w, r)
		return
	}

	body, err := g.readBody(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeReject(w, http.StatusRequestEntityTooLarge, api.RejectResponse{
				Error:  CodeTooLarge,
				Reason: fmt.Sprintf("post exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		g.logger.Error("reading request body", "error", err)
		writeReject(w, http.StatusBadRequest, api.RejectResponse{Error: CodeInvalidPost, Reason: "failed to read request"})
		return
	}

	fc := filter.NewFilterContext(body)
	fc.Agent = r.Header.Get(g.cfg.AgentHeader)
	if err := g.chain.Process(r.Context(), fc); err != nil {
		g.logger.Error("filter chain error", "error", err)
		writeReject(w, http.StatusInternalServerError, api.RejectResponse{Error: CodeInternal, Reason: "internal filter error"})
		return
	}
	if fc.Invalid != nil {
		writeReject(w, http.StatusBadRequest, api.RejectResponse{Error: CodeInvalidPost, Reason: fc.Invalid.Error()})
		return
	}

	switch fc.Verdict {
	case api.VerdictDeny:
		g.logger.Warn("post denied",
			"agent", fc.Agent,
			"category", fc.Result.Category,
			"rule", fc.MatchedRule,
		)
		g.writeDeny(w, fc)
		return

	case api.VerdictAsk:
		if !g.awaitApproval(r.Context(), fc) {
			writeReject(w, http.StatusForbidden, api.RejectResponse{
				Error:   CodeApprovalDenied,
				Blocked: true,
				Reason:  firstNonEmpty(fc.VerdictMessage, "post was not approved"),
				Rule:    fc.MatchedRule,
			})
			return
		}
	}

	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	g.reverseProxy.ServeHTTP(w, r)
}

// gated reports whether r creates or edits a post: a POST, PUT or PATCH to
// the post path or any path below it, compared after cleaning so trailing
// slashes and dot segments do not slip past.
func (g *Gateway) gated(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	base := g.cfg.PostPath
	if base == "/" {
		return true
	}
	p := cleanPath(r.URL.Path)
	return p == base || strings.HasPrefix(p, base+"/")
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + p)
}

func (g *Gateway) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	if g.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, g.cfg.MaxBodyBytes)
	}
	return io.ReadAll(r.Body)
}

// awaitApproval blocks until an operator decides a held post.
func (g *Gateway) awaitApproval(ctx context.Context, fc *filter.FilterContext) bool {
	if g.approvals == nil {
		g.logger.Warn("post held for review but no approval queue is configured",
			"agent", fc.Agent, "rule", fc.MatchedRule)
		return false
	}

	g.logger.Info("post pending approval", "agent", fc.Agent, "rule", fc.MatchedRule)
	start := time.Now()
	verdict, err := g.approvals.Submit(ctx, fc.Agent, fc.MatchedRule, fc.VerdictMessage, filter.Preview(fc.Content))
	if err != nil {
		g.logger.Info("approval abandoned", "agent", fc.Agent, "error", err)
		return false
	}
	g.logger.Info("approval resolved",
		"agent", fc.Agent,
		"verdict", verdict,
		"waited", time.Since(start).Round(time.Millisecond),
	)
	return verdict == api.VerdictAllow
}

func (g *Gateway) writeDeny(w http.ResponseWriter, fc *filter.FilterContext) {
	switch fc.HaltedBy {
	case "content":
		writeReject(w, http.StatusUnprocessableEntity, api.RejectResponse{
			Error:    CodeContentBlocked,
			Blocked:  true,
			Reason:   fc.Result.Reason,
			Category: fc.Result.Category,
			Rule:     fc.Result.Rule,
		})
	case "rate_limit":
		writeReject(w, http.StatusTooManyRequests, api.RejectResponse{
			Error:   CodeRateLimited,
			Blocked: true,
			Reason:  fc.VerdictMessage,
			Rule:    fc.MatchedRule,
		})
	default:
		writeReject(w, http.StatusForbidden, api.RejectResponse{
			Error:   CodeModeration,
			Blocked: true,
			Reason:  firstNonEmpty(fc.VerdictMessage, "post denied by policy"),
			Rule:    fc.MatchedRule,
		})
	}
}

func (g *Gateway) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	g.logger.Error("upstream error", "error", err, "url", r.URL.String())
	if g.recorder != nil {
		g.recorder.RecordUpstreamError()
	}
	writeReject(w, http.StatusBadGateway, api.RejectResponse{Error: CodeUpstream, Reason: "upstream request failed"})
}

func writeReject(w http.ResponseWriter, status int, resp api.RejectResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ListenAndServe starts the gateway and shuts it down when ctx is canceled.
func (g *Gateway) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           g,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	g.logger.Info("starting gateway",
		"listen", addr,
		"upstream", g.target.String(),
		"post_path", g.cfg.PostPath,
	)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
