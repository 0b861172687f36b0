package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tkingovr/postguard/api"
	"github.com/tkingovr/postguard/internal/approval"
)

// maxClassifyBytes bounds the classify endpoint request body.
const maxClassifyBytes = 1 << 20

type countRow struct {
	Name  string
	Count int
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	stats, err := s.auditStore.Stats(r.Context())
	if err != nil {
		http.Error(w, "failed to get stats", http.StatusInternalServerError)
		return
	}

	byCategory := make([]countRow, 0, len(api.Categories()))
	for _, c := range api.Categories() {
		byCategory = append(byCategory, countRow{Name: string(c), Count: stats.ByCategory[c]})
	}

	data := map[string]any{
		"Page":       "overview",
		"Stats":      stats,
		"ByCategory": byCategory,
		"TopAgents":  topCounts(stats.ByAgent, 10),
	}
	renderPage(w, "overview", data)
}

func topCounts(m map[string]int, n int) []countRow {
	rows := make([]countRow, 0, len(m))
	for k, v := range m {
		rows = append(rows, countRow{Name: k, Count: v})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Name < rows[j].Name
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := parseQueryFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if filter.Limit == 0 {
		filter.Limit = 100
	}

	records, err := s.auditStore.Query(r.Context(), filter)
	if err != nil {
		http.Error(w, "failed to query audit log", http.StatusInternalServerError)
		return
	}

	data := map[string]any{
		"Page":       "audit",
		"Records":    records,
		"Filter":     filter,
		"Categories": api.Categories(),
	}
	renderPage(w, "audit", data)
}

// parseQueryFilter reads agent, category, verdict, since, until, limit and
// offset from the query string.
func parseQueryFilter(r *http.Request) (api.QueryFilter, error) {
	q := r.URL.Query()
	f := api.QueryFilter{
		Agent:    q.Get("agent"),
		Category: api.Category(q.Get("category")),
		Verdict:  api.Verdict(q.Get("verdict")),
	}
	if f.Category != "" && !f.Category.Valid() {
		return f, fmt.Errorf("unknown category %q", f.Category)
	}
	for name, dst := range map[string]*time.Time{"since": &f.Since, "until": &f.Until} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return f, fmt.Errorf("invalid %s: %w", name, err)
			}
			*dst = t
		}
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, fmt.Errorf("invalid %s %q", name, v)
			}
			*dst = n
		}
	}
	return f, nil
}

func (s *Server) handleAuditStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch, cancel := s.auditStore.Subscribe(r.Context())
	defer cancel()

	for {
		select {
		case record, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: audit\ndata: %s\n\n", renderAuditRow(record))
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleApproval(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Page":    "approval",
		"Pending": s.approvalQ.Pending(),
		"All":     s.approvalQ.All(),
	}
	renderPage(w, "approval", data)
}

func (s *Server) handleApprovalAction(w http.ResponseWriter, r *http.Request) {
	s.resolveApproval(w, r, s.approvalQ.Approve)
}

func (s *Server) handleApprovalDenyAction(w http.ResponseWriter, r *http.Request) {
	s.resolveApproval(w, r, s.approvalQ.Deny)
}

func (s *Server) resolveApproval(w http.ResponseWriter, r *http.Request, resolve func(string) error) {
	id := r.PathValue("id")
	if err := resolve(id); err != nil {
		switch {
		case errors.Is(err, approval.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, approval.ErrResolved):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	s.logger.Info("approval decided", "id", id, "path", r.URL.Path)
	// HTMX: return updated approval list
	s.handleApproval(w, r)
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Page":      "catalog",
		"Groups":    s.classifier.Groups(),
		"Contracts": s.classifier.Allowlist().Addresses(),
		"RuleCount": s.classifier.RuleCount(),
	}
	renderPage(w, "catalog", data)
}

func (s *Server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	var policyYAML []byte
	if s.policy != nil {
		policyYAML, _ = yaml.Marshal(s.policy)
	}

	data := map[string]any{
		"Page":       "policy",
		"PolicyYAML": string(policyYAML),
		"Policy":     s.policy,
	}
	renderPage(w, "policy", data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.auditStore.Stats(r.Context())
	if err != nil {
		http.Error(w, "failed to get stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAPIAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := parseQueryFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	records, err := s.auditStore.Query(r.Context(), filter)
	if err != nil {
		http.Error(w, "failed to query audit log", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*api.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleAPIApprovals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.approvalQ.Pending())
}

func (s *Server) handleAPIClassify(w http.ResponseWriter, r *http.Request) {
	var req api.ClassifyRequest
	body := http.MaxBytesReader(w, r.Body, maxClassifyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	writeJSON(w, http.StatusOK, s.classifier.Classify(req.Content))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func renderAuditRow(record *api.AuditRecord) string {
	return fmt.Sprintf(
		`<tr class="border-b border-gray-700 hover:bg-gray-800"><td class="px-4 py-2 text-gray-400 text-xs">%s</td><td class="px-4 py-2">%s</td><td class="px-4 py-2 font-mono text-xs max-w-md truncate">%s</td><td class="px-4 py-2"><span class="px-2 py-1 rounded text-xs font-bold %s">%s</span></td><td class="px-4 py-2">%s</td><td class="px-4 py-2 text-gray-400 text-xs">%s</td></tr>`,
		record.Timestamp.Format("15:04:05"),
		escapeHTML(record.Agent),
		escapeHTML(record.Preview),
		verdictColor(record.Verdict),
		strings.ToUpper(string(record.Verdict)),
		escapeHTML(string(record.Category)),
		escapeHTML(record.Rule),
	)
}

func verdictColor(v api.Verdict) string {
	switch v {
	case api.VerdictAllow:
		return "bg-green-900 text-green-300"
	case api.VerdictDeny:
		return "bg-red-900 text-red-300"
	case api.VerdictAsk:
		return "bg-yellow-900 text-yellow-300"
	case api.VerdictLog:
		return "bg-blue-900 text-blue-300"
	default:
		return "bg-gray-700 text-gray-300"
	}
}

func escapeHTML(s string) string {
	return template.HTMLEscapeString(s)
}
