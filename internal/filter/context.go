package filter

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/tkingovr/postguard/api"
)

// previewLen bounds how much post text is kept in audit records.
const previewLen = 120

// FilterContext carries all metadata through the filter chain for a single
// post submission.
type FilterContext struct {
	// Raw is the original request body.
	Raw []byte

	// Post is the decoded JSON body (set by ParseFilter).
	Post map[string]any

	// Agent identifies the author. The gateway may preset it from a header;
	// ParseFilter overrides it when the body carries the agent field.
	Agent string

	// Content is the post text submitted for classification.
	Content string

	// Result is the classifier outcome (set by ContentFilter).
	Result api.FilterResult

	// Verdict is the gate decision.
	Verdict api.Verdict

	// MatchedRule is the name of the rule that decided the verdict.
	MatchedRule string

	// VerdictMessage is the human-readable explanation.
	VerdictMessage string

	// HaltedBy names the filter that halted the post.
	HaltedBy string

	// StartTime records when the post entered the pipeline.
	StartTime time.Time

	// Halted indicates a deny or ask was decided.
	Halted bool

	// Invalid is set by ParseFilter when the body is not a usable post. It
	// wraps ErrInvalidPost.
	Invalid error
}

// NewFilterContext creates a new FilterContext for a request body.
func NewFilterContext(raw []byte) *FilterContext {
	return &FilterContext{
		Raw:       raw,
		StartTime: time.Now(),
	}
}

// halt records a final deny or ask decision.
func (fc *FilterContext) halt(by string, verdict api.Verdict, rule, message string) {
	fc.Verdict = verdict
	fc.MatchedRule = rule
	fc.VerdictMessage = message
	fc.HaltedBy = by
	fc.Halted = true
}

// ToAuditRecord converts the filter context into an audit record. The post
// text is reduced to a short preview and a SHA-256 digest.
func (fc *FilterContext) ToAuditRecord() *api.AuditRecord {
	rec := &api.AuditRecord{
		ID:        uuid.NewString(),
		Timestamp: fc.StartTime,
		Agent:     fc.Agent,
		Verdict:   fc.Verdict,
		Category:  fc.Result.Category,
		Rule:      fc.MatchedRule,
		Message:   fc.VerdictMessage,
		Preview:   Preview(fc.Content),
		RawSize:   len(fc.Raw),
		Duration:  time.Since(fc.StartTime),
	}
	if fc.Content != "" {
		sum := sha256.Sum256([]byte(fc.Content))
		rec.ContentSHA256 = hex.EncodeToString(sum[:])
	}
	return rec
}

// Preview shortens post text for display, keeping whole runes.
func Preview(content string) string {
	r := []rune(content)
	if len(r) <= previewLen {
		return content
	}
	return string(r[:previewLen]) + "..."
}
