package api

import "time"

// Verdict represents the outcome of the post gate.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictDeny  Verdict = "deny"
	VerdictAsk   Verdict = "ask"
	VerdictLog   Verdict = "log"
)

// Category identifies which pattern group blocked a piece of content.
//
// The values are part of the moderation contract: downstream tooling keys off
// these strings, so existing values must never be renamed. New categories are
// appended to the end of Categories.
type Category string

const (
	CategoryShellCommand          Category = "shell_command"
	CategorySecretLeak            Category = "secret_leak"
	CategorySuspiciousTransaction Category = "suspicious_transaction"
	CategorySocialEngineering     Category = "social_engineering"
	CategorySuspiciousURL         Category = "suspicious_url"
)

// Categories returns every category in evaluation (priority) order.
func Categories() []Category {
	return []Category{
		CategoryShellCommand,
		CategorySecretLeak,
		CategorySuspiciousTransaction,
		CategorySocialEngineering,
		CategorySuspiciousURL,
	}
}

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// FilterResult is the classifier decision for a single piece of content.
// Reason, Category and Rule are set if and only if Blocked is true.
type FilterResult struct {
	Blocked  bool     `json:"blocked"`
	Reason   string   `json:"reason,omitempty"`
	Category Category `json:"category,omitempty"`
	Rule     string   `json:"rule,omitempty"`
}

// Allowed is the result for content that matched no rule.
func Allowed() FilterResult {
	return FilterResult{}
}

// AuditRecord represents a single gate decision.
type AuditRecord struct {
	ID            string        `json:"id"`
	Timestamp     time.Time     `json:"timestamp"`
	Agent         string        `json:"agent,omitempty"`
	Verdict       Verdict       `json:"verdict"`
	Category      Category      `json:"category,omitempty"`
	Rule          string        `json:"rule,omitempty"`
	Message       string        `json:"message,omitempty"`
	Preview       string        `json:"preview,omitempty"`
	ContentSHA256 string        `json:"content_sha256,omitempty"`
	RawSize       int           `json:"raw_size,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
}

// ClassifyRequest is the body accepted by the dashboard classify endpoint.
type ClassifyRequest struct {
	Content string `json:"content"`
}

// RejectResponse is returned by the gateway when a post is not accepted.
type RejectResponse struct {
	Error    string   `json:"error"`
	Blocked  bool     `json:"blocked"`
	Reason   string   `json:"reason,omitempty"`
	Category Category `json:"category,omitempty"`
	Rule     string   `json:"rule,omitempty"`
}
