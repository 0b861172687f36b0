package policy

import (
	"github.com/tkingovr/postguard/api"
)

// PolicyFile represents the top-level YAML policy configuration.
type PolicyFile struct {
	Version            int              `yaml:"version" json:"version"`
	Settings           Settings         `yaml:"settings" json:"settings"`
	KnownContracts     []string         `yaml:"known_contracts,omitempty" json:"known_contracts,omitempty"`
	KnownContractsFile string           `yaml:"known_contracts_file,omitempty" json:"known_contracts_file,omitempty"`
	Rules              []ContentRule    `yaml:"rules,omitempty" json:"rules,omitempty"`
	Moderation         []ModerationRule `yaml:"moderation,omitempty" json:"moderation,omitempty"`
}

// Settings contains global gateway settings.
type Settings struct {
	Listen          string             `yaml:"listen" json:"listen"`
	Upstream        string             `yaml:"upstream" json:"upstream"`
	PostPath        string             `yaml:"post_path" json:"post_path"`
	ContentField    string             `yaml:"content_field" json:"content_field"`
	AgentField      string             `yaml:"agent_field" json:"agent_field"`
	MaxBodyBytes    int64              `yaml:"max_body_bytes" json:"max_body_bytes"`
	DefaultAction   api.Verdict        `yaml:"default_action" json:"default_action"`
	LogDir          string             `yaml:"log_dir" json:"log_dir"`
	DashboardAddr   string             `yaml:"dashboard_addr" json:"dashboard_addr"`
	ApprovalTimeout string             `yaml:"approval_timeout" json:"approval_timeout"`
	OPAPolicy       string             `yaml:"opa_policy,omitempty" json:"opa_policy,omitempty"`
	RateLimit       *RateLimitSettings `yaml:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}

// RateLimitSettings configures rate limiting of post submissions.
type RateLimitSettings struct {
	Global   *RateLimitRule `yaml:"global,omitempty" json:"global,omitempty"`
	PerAgent *RateLimitRule `yaml:"per_agent,omitempty" json:"per_agent,omitempty"`
}

// RateLimitRule defines a rate limit: max posts per time window.
type RateLimitRule struct {
	Max    int    `yaml:"max" json:"max"`
	Window string `yaml:"window" json:"window"`
}

// ContentRule is an operator-defined classifier rule appended to the
// built-in rules of its category.
type ContentRule struct {
	Name     string       `yaml:"name" json:"name"`
	Category api.Category `yaml:"category" json:"category"`
	Pattern  string       `yaml:"pattern" json:"pattern"`
	Reason   string       `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// ModerationRule is evaluated after the classifier allows a post.
type ModerationRule struct {
	Name    string          `yaml:"name" json:"name"`
	Match   ModerationMatch `yaml:"match" json:"match"`
	Action  string          `yaml:"action" json:"action"`
	Message string          `yaml:"message,omitempty" json:"message,omitempty"`
}

// ModerationMatch specifies conditions for matching a post. Agent is a
// glob pattern; an empty field matches anything.
type ModerationMatch struct {
	Agent   string     `yaml:"agent,omitempty" json:"agent,omitempty"`
	Content *TextMatch `yaml:"content,omitempty" json:"content,omitempty"`
}

// TextMatch specifies a matching condition for post text.
type TextMatch struct {
	Exact string `yaml:"exact,omitempty" json:"exact,omitempty"`
	Regex string `yaml:"regex,omitempty" json:"regex,omitempty"`
}

// EvalInput is the input to a policy engine evaluation.
type EvalInput struct {
	Agent   string `json:"agent"`
	Content string `json:"content"`
}

// EvalResult is the output of a policy engine evaluation.
type EvalResult struct {
	Verdict api.Verdict `json:"verdict"`
	Rule    string      `json:"rule,omitempty"`
	Message string      `json:"message,omitempty"`
}
