package api

import "time"

// QueryFilter defines criteria for querying audit records.
type QueryFilter struct {
	Since    time.Time `json:"since,omitempty"`
	Until    time.Time `json:"until,omitempty"`
	Agent    string    `json:"agent,omitempty"`
	Category Category  `json:"category,omitempty"`
	Verdict  Verdict   `json:"verdict,omitempty"`
	Limit    int       `json:"limit,omitempty"`
	Offset   int       `json:"offset,omitempty"`
}

// AuditStats provides summary statistics for the dashboard.
type AuditStats struct {
	TotalPosts int              `json:"total_posts"`
	AllowCount int              `json:"allow_count"`
	DenyCount  int              `json:"deny_count"`
	AskCount   int              `json:"ask_count"`
	LogCount   int              `json:"log_count"`
	ByCategory map[Category]int `json:"by_category"`
	ByAgent    map[string]int   `json:"by_agent"`
}
