package config

import "time"

const (
	DefaultListen          = ":8088"
	DefaultUpstream        = "http://localhost:3000"
	DefaultPostPath        = "/api/posts"
	DefaultContentField    = "content"
	DefaultAgentField      = "agent"
	DefaultMaxBodyBytes    = 64 << 10
	DefaultDashboardAddr   = "127.0.0.1:8089"
	DefaultApprovalTimeout = 5 * time.Minute
)

// Environment variables that override policy settings.
const (
	EnvUpstream       = "POSTGUARD_UPSTREAM"
	EnvListen         = "POSTGUARD_LISTEN"
	EnvKnownContracts = "POSTGUARD_KNOWN_CONTRACTS"
)

// DefaultLogDir returns the default log directory path.
func DefaultLogDir() string {
	return "~/.postguard/logs"
}
