package filter

import (
	"log/slog"
	"time"

	"github.com/tkingovr/postguard/internal/audit"
	"github.com/tkingovr/postguard/internal/policy"
)

// ChainConfig holds the configuration for building the post chain.
type ChainConfig struct {
	Classifier   Classifier
	Engine       policy.Engine
	AuditStore   audit.Store
	Metrics      DecisionRecorder
	Logger       *slog.Logger
	ContentField string
	AgentField   string
	RateLimit    *RateLimitConfig
}

// BuildPostChain constructs the post submission chain:
// parse, rate limit, content, policy, metrics, audit.
func BuildPostChain(cfg ChainConfig) *Chain {
	filters := []Filter{
		NewParseFilter(cfg.ContentField, cfg.AgentField),
	}

	if cfg.RateLimit != nil {
		filters = append(filters, NewRateLimitFilter(*cfg.RateLimit))
	}

	// The classifier always runs before moderation so that operator
	// rules cannot allow unsafe content.
	filters = append(filters, NewContentFilter(cfg.Classifier))

	if cfg.Engine != nil {
		filters = append(filters, NewPolicyFilter(cfg.Engine))
	}
	if cfg.Metrics != nil {
		filters = append(filters, NewMetricsFilter(cfg.Metrics))
	}

	// Audit is always last
	if cfg.AuditStore != nil {
		filters = append(filters, NewAuditFilter(cfg.AuditStore))
	}

	return NewChain(cfg.Logger, filters...)
}

// RateLimitConfigFromPolicy converts policy rate limit settings to filter
// config. Windows are validated when the policy is loaded.
func RateLimitConfigFromPolicy(settings *policy.RateLimitSettings) *RateLimitConfig {
	if settings == nil {
		return nil
	}

	cfg := &RateLimitConfig{
		Global:   toRateLimit(settings.Global),
		PerAgent: toRateLimit(settings.PerAgent),
	}
	if cfg.Global == nil && cfg.PerAgent == nil {
		return nil
	}
	return cfg
}

func toRateLimit(r *policy.RateLimitRule) *RateLimit {
	if r == nil {
		return nil
	}
	d, err := time.ParseDuration(r.Window)
	if err != nil || d <= 0 {
		return nil
	}
	return &RateLimit{Max: r.Max, Window: d}
}
