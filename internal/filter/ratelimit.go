package filter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tkingovr/postguard/api"
)

// anonymousAgent is the rate limit key for posts without an author.
const anonymousAgent = "_anonymous"

// RateLimitConfig defines rate limiting rules.
type RateLimitConfig struct {
	// Global is the global rate limit (posts per window across all agents).
	Global *RateLimit

	// PerAgent applies separately to each agent.
	PerAgent *RateLimit
}

// RateLimit defines a single rate limit: max posts per time window.
type RateLimit struct {
	Max    int
	Window time.Duration
}

// slidingWindow tracks post timestamps for rate limiting.
type slidingWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// RateLimitFilter enforces per-agent and global rate limits using a sliding window.
type RateLimitFilter struct {
	config  RateLimitConfig
	mu      sync.Mutex
	windows map[string]*slidingWindow // key: "agent:<name>" or "_global"
	now     func() time.Time
}

// NewRateLimitFilter creates a new rate limit filter.
func NewRateLimitFilter(config RateLimitConfig) *RateLimitFilter {
	return &RateLimitFilter{
		config:  config,
		windows: make(map[string]*slidingWindow),
		now:     time.Now,
	}
}

func (f *RateLimitFilter) Name() string { return "rate_limit" }

func (f *RateLimitFilter) Process(_ context.Context, fc *FilterContext) error {
	if fc.Halted {
		return nil
	}

	now := f.now()

	if limit := f.config.PerAgent; limit != nil {
		agent := fc.Agent
		if agent == "" {
			agent = anonymousAgent
		}
		if !f.allow("agent:"+agent, limit, now) {
			fc.halt(f.Name(), api.VerdictDeny, "rate_limit:"+agent,
				fmt.Sprintf("rate limit exceeded for agent %q: max %d per %s", agent, limit.Max, limit.Window))
			return nil
		}
	}

	if limit := f.config.Global; limit != nil {
		if !f.allow("_global", limit, now) {
			fc.halt(f.Name(), api.VerdictDeny, "rate_limit:global",
				fmt.Sprintf("global rate limit exceeded: max %d per %s", limit.Max, limit.Window))
			return nil
		}
	}

	return nil
}

// allow checks if a post is allowed under the given rate limit.
func (f *RateLimitFilter) allow(key string, limit *RateLimit, now time.Time) bool {
	f.mu.Lock()
	w, ok := f.windows[key]
	if !ok {
		w = &slidingWindow{}
		f.windows[key] = w
	}
	f.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	// Remove expired timestamps
	cutoff := now.Add(-limit.Window)
	valid := 0
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			w.timestamps[valid] = ts
			valid++
		}
	}
	w.timestamps = w.timestamps[:valid]

	if len(w.timestamps) >= limit.Max {
		return false
	}

	w.timestamps = append(w.timestamps, now)
	return true
}

// Reset clears all rate limit windows.
func (f *RateLimitFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = make(map[string]*slidingWindow)
}
