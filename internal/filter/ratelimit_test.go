package filter

import (
	"context"
	"testing"
	"time"

	"github.com/tkingovr/postguard/api"
	"github.com/tkingovr/postguard/internal/policy"
)

func submit(t *testing.T, f *RateLimitFilter, agent string) *FilterContext {
	t.Helper()
	fc := NewFilterContext(nil)
	fc.Agent = agent
	if err := f.Process(context.Background(), fc); err != nil {
		t.Fatal(err)
	}
	return fc
}

func TestRateLimiter_PerAgentLimit(t *testing.T) {
	f := NewRateLimitFilter(RateLimitConfig{
		PerAgent: &RateLimit{Max: 3, Window: time.Minute},
	})

	for i := 0; i < 3; i++ {
		if fc := submit(t, f, "agent-1"); fc.Halted {
			t.Errorf("post %d should not be rate limited", i+1)
		}
	}

	fc := submit(t, f, "agent-1")
	if !fc.Halted {
		t.Error("4th post should be rate limited")
	}
	if fc.Verdict != api.VerdictDeny {
		t.Errorf("expected deny, got %s", fc.Verdict)
	}
	if fc.MatchedRule != "rate_limit:agent-1" || fc.HaltedBy != "rate_limit" {
		t.Errorf("unexpected rule %s halted by %s", fc.MatchedRule, fc.HaltedBy)
	}

	// Other agents have their own window.
	if fc := submit(t, f, "agent-2"); fc.Halted {
		t.Error("agent-2 should not be rate limited")
	}
}

func TestRateLimiter_AnonymousShareWindow(t *testing.T) {
	f := NewRateLimitFilter(RateLimitConfig{
		PerAgent: &RateLimit{Max: 1, Window: time.Minute},
	})
	submit(t, f, "")
	if fc := submit(t, f, ""); fc.MatchedRule != "rate_limit:"+anonymousAgent {
		t.Errorf("expected anonymous limit, got %q", fc.MatchedRule)
	}
}

func TestRateLimiter_GlobalLimit(t *testing.T) {
	f := NewRateLimitFilter(RateLimitConfig{
		Global: &RateLimit{Max: 2, Window: time.Minute},
	})

	for _, agent := range []string{"a", "b"} {
		if fc := submit(t, f, agent); fc.Halted {
			t.Errorf("post by %s should not be rate limited", agent)
		}
	}

	fc := submit(t, f, "c")
	if !fc.Halted {
		t.Error("3rd post should hit the global limit")
	}
	if fc.MatchedRule != "rate_limit:global" {
		t.Errorf("expected rule rate_limit:global, got %s", fc.MatchedRule)
	}
}

func TestRateLimiter_WindowExpiry(t *testing.T) {
	f := NewRateLimitFilter(RateLimitConfig{
		PerAgent: &RateLimit{Max: 1, Window: time.Minute},
	})
	now := time.Now()
	f.now = func() time.Time { return now }

	submit(t, f, "a")
	if fc := submit(t, f, "a"); !fc.Halted {
		t.Fatal("second post inside the window should be limited")
	}

	now = now.Add(61 * time.Second)
	if fc := submit(t, f, "a"); fc.Halted {
		t.Error("post after the window should be allowed")
	}
}

func TestRateLimiter_SkipHalted(t *testing.T) {
	f := NewRateLimitFilter(RateLimitConfig{
		Global: &RateLimit{Max: 0, Window: time.Minute},
	})

	fc := NewFilterContext(nil)
	fc.Halted = true
	fc.Verdict = api.VerdictDeny
	fc.MatchedRule = "earlier"
	if err := f.Process(context.Background(), fc); err != nil {
		t.Fatal(err)
	}
	if fc.MatchedRule != "earlier" {
		t.Error("rate limiter should skip halted posts")
	}
}

func TestRateLimiter_Reset(t *testing.T) {
	f := NewRateLimitFilter(RateLimitConfig{
		Global: &RateLimit{Max: 1, Window: time.Minute},
	})
	submit(t, f, "a")
	f.Reset()
	if fc := submit(t, f, "a"); fc.Halted {
		t.Error("post after reset should be allowed")
	}
}

func TestRateLimitConfigFromPolicy(t *testing.T) {
	if cfg := RateLimitConfigFromPolicy(nil); cfg != nil {
		t.Error("expected nil for nil settings")
	}
	if cfg := RateLimitConfigFromPolicy(&policy.RateLimitSettings{}); cfg != nil {
		t.Error("expected nil when no limits are set")
	}

	cfg := RateLimitConfigFromPolicy(&policy.RateLimitSettings{
		PerAgent: &policy.RateLimitRule{Max: 20, Window: "1m"},
	})
	if cfg == nil || cfg.PerAgent == nil {
		t.Fatal("expected per-agent limit")
	}
	if cfg.PerAgent.Max != 20 || cfg.PerAgent.Window != time.Minute {
		t.Errorf("unexpected limit %+v", cfg.PerAgent)
	}
	if cfg.Global != nil {
		t.Error("expected no global limit")
	}

	cfg = RateLimitConfigFromPolicy(&policy.RateLimitSettings{
		PerAgent: &policy.RateLimitRule{Max: 20, Window: "-1m"},
	})
	if cfg != nil {
		t.Errorf("expected non-positive window to be ignored, got %+v", cfg)
	}
}
