package policy

import (
	"fmt"
	"os"
	"path"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tkingovr/postguard/api"
)

// LoadFile reads and validates a YAML policy file.
func LoadFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates YAML policy data.
func LoadBytes(data []byte) (*PolicyFile, error) {
	var pf PolicyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}
	if err := validate(&pf); err != nil {
		return nil, err
	}
	return &pf, nil
}

var validActions = map[string]bool{
	"allow": true, "deny": true, "ask": true, "log": true,
}

func validate(pf *PolicyFile) error {
	if pf.Version != 1 {
		return fmt.Errorf("unsupported policy version: %d (expected 1)", pf.Version)
	}

	if pf.Settings.DefaultAction == "" {
		pf.Settings.DefaultAction = api.VerdictAllow
	}
	if !validActions[string(pf.Settings.DefaultAction)] {
		return fmt.Errorf("settings: invalid default_action %q", pf.Settings.DefaultAction)
	}
	if pf.Settings.MaxBodyBytes < 0 {
		return fmt.Errorf("settings: max_body_bytes must not be negative")
	}
	if pf.Settings.ApprovalTimeout != "" {
		if _, err := time.ParseDuration(pf.Settings.ApprovalTimeout); err != nil {
			return fmt.Errorf("settings: approval_timeout: %w", err)
		}
	}
	if rl := pf.Settings.RateLimit; rl != nil {
		if err := validateRateLimit("global", rl.Global); err != nil {
			return err
		}
		if err := validateRateLimit("per_agent", rl.PerAgent); err != nil {
			return err
		}
	}

	seen := make(map[string]bool, len(pf.Rules))
	for i, rule := range pf.Rules {
		if rule.Name == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		if seen[rule.Name] {
			return fmt.Errorf("rule %q: duplicate name", rule.Name)
		}
		seen[rule.Name] = true
		if !rule.Category.Valid() {
			return fmt.Errorf("rule %q: unknown category %q", rule.Name, rule.Category)
		}
		if rule.Pattern == "" {
			return fmt.Errorf("rule %q: pattern is required", rule.Name)
		}
		if _, err := regexp.Compile(rule.Pattern); err != nil {
			return fmt.Errorf("rule %q: pattern invalid: %w", rule.Name, err)
		}
	}

	for i, rule := range pf.Moderation {
		if rule.Name == "" {
			return fmt.Errorf("moderation rule %d: name is required", i)
		}
		if !validActions[rule.Action] {
			return fmt.Errorf("moderation rule %q: invalid action %q", rule.Name, rule.Action)
		}
		if rule.Match.Agent != "" {
			if _, err := path.Match(rule.Match.Agent, ""); err != nil {
				return fmt.Errorf("moderation rule %q: agent pattern invalid: %w", rule.Name, err)
			}
		}
		if c := rule.Match.Content; c != nil && c.Regex != "" {
			if _, err := regexp.Compile(c.Regex); err != nil {
				return fmt.Errorf("moderation rule %q: content regex invalid: %w", rule.Name, err)
			}
		}
	}

	return nil
}

func validateRateLimit(name string, r *RateLimitRule) error {
	if r == nil {
		return nil
	}
	if r.Max <= 0 {
		return fmt.Errorf("settings: rate_limit.%s.max must be positive", name)
	}
	d, err := time.ParseDuration(r.Window)
	if err != nil {
		return fmt.Errorf("settings: rate_limit.%s.window: %w", name, err)
	}
	if d <= 0 {
		return fmt.Errorf("settings: rate_limit.%s.window must be positive", name)
	}
	return nil
}
