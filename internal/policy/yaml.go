package policy

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sync"

	"github.com/tkingovr/postguard/api"
)

// YAMLEngine implements first-match-wins moderation using YAML rules.
type YAMLEngine struct {
	mu   sync.RWMutex
	file *PolicyFile
	path string

	// compiled content regexes keyed by rule name
	regexCache map[string]*regexp.Regexp
}

// NewYAMLEngine creates a new YAML moderation engine from a file path.
func NewYAMLEngine(path string) (*YAMLEngine, error) {
	e := &YAMLEngine{path: path}
	if err := e.Reload(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// NewYAMLEngineFromPolicy creates a new YAML moderation engine from an already-loaded policy.
func NewYAMLEngineFromPolicy(pf *PolicyFile) (*YAMLEngine, error) {
	cache, err := compileRegexes(pf)
	if err != nil {
		return nil, err
	}
	return &YAMLEngine{file: pf, regexCache: cache}, nil
}

// Evaluate checks the input against moderation rules in order, returning
// the first match.
func (e *YAMLEngine) Evaluate(_ context.Context, input *EvalInput) (*EvalResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for i := range e.file.Moderation {
		rule := &e.file.Moderation[i]
		if e.matches(rule, input) {
			return &EvalResult{
				Verdict: api.Verdict(rule.Action),
				Rule:    rule.Name,
				Message: rule.Message,
			}, nil
		}
	}

	verdict := e.file.Settings.DefaultAction
	if verdict == "" {
		verdict = api.VerdictAllow
	}
	return &EvalResult{
		Verdict: verdict,
		Rule:    "_default",
		Message: "no matching moderation rule; default action applied",
	}, nil
}

// Reload re-reads the policy file from disk.
func (e *YAMLEngine) Reload(_ context.Context) error {
	if e.path == "" {
		return nil
	}
	pf, err := LoadFile(e.path)
	if err != nil {
		return err
	}
	cache, err := compileRegexes(pf)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.file = pf
	e.regexCache = cache
	return nil
}

// Policy returns the current loaded policy (for dashboard display).
func (e *YAMLEngine) Policy() *PolicyFile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.file
}

func compileRegexes(pf *PolicyFile) (map[string]*regexp.Regexp, error) {
	cache := make(map[string]*regexp.Regexp)
	for _, rule := range pf.Moderation {
		if rule.Match.Content == nil || rule.Match.Content.Regex == "" {
			continue
		}
		re, err := regexp.Compile(rule.Match.Content.Regex)
		if err != nil {
			return nil, fmt.Errorf("moderation rule %q content: %w", rule.Name, err)
		}
		cache[rule.Name] = re
	}
	return cache, nil
}

func (e *YAMLEngine) matches(rule *ModerationRule, input *EvalInput) bool {
	if rule.Match.Agent != "" {
		ok, err := path.Match(rule.Match.Agent, input.Agent)
		if err != nil || !ok {
			return false
		}
	}

	c := rule.Match.Content
	if c == nil {
		return true
	}
	if c.Exact != "" {
		return input.Content == c.Exact
	}
	if c.Regex != "" {
		re, ok := e.regexCache[rule.Name]
		if !ok {
			return false
		}
		return re.MatchString(input.Content)
	}
	return true
}
