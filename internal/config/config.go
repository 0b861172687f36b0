package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tkingovr/postguard/api"
	"github.com/tkingovr/postguard/internal/classifier"
	"github.com/tkingovr/postguard/internal/policy"
)

// Config is the runtime configuration for postguard.
type Config struct {
	PolicyFile      *policy.PolicyFile
	PolicyPath      string
	Listen          string
	Upstream        string
	PostPath        string
	ContentField    string
	AgentField      string
	MaxBodyBytes    int64
	LogDir          string
	DashboardAddr   string
	ApprovalTimeout time.Duration
	DefaultAction   api.Verdict

	// Classifier is built from the merged allowlist and the policy's
	// extra rules.
	Classifier *classifier.Classifier
}

// Load reads a policy YAML file and produces a runtime Config.
func Load(path string) (*Config, error) {
	pf, err := policy.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return fromPolicy(pf, path)
}

// LoadBytes parses YAML data and produces a runtime Config.
func LoadBytes(data []byte) (*Config, error) {
	pf, err := policy.LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return fromPolicy(pf, "")
}

// DefaultConfig returns a config with defaults for when no config file is
// given. Environment overrides still apply.
func DefaultConfig() (*Config, error) {
	return fromPolicy(&policy.PolicyFile{
		Version: 1,
		Settings: policy.Settings{
			DefaultAction: api.VerdictAllow,
		},
	}, "")
}

func fromPolicy(pf *policy.PolicyFile, path string) (*Config, error) {
	s := pf.Settings
	cfg := &Config{
		PolicyFile:    pf,
		PolicyPath:    path,
		Listen:        firstNonEmpty(os.Getenv(EnvListen), s.Listen, DefaultListen),
		Upstream:      firstNonEmpty(os.Getenv(EnvUpstream), s.Upstream, DefaultUpstream),
		PostPath:      firstNonEmpty(s.PostPath, DefaultPostPath),
		ContentField:  firstNonEmpty(s.ContentField, DefaultContentField),
		AgentField:    firstNonEmpty(s.AgentField, DefaultAgentField),
		MaxBodyBytes:  s.MaxBodyBytes,
		LogDir:        expandHome(firstNonEmpty(s.LogDir, DefaultLogDir())),
		DashboardAddr: firstNonEmpty(s.DashboardAddr, DefaultDashboardAddr),
		DefaultAction: s.DefaultAction,
	}
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.DefaultAction == "" {
		cfg.DefaultAction = api.VerdictAllow
	}

	if s.ApprovalTimeout != "" {
		d, err := time.ParseDuration(s.ApprovalTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid approval_timeout %q: %w", s.ApprovalTimeout, err)
		}
		cfg.ApprovalTimeout = d
	} else {
		cfg.ApprovalTimeout = DefaultApprovalTimeout
	}

	contracts, err := knownContracts(pf, path)
	if err != nil {
		return nil, err
	}
	allow, err := classifier.NewAllowlist(contracts...)
	if err != nil {
		return nil, fmt.Errorf("known contracts: %w", err)
	}

	opts := make([]classifier.Option, 0, len(pf.Rules))
	for _, r := range pf.Rules {
		reason := r.Reason
		if reason == "" {
			reason = fmt.Sprintf("Content matched custom rule %s", r.Name)
		}
		// Custom patterns are matched case-insensitively.
		rule, err := classifier.CompilePattern(r.Name, reason, "(?i)"+r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("custom rules: %w", err)
		}
		opts = append(opts, classifier.WithExtraRules(r.Category, rule))
	}

	cfg.Classifier, err = classifier.New(allow, opts...)
	if err != nil {
		return nil, fmt.Errorf("building classifier: %w", err)
	}
	return cfg, nil
}

// knownContracts merges the inline list, the contracts file and the
// environment override.
func knownContracts(pf *policy.PolicyFile, policyPath string) ([]string, error) {
	out := append([]string(nil), pf.KnownContracts...)

	if pf.KnownContractsFile != "" {
		p := expandHome(pf.KnownContractsFile)
		if !filepath.IsAbs(p) && policyPath != "" {
			p = filepath.Join(filepath.Dir(policyPath), p)
		}
		fromFile, err := readContractsFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, fromFile...)
	}

	if env := os.Getenv(EnvKnownContracts); env != "" {
		out = append(out, strings.Split(env, ",")...)
	}
	return out, nil
}

// readContractsFile reads one address per line. Blank lines and lines
// starting with # are ignored.
func readContractsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading known contracts file: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading known contracts file: %w", err)
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
