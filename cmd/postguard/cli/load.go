package cli

import (
	"fmt"
	"path/filepath"

	"github.com/tkingovr/postguard/internal/config"
	"github.com/tkingovr/postguard/internal/policy"
)

// loadConfig reads --config when given and falls back to defaults.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		cfg, err := config.DefaultConfig()
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildEngine selects the moderation engine: the Rego policy when
// settings.opa_policy is set, the YAML moderation rules otherwise.
func buildEngine(cfg *config.Config) (policy.Engine, error) {
	if regoPath := cfg.PolicyFile.Settings.OPAPolicy; regoPath != "" {
		if !filepath.IsAbs(regoPath) && cfg.PolicyPath != "" {
			regoPath = filepath.Join(filepath.Dir(cfg.PolicyPath), regoPath)
		}
		engine, err := policy.NewOPAEngine(regoPath)
		if err != nil {
			return nil, fmt.Errorf("creating OPA engine: %w", err)
		}
		logger.Info("using OPA moderation policy", "path", regoPath)
		return engine, nil
	}

	if cfg.PolicyPath != "" {
		engine, err := policy.NewYAMLEngine(cfg.PolicyPath)
		if err != nil {
			return nil, fmt.Errorf("creating policy engine: %w", err)
		}
		return engine, nil
	}
	engine, err := policy.NewYAMLEngineFromPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("creating policy engine: %w", err)
	}
	return engine, nil
}
