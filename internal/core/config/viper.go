package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching DefaultConfig
	d := DefaultConfig()
	v.SetDefault("engine.max_lookup_radius", d.Engine.MaxLookupRadius)
	v.SetDefault("engine.keyword_distribution", d.Engine.KeywordDistribution)
	v.SetDefault("engine.seed", d.Engine.Seed)
	v.SetDefault("rules.dir", d.Rules.Dir)
	v.SetDefault("rules.db_enabled", d.Rules.DBEnabled)
	v.SetDefault("bridge.host", d.Bridge.Host)
	v.SetDefault("bridge.port", d.Bridge.Port)
	v.SetDefault("bridge.request_timeout", d.Bridge.RequestTimeout.String())
	v.SetDefault("bridge.max_inventory", d.Bridge.MaxInventory)
	v.SetDefault("bridge.audit_dir", d.Bridge.AuditDir)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
	v.SetDefault("database.url", d.DatabaseURL)

	// Bind environment variables with SK_ prefix
	v.SetEnvPrefix("SK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets must be environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Engine: EngineConfig{
			MaxLookupRadius:     v.GetFloat64("engine.max_lookup_radius"),
			KeywordDistribution: strings.ToLower(v.GetString("engine.keyword_distribution")),
			Seed:                v.GetInt64("engine.seed"),
		},
		Rules: RulesConfig{
			Dir:       v.GetString("rules.dir"),
			DBEnabled: v.GetBool("rules.db_enabled"),
		},
		Bridge: BridgeConfig{
			Host:           v.GetString("bridge.host"),
			Port:           v.GetInt("bridge.port"),
			RequestTimeout: v.GetDuration("bridge.request_timeout"),
			MaxInventory:   v.GetInt("bridge.max_inventory"),
			AuditDir:       v.GetString("bridge.audit_dir"),
		},
		Metrics: MetricsConfig{
			Addr: v.GetString("metrics.addr"),
		},
		DatabaseURL: v.GetString("database.url"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	cfg.Engine.MaxLookupRadius, cfg.RadiusClamped = ClampLookupRadius(cfg.Engine.MaxLookupRadius)

	return cfg, nil
}

// validateConfig checks port range, positive timeout and inventory bound,
// and the keyword distribution mode.
func validateConfig(cfg *Config) error {
	if cfg.Bridge.Port <= 0 || cfg.Bridge.Port > 65535 {
		return fmt.Errorf("bridge.port must be between 1 and 65535, got %d", cfg.Bridge.Port)
	}
	if cfg.Bridge.RequestTimeout <= 0 {
		return fmt.Errorf("bridge.request_timeout must be positive, got %v", cfg.Bridge.RequestTimeout)
	}
	if cfg.Bridge.MaxInventory <= 0 {
		return fmt.Errorf("bridge.max_inventory must be positive, got %d", cfg.Bridge.MaxInventory)
	}
	switch cfg.Engine.KeywordDistribution {
	case "split", "each":
	default:
		return fmt.Errorf("engine.keyword_distribution must be split or each, got %q", cfg.Engine.KeywordDistribution)
	}
	if cfg.Rules.DBEnabled && cfg.DatabaseURL == "" {
		return fmt.Errorf("rules.db_enabled requires database.url")
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets.
// InConfig ignores the environment, so SK_BRIDGE_TOKEN itself is never rejected.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("bridge_token") || v.InConfig("bridge.token") {
		return fmt.Errorf("bridge tokens not allowed in config files (use %s environment variable)", BridgeTokenEnv)
	}
	return nil
}
