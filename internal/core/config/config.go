// Package config provides configuration management for StashKeeper.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/solatis/stashkeeper/internal/types"
)

// BridgeTokenEnv names the environment variable holding the host bridge token.
const BridgeTokenEnv = "SK_BRIDGE_TOKEN"

// minTokenLength keeps trivially guessable tokens out.
const minTokenLength = 16

// EngineConfig tunes rule evaluation and the mutation engine.
type EngineConfig struct {
	MaxLookupRadius     float64
	KeywordDistribution string
	Seed                int64
}

// RulesConfig locates rule documents.
type RulesConfig struct {
	Dir       string
	DBEnabled bool
}

// BridgeConfig holds configuration for the gRPC host bridge.
type BridgeConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
	MaxInventory   int

	// AuditDir receives one JSONL file per day of TouchContainer results.
	// Empty disables the audit log.
	AuditDir string
}

// MetricsConfig holds the Prometheus endpoint address. Empty disables it.
type MetricsConfig struct {
	Addr string
}

// Config is the complete StashKeeper configuration.
type Config struct {
	Engine      EngineConfig
	Rules       RulesConfig
	Bridge      BridgeConfig
	Metrics     MetricsConfig
	DatabaseURL string

	// RadiusClamped is set when MaxLookupRadius was outside the allowed range.
	RadiusClamped bool
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxLookupRadius:     types.DefaultLookupRadius,
			KeywordDistribution: "split",
		},
		Rules: RulesConfig{
			Dir: "./rules",
		},
		Bridge: BridgeConfig{
			Host:           "127.0.0.1",
			Port:           50061,
			RequestTimeout: 5 * time.Second,
			MaxInventory:   4096,
		},
	}
}

// ClampLookupRadius bounds r to [MinLookupRadius, MaxLookupRadius] and
// reports whether it had to change. NaN becomes DefaultLookupRadius.
func ClampLookupRadius(r float64) (float64, bool) {
	switch {
	case math.IsNaN(r):
		return types.DefaultLookupRadius, true
	case r < types.MinLookupRadius:
		return types.MinLookupRadius, true
	case r > types.MaxLookupRadius:
		return types.MaxLookupRadius, true
	default:
		return r, false
	}
}

// BridgeToken returns the bridge token from SK_BRIDGE_TOKEN.
// An empty token disables bridge authentication.
func BridgeToken() (string, error) {
	token := strings.TrimSpace(os.Getenv(BridgeTokenEnv))
	if token == "" {
		return "", nil
	}
	if len(token) < minTokenLength {
		return "", fmt.Errorf("%s must be at least %d characters, got %d", BridgeTokenEnv, minTokenLength, len(token))
	}
	return token, nil
}
