package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

type ObservabilityConfig struct {
	Metrics struct {
		Enabled  bool   `mapstructure:"enabled"`
		Provider string `mapstructure:"provider"`
		Port     int    `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
}

// RefusalConfig captures refusal-gate thresholds loaded from features.yaml
type RefusalConfig struct {
	PreLLMSimilarityThreshold float64 `mapstructure:"pre_llm_similarity_threshold"`
	EnableExternalRefDetector bool    `mapstructure:"enable_external_ref_detector"`
}

// Features represents the top-level features.yaml document.
type Features struct {
	Observability ObservabilityConfig `mapstructure:"observability"`
	Refusal       RefusalConfig       `mapstructure:"refusal"`
}

// Load loads features.yaml from CONFIG_PATH or /app/config/features.yaml
func Load() (*Features, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		if _, err := os.Stat("/app/config/features.yaml"); err == nil {
			cfgPath = "/app/config/features.yaml"
		} else {
			cfgPath = "config/features.yaml"
		}
	}

	if info, err := os.Stat(cfgPath); err == nil && info.IsDir() {
		cfgPath = filepath.Join(cfgPath, "features.yaml")
	}

	v := viper.New()
	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
	}
	var f Features
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &f, nil
}

// MetricsPort returns port from config or an env override METRICS_PORT, falling back to defaultPort
func MetricsPort(defaultPort int) int {
	if p := os.Getenv("METRICS_PORT"); p != "" {
		var v int
		_, _ = fmt.Sscanf(p, "%d", &v)
		if v > 0 {
			return v
		}
	}
	if f, err := Load(); err == nil {
		if f.Observability.Metrics.Port > 0 {
			return f.Observability.Metrics.Port
		}
	}
	return defaultPort
}

// RefusalFromEnvOrDefaults returns merged refusal-gate config using env
// overrides first, then the config file, with sensible defaults. Only the
// similarity threshold is taken from the config file; the external-reference
// detector switch comes from the environment or the default.
func RefusalFromEnvOrDefaults(f *Features) RefusalConfig {
	rc := RefusalConfig{
		PreLLMSimilarityThreshold: 0.3,
		EnableExternalRefDetector: true,
	}

	if f != nil {
		if f.Refusal.PreLLMSimilarityThreshold > 0 {
			rc.PreLLMSimilarityThreshold = f.Refusal.PreLLMSimilarityThreshold
		}
	}

	if v := os.Getenv("REFUSAL_SIMILARITY_THRESHOLD"); v != "" {
		var x float64
		_, _ = fmt.Sscanf(v, "%f", &x)
		if x > 0 {
			rc.PreLLMSimilarityThreshold = x
		}
	}
	if v := os.Getenv("REFUSAL_ENABLE_EXTERNAL_REF_DETECTOR"); v != "" {
		rc.EnableExternalRefDetector = ParseBool(v)
	}

	return rc
}

// ParseBool converts common string representations to bool.
func ParseBool(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		if n, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return n != 0
		}
	}
	return false
}
