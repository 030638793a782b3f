package ratelimit

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// tierConfig mirrors a model-pricing override file shape, adapted to
// per-tier request caps instead of per-provider token/request-per-minute
// limits.
type tierConfig struct {
	RateLimits struct {
		DefaultMaxRequests int                    `yaml:"default_max_requests"`
		TierOverrides      map[string]tierOverride `yaml:"tier_overrides"`
	} `yaml:"rate_limits"`
}

type tierOverride struct {
	MaxRequests int `yaml:"max_requests"`
}

var (
	tierMu   sync.RWMutex
	tierData *tierConfig
)

var tierConfigPaths = []string{
	os.Getenv("RATE_LIMIT_TIERS_PATH"),
	"/app/config/rate_limit_tiers.yaml",
	"./config/rate_limit_tiers.yaml",
}

// LoadTierOverrides reads the optional tier-override file, falling back to
// the default rate limit when the file is missing or unreadable: callers
// fall back to cfg.MaxRequests for every tier in that case.
func LoadTierOverrides(log *zap.Logger) {
	var parsed tierConfig
	for _, p := range tierConfigPaths {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			log.Warn("failed to parse rate limit tier overrides", zap.String("path", p), zap.Error(err))
			continue
		}
		log.Info("loaded rate limit tier overrides", zap.String("path", p))
		break
	}
	tierMu.Lock()
	tierData = &parsed
	tierMu.Unlock()
}

// MaxRequestsForTier returns the per-window request cap for a named tier,
// falling back to defaultMax when no override file was loaded or the tier
// isn't listed.
func MaxRequestsForTier(tier string, defaultMax int) int {
	tierMu.RLock()
	cfg := tierData
	tierMu.RUnlock()

	if cfg == nil {
		return defaultMax
	}
	if override, ok := cfg.RateLimits.TierOverrides[strings.ToLower(strings.TrimSpace(tier))]; ok && override.MaxRequests > 0 {
		return override.MaxRequests
	}
	if cfg.RateLimits.DefaultMaxRequests > 0 {
		return cfg.RateLimits.DefaultMaxRequests
	}
	return defaultMax
}

// AllowForTier applies a tier-specific cap on top of the shared sliding
// window, used when a request carries a subscription tier that grants a
// higher allowance than the process-wide default.
func (l *Limiter) AllowForTier(userID, tier string) bool {
	if !l.cfg.Enabled {
		return true
	}
	max := MaxRequestsForTier(tier, l.cfg.MaxRequests)
	return l.allowWithMax(userID, max)
}
