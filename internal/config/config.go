// Package config loads RouterConfig and GuidanceConfig from defaults
// overlaid with OSQR_ROUTER_* environment variables, in the teacher's
// env-overlay style (config.go's DefaultConfig + env read), generalized to
// reject unrecognized OSQR_ROUTER_* keys at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// RouterConfig holds the router subsystem's tunables. Every field has a
// corresponding OSQR_ROUTER_<NAME> environment variable (see routerSetters).
type RouterConfig struct {
	EscalationThreshold     float64
	HighConfidenceThreshold float64
	MaxEscalations          int
	MaxValidationRetries    int
	ClassificationTimeoutMs int
	RoutingTimeoutMs        int
	ValidationTimeoutMs     int
	EnableValidation        bool
	EnableMRPGeneration     bool
	EnableCostTracking      bool
}

// DefaultRouterConfig returns the spec-mandated defaults.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		EscalationThreshold:     0.7,
		HighConfidenceThreshold: 0.95,
		MaxEscalations:          2,
		MaxValidationRetries:    3,
		ClassificationTimeoutMs: 5000,
		RoutingTimeoutMs:        1000,
		ValidationTimeoutMs:     5000,
		EnableValidation:        true,
		EnableMRPGeneration:     true,
		EnableCostTracking:      true,
	}
}

// GuidanceConfig holds the guidance subsystem's tunables.
type GuidanceConfig struct {
	ContextBudgetPercent float64
	InferenceThreshold   float64
	SoftLimit            int
	HardLimit            int
	RecencyDecayDays     float64
	DefaultPriority      int
}

// DefaultGuidanceConfig returns the spec-mandated defaults.
func DefaultGuidanceConfig() GuidanceConfig {
	return GuidanceConfig{
		ContextBudgetPercent: 70,
		InferenceThreshold:   0.7,
		SoftLimit:            15,
		HardLimit:            25,
		RecencyDecayDays:     40,
		DefaultPriority:      5,
	}
}

// envKey -> setter. Declared once so Load can both apply known
// keys and reject unknown ones in a single pass over os.Environ().
func routerSetters(cfg *RouterConfig) map[string]func(string) error {
	return map[string]func(string) error{
		"OSQR_ROUTER_ESCALATION_THRESHOLD":      floatSetter(&cfg.EscalationThreshold),
		"OSQR_ROUTER_HIGH_CONFIDENCE_THRESHOLD": floatSetter(&cfg.HighConfidenceThreshold),
		"OSQR_ROUTER_MAX_ESCALATIONS":           intSetter(&cfg.MaxEscalations),
		"OSQR_ROUTER_MAX_VALIDATION_RETRIES":    intSetter(&cfg.MaxValidationRetries),
		"OSQR_ROUTER_CLASSIFICATION_TIMEOUT_MS": intSetter(&cfg.ClassificationTimeoutMs),
		"OSQR_ROUTER_ROUTING_TIMEOUT_MS":        intSetter(&cfg.RoutingTimeoutMs),
		"OSQR_ROUTER_VALIDATION_TIMEOUT_MS":     intSetter(&cfg.ValidationTimeoutMs),
		"OSQR_ROUTER_ENABLE_VALIDATION":         boolSetter(&cfg.EnableValidation),
		"OSQR_ROUTER_ENABLE_MRP_GENERATION":     boolSetter(&cfg.EnableMRPGeneration),
		"OSQR_ROUTER_ENABLE_COST_TRACKING":      boolSetter(&cfg.EnableCostTracking),
	}
}

func guidanceSetters(cfg *GuidanceConfig) map[string]func(string) error {
	return map[string]func(string) error{
		"OSQR_ROUTER_CONTEXT_BUDGET_PERCENT": floatSetter(&cfg.ContextBudgetPercent),
		"OSQR_ROUTER_INFERENCE_THRESHOLD":    floatSetter(&cfg.InferenceThreshold),
		"OSQR_ROUTER_SOFT_LIMIT":             intSetter(&cfg.SoftLimit),
		"OSQR_ROUTER_HARD_LIMIT":             intSetter(&cfg.HardLimit),
		"OSQR_ROUTER_RECENCY_DECAY_DAYS":     floatSetter(&cfg.RecencyDecayDays),
		"OSQR_ROUTER_DEFAULT_PRIORITY":       intSetter(&cfg.DefaultPriority),
	}
}

func floatSetter(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst = f
		return nil
	}
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		i, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = i
		return nil
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
}

// Load builds RouterConfig and GuidanceConfig from defaults overlaid with
// OSQR_ROUTER_* environment variables, rejecting any OSQR_ROUTER_* key that
// neither setter map recognizes.
func Load() (RouterConfig, GuidanceConfig, error) {
	router := DefaultRouterConfig()
	guidance := DefaultGuidanceConfig()

	routerKeys := routerSetters(&router)
	guidanceKeys := guidanceSetters(&guidance)

	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "OSQR_ROUTER_") {
			continue
		}
		if setter, found := routerKeys[key]; found {
			if err := setter(value); err != nil {
				return router, guidance, fmt.Errorf("config: invalid value for %s: %w", key, err)
			}
			continue
		}
		if setter, found := guidanceKeys[key]; found {
			if err := setter(value); err != nil {
				return router, guidance, fmt.Errorf("config: invalid value for %s: %w", key, err)
			}
			continue
		}
		return router, guidance, fmt.Errorf("config: unrecognized environment key %s", key)
	}
	return router, guidance, nil
}
