package main

import (
	"testing"

	"github.com/nanobridge/orchestrator/internal/config"
	"github.com/nanobridge/orchestrator/internal/router"
)

func TestRouterConfigFromSettingsLeavesDefaultsWhenEmpty(t *testing.T) {
	cfg := routerConfigFromSettings(config.RoutingConfig{}, "/tmp/patterns.json")
	want := router.DefaultConfig("/tmp/patterns.json")
	if cfg.MinConfidence != want.MinConfidence {
		t.Fatalf("expected default MinConfidence %v, got %v", want.MinConfidence, cfg.MinConfidence)
	}
	if cfg.StickyLastK != want.StickyLastK {
		t.Fatalf("expected default StickyLastK %v, got %v", want.StickyLastK, cfg.StickyLastK)
	}
	if cfg.Models.Resolve(router.TierSimple) != want.Models.Resolve(router.TierSimple) {
		t.Fatalf("expected default simple tier model to be untouched")
	}
}

func TestRouterConfigFromSettingsOverridesTierModel(t *testing.T) {
	rc := config.RoutingConfig{
		Tiers: map[string]config.TierModel{
			"simple": {Model: "custom-small", SecondaryModel: "custom-fallback"},
		},
	}
	cfg := routerConfigFromSettings(rc, "/tmp/patterns.json")
	mapping := cfg.Models.Resolve(router.TierSimple)
	if mapping.Model != "custom-small" {
		t.Fatalf("expected overridden simple model, got %s", mapping.Model)
	}
	if mapping.SecondaryModel != "custom-fallback" {
		t.Fatalf("expected overridden secondary model, got %s", mapping.SecondaryModel)
	}
	// Untouched tiers keep their defaults.
	if cfg.Models.Resolve(router.TierCoding).Model == "" {
		t.Fatalf("expected coding tier to still have a default model")
	}
}

func TestRouterConfigFromSettingsOverridesClassifierAndSticky(t *testing.T) {
	rc := config.RoutingConfig{
		ClientClassifier: config.ClientClassifierConfig{MinConfidence: 0.5},
		Sticky:           config.StickyConfig{ContextWindow: 7, DowngradeConfidence: 0.75},
	}
	cfg := routerConfigFromSettings(rc, "/tmp/patterns.json")
	if cfg.MinConfidence != 0.5 {
		t.Fatalf("expected MinConfidence override, got %v", cfg.MinConfidence)
	}
	if cfg.StickyLastK != 7 {
		t.Fatalf("expected StickyLastK override, got %v", cfg.StickyLastK)
	}
	if cfg.DowngradeConfidence != 0.75 {
		t.Fatalf("expected DowngradeConfidence override, got %v", cfg.DowngradeConfidence)
	}
}

func TestRouterConfigFromSettingsDisablesCalibrationExplicitly(t *testing.T) {
	rc := config.RoutingConfig{
		AutoCalibration: config.AutoCalibrationConfig{Enabled: false, Interval: "1h"},
	}
	cfg := routerConfigFromSettings(rc, "/tmp/patterns.json")
	if cfg.Calibration.MinClassifications < 1<<20 {
		t.Fatalf("expected calibration to be effectively disabled, got MinClassifications=%d", cfg.Calibration.MinClassifications)
	}
}
