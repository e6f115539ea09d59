package main

import (
	"github.com/nanobridge/orchestrator/internal/config"
	"github.com/nanobridge/orchestrator/internal/router"
)

// routerConfigFromSettings builds a router.Config starting from
// router.DefaultConfig and layering rc's tiers and tunables on top. An
// all-zero RoutingConfig (the common case for a config.json that never
// mentions "routing") leaves every default untouched.
func routerConfigFromSettings(rc config.RoutingConfig, patternsFile string) router.Config {
	cfg := router.DefaultConfig(patternsFile)

	for name, tier := range rc.Tiers {
		t := router.Tier(name)
		mapping := cfg.Models.Resolve(t)
		if tier.Model != "" {
			mapping.Model = tier.Model
		}
		if tier.SecondaryModel != "" {
			mapping.SecondaryModel = tier.SecondaryModel
		}
		cfg.Models[t] = mapping
	}

	if rc.ClientClassifier.MinConfidence > 0 {
		cfg.MinConfidence = rc.ClientClassifier.MinConfidence
	}
	if rc.Sticky.ContextWindow > 0 {
		cfg.StickyLastK = rc.Sticky.ContextWindow
	}
	if rc.Sticky.DowngradeConfidence > 0 {
		cfg.DowngradeConfidence = rc.Sticky.DowngradeConfidence
	}

	if rc.AutoCalibration.Enabled {
		if rc.AutoCalibration.Interval != "" {
			cfg.Calibration.Interval = rc.AutoCalibration.Interval
		}
		if rc.AutoCalibration.MinClassifications > 0 {
			cfg.Calibration.MinClassifications = rc.AutoCalibration.MinClassifications
		}
		if rc.AutoCalibration.MaxPatterns > 0 {
			cfg.Calibration.MaxPatterns = rc.AutoCalibration.MaxPatterns
		}
		cfg.Calibration.BackupBeforeRun = rc.AutoCalibration.BackupBeforeCalibration
	} else if rc.AutoCalibration == (config.AutoCalibrationConfig{}) {
		// Section omitted entirely: keep router.DefaultConfig's own
		// calibration defaults rather than disabling it.
	} else {
		// Section present but explicitly disabled: push both triggers
		// far enough out that ShouldCalibrate never fires in practice.
		cfg.Calibration.Interval = "876000h" // 100 years
		cfg.Calibration.MinClassifications = 1 << 30
	}

	return cfg
}
