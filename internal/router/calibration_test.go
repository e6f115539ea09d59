package router

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestCalibrationManager(t *testing.T) *CalibrationManager {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultCalibrationConfig()
	cfg.MinClassifications = 3
	return NewCalibrationManager(filepath.Join(dir, "patterns.json"), filepath.Join(dir, "stats.json"), cfg)
}

func TestShouldCalibrateFirstRunIsAlwaysDue(t *testing.T) {
	m := newTestCalibrationManager(t)
	m.RecordClassification(ClassificationRecord{ClientTier: TierSimple, LLMTier: TierMedium})
	if !m.ShouldCalibrate(time.Now()) {
		t.Fatal("expected first calibration to always be due once a classification exists")
	}
}

func TestShouldCalibrateFalseWithNoClassifications(t *testing.T) {
	m := newTestCalibrationManager(t)
	if m.ShouldCalibrate(time.Now()) {
		t.Fatal("expected no calibration due with empty history")
	}
}

func TestShouldCheckNowThrottles(t *testing.T) {
	m := newTestCalibrationManager(t)
	m.cfg.CheckEveryNDecisions = 3
	hits := 0
	for i := 0; i < 9; i++ {
		if m.ShouldCheckNow() {
			hits++
		}
	}
	if hits != 3 {
		t.Fatalf("expected exactly 3 throttled hits over 9 calls at N=3, got %d", hits)
	}
}

func TestGeneratePatternsRequiresThreeExamples(t *testing.T) {
	now := time.Now()
	mismatches := []ClassificationRecord{
		{ContentPreview: "refactor the distributed microservice architecture", LLMTier: TierComplex},
		{ContentPreview: "refactor the distributed microservice design", LLMTier: TierComplex},
	}
	if patterns := generatePatterns(mismatches, now); len(patterns) != 0 {
		t.Fatalf("expected no patterns generated from only 2 examples, got %d", len(patterns))
	}

	mismatches = append(mismatches, ClassificationRecord{ContentPreview: "refactor the distributed microservice platform", LLMTier: TierComplex})
	patterns := generatePatterns(mismatches, now)
	if len(patterns) == 0 {
		t.Fatal("expected patterns generated from 3 examples with common words")
	}
	for _, p := range patterns {
		if p.Tier != TierComplex || p.Source != "auto_calibration" {
			t.Fatalf("unexpected generated pattern: %+v", p)
		}
	}
}

func TestEvictPatternsKeepsNewLowSuccessPatterns(t *testing.T) {
	now := time.Now()
	patterns := []Pattern{
		{Regex: "old", AddedAt: now.Add(-30 * 24 * time.Hour), TimesMatched: 10, TimesCorrect: 1}, // 10% success, old -> evicted
		{Regex: "new", AddedAt: now.Add(-1 * time.Hour), TimesMatched: 10, TimesCorrect: 1},       // 10% success, new -> kept (grace period)
		{Regex: "good", AddedAt: now.Add(-30 * 24 * time.Hour), TimesMatched: 10, TimesCorrect: 8}, // 80% success -> kept
	}
	kept := evictPatterns(patterns, now, 0)
	if len(kept) != 2 {
		t.Fatalf("expected 2 surviving patterns, got %d", len(kept))
	}
	for _, p := range kept {
		if p.Regex == "old" {
			t.Fatal("expected the old low-success pattern to be evicted")
		}
	}
}

func TestEvictPatternsRanksByEffectivenessUnderCapacity(t *testing.T) {
	now := time.Now()
	recent := now.Add(-time.Hour)
	patterns := []Pattern{
		{Regex: "low-usage", AddedAt: now.Add(-30 * 24 * time.Hour), TimesMatched: 10, TimesCorrect: 8, TimesUsed: 5, LastUsed: &recent},
		{Regex: "high-usage", AddedAt: now.Add(-30 * 24 * time.Hour), TimesMatched: 10, TimesCorrect: 8, TimesUsed: 200, LastUsed: &recent},
		{Regex: "stale", AddedAt: now.Add(-30 * 24 * time.Hour), TimesMatched: 10, TimesCorrect: 8, TimesUsed: 5},
	}

	kept := evictPatterns(patterns, now, 2)
	if len(kept) != 2 {
		t.Fatalf("expected eviction to trim down to the cap of 2, got %d", len(kept))
	}
	for _, p := range kept {
		if p.Regex == "stale" {
			t.Fatal("expected the stale (never-used-recently) pattern to rank lowest and be trimmed under the cap")
		}
	}
}

func TestExtractCommonWordsAllSamplesAgree(t *testing.T) {
	samples := []string{
		"please refactor the distributed architecture today",
		"can you refactor the distributed system tomorrow",
		"refactor the distributed service now",
	}
	words := extractCommonWords(samples)
	found := false
	for _, w := range words {
		if w == "refactor" || w == "distributed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected common words to include refactor/distributed, got %v", words)
	}
}

// TestExtractCommonWordsSurvivesOneDivergentSample guards against the
// original strict-intersection bug: a single sample phrased differently
// from the rest used to zero out the whole result. A 60%-of-samples
// frequency threshold should still surface the word the majority share.
func TestExtractCommonWordsSurvivesOneDivergentSample(t *testing.T) {
	samples := []string{
		"please refactor the distributed architecture today",
		"can you refactor the distributed system tomorrow",
		"refactor the distributed service now",
		"completely unrelated wording about nothing shared", // the one divergent sample
	}
	words := extractCommonWords(samples)
	if len(words) == 0 {
		t.Fatal("expected a 3-out-of-4 (75%) majority word to survive a single divergent sample, got none")
	}
	found := false
	for _, w := range words {
		if w == "refactor" || w == "distributed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected refactor/distributed (present in 3 of 4 samples) to survive, got %v", words)
	}
}

func TestExtractCommonWordsCapsAtTenSamplesAndTenWords(t *testing.T) {
	samples := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		samples = append(samples, "alpha bravo charlie delta echo foxtrot golf hotel india juliet kilo lima")
	}
	words := extractCommonWords(samples)
	if len(words) > 10 {
		t.Fatalf("expected at most 10 words returned, got %d: %v", len(words), words)
	}
}

func TestCalibrateRunEndToEnd(t *testing.T) {
	m := newTestCalibrationManager(t)
	for i := 0; i < 4; i++ {
		m.RecordClassification(ClassificationRecord{
			ContentPreview:   "refactor the distributed microservice architecture fully",
			ClientTier:       TierMedium,
			ClientConfidence: 0.6,
			LLMTier:          TierComplex,
			LLMConfidence:    0.9,
		})
	}
	result, err := m.Calibrate(time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ClassificationsAnalyzed != 4 {
		t.Fatalf("expected 4 classifications analyzed, got %d", result.ClassificationsAnalyzed)
	}
}
