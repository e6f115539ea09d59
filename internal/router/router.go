package router

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("orchestrator/router")

// Config bundles the tunables for a Router, with defaults matching the
// rest of the package's Default* constructors.
type Config struct {
	Weights             Weights
	Thresholds          Thresholds
	Patterns            []Pattern
	Models              ModelMap
	StickyLastK         int
	DowngradeConfidence float64
	MinConfidence       float64 // below this, fall through to the LLM classifier
	Calibration         CalibrationConfig
	PatternsFile        string
	AnalyticsFile       string
}

func DefaultConfig(patternsFile string) Config {
	return Config{
		Weights:             DefaultWeights(),
		Thresholds:          DefaultThresholds(),
		Patterns:            DefaultPatterns(),
		Models:              DefaultModelMap(),
		StickyLastK:         3,
		DowngradeConfidence: 0.90,
		MinConfidence:       0.85,
		Calibration:         DefaultCalibrationConfig(),
		PatternsFile:        patternsFile,
	}
}

// Router is the Smart Router: it runs a message through the client
// classifier, applies sticky-tier retention, optionally escalates to an
// LLM classifier on low confidence, resolves the final tier to a model,
// and feeds the outcome back into the calibration manager.
type Router struct {
	classifier  *ClientClassifier
	sticky      *StickyRouter
	llm         *LLMClassifier // nil disables the LLM fallback layer
	calibration *CalibrationManager
	models      ModelMap
	minConfidence float64
}

// NewRouter builds a Router. llm may be nil, in which case low-confidence
// client decisions are used as-is (no third layer).
func NewRouter(cfg Config, llm *LLMClassifier) *Router {
	return &Router{
		classifier:    NewClientClassifier(cfg.Patterns, cfg.Weights, cfg.Thresholds),
		sticky:        NewStickyRouter(cfg.StickyLastK, cfg.DowngradeConfidence),
		llm:           llm,
		calibration:   NewCalibrationManager(cfg.PatternsFile, cfg.AnalyticsFile, cfg.Calibration),
		models:        cfg.Models,
		minConfidence: cfg.MinConfidence,
	}
}

// Route classifies content, applies sticky-tier retention against
// recentTiers (oldest first), and resolves the chosen tier to a model
// mapping. It also records the decision for calibration and runs a
// calibration pass when due (throttled to roughly once every
// CheckEveryNDecisions calls).
func (r *Router) Route(ctx context.Context, content string, recentTiers []Tier) Decision {
	ctx, span := tracer.Start(ctx, "router.route", trace.WithAttributes(
		attribute.Int("content_length", len(content)),
		attribute.Int("recent_tiers", len(recentTiers)),
	))
	defer span.End()

	decision, scores := r.classifier.Classify(content)
	span.SetAttributes(
		attribute.String("client_tier", string(decision.Tier)),
		attribute.Float64("client_confidence", decision.Confidence),
	)

	record := ClassificationRecord{
		ContentPreview:   previewOf(content, 200),
		ClientTier:       decision.Tier,
		ClientConfidence: decision.Confidence,
	}

	if r.llm != nil && decision.Confidence < r.minConfidence {
		llmDecision := r.llm.Classify(ctx, content)
		span.SetAttributes(
			attribute.String("llm_tier", string(llmDecision.Tier)),
			attribute.Float64("llm_confidence", llmDecision.Confidence),
		)
		record.LLMTier = llmDecision.Tier
		record.LLMConfidence = llmDecision.Confidence
		decision = llmDecision
	}

	finalTier := r.sticky.Decide(content, decision, scores, recentTiers)
	decision.Tier = finalTier
	record.FinalTier = finalTier

	mapping := r.models.Resolve(finalTier)
	decision.Model = mapping.Model
	if decision.Metadata == nil {
		decision.Metadata = map[string]any{}
	}
	decision.Metadata["secondary_model"] = mapping.SecondaryModel

	r.calibration.RecordClassification(record)
	if r.calibration.ShouldCheckNow() {
		r.runCalibrationIfDue(ctx, time.Now())
	}

	span.SetAttributes(attribute.String("final_tier", string(finalTier)), attribute.String("model", decision.Model))
	return decision
}

// runCalibrationIfDue is called on the router's own goroutine, not
// backgrounded, since a calibration pass only mines in-memory history and
// writes small JSON files — it never blocks on a network call.
func (r *Router) runCalibrationIfDue(ctx context.Context, now time.Time) {
	if !r.calibration.ShouldCalibrate(now) {
		return
	}
	_, span := tracer.Start(ctx, "router.calibrate")
	defer span.End()
	if _, err := r.calibration.Calibrate(now); err != nil {
		span.RecordError(err)
	}
}

func previewOf(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
