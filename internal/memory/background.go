package memory

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// BackgroundConfig configures the periodic maintenance worker.
type BackgroundConfig struct {
	IntervalSeconds     int
	QuietThresholdSecs  int
	ExtractionBatch     int
	SummaryInterval     time.Duration // default 5m
	SummaryStaleness    int
	SummaryMaxRefresh   int
	DecayInterval       time.Duration // default 1h
	Learning            LearningConfig
}

func DefaultBackgroundConfig() BackgroundConfig {
	return BackgroundConfig{
		IntervalSeconds:    30,
		QuietThresholdSecs: 10,
		ExtractionBatch:    20,
		SummaryInterval:    5 * time.Minute,
		SummaryStaleness:   10,
		SummaryMaxRefresh:  5,
		DecayInterval:      time.Hour,
		Learning:           DefaultLearningConfig(),
	}
}

// BackgroundProcessor is the single worker that performs entity
// extraction, summary refresh, and learning decay, gated by user
// activity so it never competes with a live conversation for the DB.
//
// Summary and decay sub-cycles use absolute next-due deadlines,
// advanced only after each actually runs, so a long-running cycle
// never causes drift.
type BackgroundProcessor struct {
	store     *Store
	extractor Extractor
	embedder  Embedder
	activity  *ActivityTracker
	cfg       BackgroundConfig
	log       *slog.Logger

	nextSummaryAt time.Time
	nextDecayAt   time.Time

	stop chan struct{}
	done chan struct{}
}

func NewBackgroundProcessor(store *Store, extractor Extractor, embedder Embedder, activity *ActivityTracker, cfg BackgroundConfig, log *slog.Logger) *BackgroundProcessor {
	if log == nil {
		log = slog.Default()
	}
	now := time.Now()
	return &BackgroundProcessor{
		store:         store,
		extractor:     extractor,
		embedder:      embedder,
		activity:      activity,
		cfg:           cfg,
		log:           log,
		nextSummaryAt: now.Add(cfg.SummaryInterval),
		nextDecayAt:   now.Add(cfg.DecayInterval),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Run blocks, executing cycles every IntervalSeconds until ctx is
// cancelled or Stop is called. It never returns an error: every
// per-cycle failure is logged and swallowed so the cycle continues.
func (p *BackgroundProcessor) Run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(time.Duration(p.cfg.IntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case now := <-ticker.C:
			p.runCycle(now)
		}
	}
}

// Stop requests a graceful shutdown and waits (bounded by ctx) for the
// current cycle to finish.
func (p *BackgroundProcessor) Stop(ctx context.Context) {
	close(p.stop)
	select {
	case <-p.done:
	case <-ctx.Done():
	}
}

func (p *BackgroundProcessor) runCycle(now time.Time) {
	if p.activity.IsUserActive(now) {
		return
	}

	if err := p.runExtraction(); err != nil {
		p.log.Warn("background extraction cycle failed", slog.Any("err", err))
	}

	if !now.Before(p.nextSummaryAt) {
		if err := p.runSummaryRefresh(); err != nil {
			p.log.Warn("background summary refresh failed", slog.Any("err", err))
		}
		p.nextSummaryAt = now.Add(p.cfg.SummaryInterval)
	}

	if !now.Before(p.nextDecayAt) {
		removed, err := p.store.DecayLearnings(p.cfg.Learning)
		if err != nil {
			p.log.Warn("background learning decay failed", slog.Any("err", err))
		} else if removed > 0 {
			p.log.Info("learning decay removed stale learnings", slog.Int("removed", removed))
		}
		p.nextDecayAt = now.Add(p.cfg.DecayInterval)
	}
}

func (p *BackgroundProcessor) runExtraction() error {
	pending, err := p.store.GetPendingEvents(p.cfg.ExtractionBatch)
	if err != nil {
		return err
	}
	for _, e := range pending {
		extracted, err := p.extractor.Extract(e)
		if err != nil {
			_ = p.store.MarkExtracted(e.ID, ExtractionFailed)
			p.log.Warn("entity extraction failed", slog.String("event_id", e.ID), slog.Any("err", err))
			continue
		}
		if err := p.upsertExtraction(e, extracted); err != nil {
			_ = p.store.MarkExtracted(e.ID, ExtractionFailed)
			p.log.Warn("entity upsert failed", slog.String("event_id", e.ID), slog.Any("err", err))
			continue
		}
		_ = p.store.MarkExtracted(e.ID, ExtractionComplete)
	}
	return nil
}

// upsertExtraction merges extracted entities into existing ones by
// name/alias match, extending event_count and last_seen, then saves
// the edges that already carry both entity ids and the facts as given.
// Edges and facts are not rewritten to the resolved entity ids; an edge
// missing either id is skipped.
func (p *BackgroundProcessor) upsertExtraction(e Event, extracted Extracted) error {
	resolved := make(map[string]string) // lowercase name -> entity id

	for _, ent := range extracted.Entities {
		existing, err := p.store.FindEntityByName(ent.Name)
		if err != nil {
			return err
		}
		if existing != nil {
			existing.EventCount++
			existing.LastSeen = e.Timestamp
			existing.SourceEventIDs = append(existing.SourceEventIDs, e.ID)
			if err := p.store.UpdateEntity(*existing); err != nil {
				return err
			}
			resolved[lower(ent.Name)] = existing.ID
			continue
		}
		ent.ID = uuid.NewString()
		if ent.EventCount == 0 {
			ent.EventCount = 1
		}
		if p.embedder != nil {
			if emb, err := p.embedder.Embed(ent.Name); err == nil {
				ent.NameEmbedding = emb
			}
		}
		if _, err := p.store.SaveEntity(ent); err != nil {
			return err
		}
		resolved[lower(ent.Name)] = ent.ID
	}

	for _, edge := range extracted.Edges {
		if edge.SourceEntityID == "" || edge.TargetEntityID == "" {
			continue // unresolved co-occurrence edge from a stub extractor; skip rather than save a dangling reference
		}
		edge.ID = uuid.NewString()
		if _, err := p.store.SaveEdge(edge); err != nil {
			return err
		}
	}

	for _, fact := range extracted.Facts {
		fact.ID = uuid.NewString()
		if _, err := p.store.SaveFact(fact); err != nil {
			return err
		}
	}
	return nil
}

func lower(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func (p *BackgroundProcessor) runSummaryRefresh() error {
	stale, err := p.store.GetStaleSummaryNodes(p.cfg.SummaryStaleness, p.cfg.SummaryMaxRefresh)
	if err != nil {
		return err
	}
	for _, node := range stale {
		node.EventsSinceUpdate = 0
		node.LastUpdated = time.Now()
		if _, err := p.store.SaveSummaryNode(node); err != nil {
			return err
		}
	}
	return nil
}
