package memory

import (
	"testing"
	"time"
)

func TestContradictionSupersession(t *testing.T) {
	s := newTestStore(t)
	cfg := DefaultLearningConfig()

	first, err := s.RecordLearning(cfg, Learning{
		Content: "prefers short concise responses", Source: "user",
		Sentiment: SentimentPositive, Confidence: 0.8,
	})
	if err != nil {
		t.Fatalf("RecordLearning 1: %v", err)
	}

	second, err := s.RecordLearning(cfg, Learning{
		Content: "never prefers short concise responses", Source: "user",
		Sentiment: SentimentNegative, Confidence: 0.8,
	})
	if err != nil {
		t.Fatalf("RecordLearning 2: %v", err)
	}

	active, err := s.GetActiveLearnings(10)
	if err != nil {
		t.Fatalf("GetActiveLearnings: %v", err)
	}
	if len(active) != 1 || active[0].ID != second.ID {
		t.Fatalf("expected exactly the second learning active, got %+v", active)
	}

	all, _ := s.GetAllLearnings()
	var firstRow *Learning
	for i := range all {
		if all[i].ID == first.ID {
			firstRow = &all[i]
		}
	}
	if firstRow == nil || firstRow.SupersededBy != second.ID {
		t.Fatalf("expected first learning superseded by second, got %+v", firstRow)
	}
}

func TestDecayMonotonicity(t *testing.T) {
	s := newTestStore(t)
	cfg := DefaultLearningConfig()

	l, err := s.RecordLearning(cfg, Learning{Content: "likes terse replies", Source: "user", Sentiment: SentimentNeutral, Confidence: 0.8})
	if err != nil {
		t.Fatalf("RecordLearning: %v", err)
	}

	// Force the updated_at far enough in the past that decay is measurable.
	all, _ := s.GetAllLearnings()
	for _, row := range all {
		if row.ID == l.ID {
			row.UpdatedAt = time.Now().Add(-48 * time.Hour)
			s.UpdateLearning(row)
		}
	}

	if _, err := s.DecayLearnings(cfg); err != nil {
		t.Fatalf("DecayLearnings: %v", err)
	}

	all, _ = s.GetAllLearnings()
	var after *Learning
	for i := range all {
		if all[i].ID == l.ID {
			after = &all[i]
		}
	}
	if after == nil {
		t.Fatal("learning unexpectedly removed")
	}
	if after.RelevanceScore >= 1.0 {
		t.Fatalf("expected relevance to decay below 1.0, got %v", after.RelevanceScore)
	}
}

func TestDecayRemovesBelowThreshold(t *testing.T) {
	s := newTestStore(t)
	cfg := DefaultLearningConfig()

	l, _ := s.RecordLearning(cfg, Learning{Content: "x", Source: "user", Sentiment: SentimentNeutral, Confidence: 0.8})

	all, _ := s.GetAllLearnings()
	for _, row := range all {
		if row.ID == l.ID {
			row.UpdatedAt = time.Now().Add(-365 * 24 * time.Hour)
			s.UpdateLearning(row)
		}
	}

	removed, err := s.DecayLearnings(cfg)
	if err != nil {
		t.Fatalf("DecayLearnings: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed after a year of decay, got %d", removed)
	}
}
