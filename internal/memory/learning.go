package memory

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LearningConfig holds the decay/boost tunables.
type LearningConfig struct {
	DecayRate          float64 // default 0.05 per day
	BoostFactor        float64 // default 1.2
	ContradictionScore float64 // default 0.7
	RemovalThreshold   float64 // default 0.1
}

func DefaultLearningConfig() LearningConfig {
	return LearningConfig{
		DecayRate:          0.05,
		BoostFactor:        1.2,
		ContradictionScore: 0.7,
		RemovalThreshold:   0.1,
	}
}

// RecordLearning saves a new learning, checking for contradictions
// against existing active learnings. If a >ContradictionScore overlap
// with opposite sentiment is found, the old learning is superseded and
// the new one starts at relevance 1.0.
func (s *Store) RecordLearning(cfg LearningConfig, l Learning) (Learning, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	now := time.Now()
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	l.UpdatedAt = now
	if l.RelevanceScore == 0 {
		l.RelevanceScore = 1.0
	}

	active, err := s.GetActiveLearnings(1000)
	if err != nil {
		return Learning{}, err
	}

	for _, existing := range active {
		if wordOverlap(existing.Content, l.Content) > cfg.ContradictionScore && oppositeSentiment(existing.Sentiment, l.Sentiment) {
			existing.SupersededBy = l.ID
			existing.UpdatedAt = now
			if err := s.UpdateLearning(existing); err != nil {
				return Learning{}, err
			}
			l.RelevanceScore = 1.0
			break
		}
	}

	if _, err := s.SaveLearning(l); err != nil {
		return Learning{}, err
	}
	return l, nil
}

func oppositeSentiment(a, b Sentiment) bool {
	return (a == SentimentPositive && b == SentimentNegative) ||
		(a == SentimentNegative && b == SentimentPositive)
}

// wordOverlap computes |intersection| / |union| of the lowercased word
// sets of a and b.
func wordOverlap(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	inter := 0
	for w := range setA {
		if setB[w] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'()")
		if w != "" {
			out[w] = true
		}
	}
	return out
}

// TouchLearning boosts a learning's relevance on access:
// score = min(1.0, score * boostFactor).
func (s *Store) TouchLearning(cfg LearningConfig, l Learning) error {
	now := time.Now()
	l.RelevanceScore = math.Min(1.0, l.RelevanceScore*cfg.BoostFactor)
	l.TimesAccessed++
	l.LastAccessed = &now
	l.UpdatedAt = now
	return s.UpdateLearning(l)
}

// DecayLearnings applies relevance_score *= (1-decay_rate)^days and
// removes learnings that drop below RemovalThreshold. Returns the
// number removed. Decay is monotonically non-increasing absent access,
// per the sticky-monotonicity-adjacent testable property in §8.
func (s *Store) DecayLearnings(cfg LearningConfig) (int, error) {
	all, err := s.GetAllLearnings()
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for _, l := range all {
		if l.SupersededBy != "" {
			continue
		}
		days := now.Sub(l.UpdatedAt).Hours() / 24
		if days <= 0 {
			continue
		}
		l.RelevanceScore *= math.Pow(1-cfg.DecayRate, days)
		l.UpdatedAt = now
		if l.RelevanceScore < cfg.RemovalThreshold {
			if err := s.DeleteLearning(l.ID); err != nil {
				return removed, err
			}
			removed++
			continue
		}
		if err := s.UpdateLearning(l); err != nil {
			return removed, err
		}
	}
	return removed, nil
}
