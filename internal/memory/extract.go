package memory

import (
	"regexp"
	"strings"
)

// Extracted bundles what an Extractor finds in a single event.
type Extracted struct {
	Entities []Entity
	Edges    []Edge
	Facts    []Fact
}

// Extractor pulls entities, relations, and facts out of event content.
// Implementations must normalize entity types to EntityTypes and must
// return at most what's present in the event's content (no external
// I/O beyond the model call itself).
type Extractor interface {
	Extract(e Event) (Extracted, error)
}

// capitalizedWord matches a simple proper-noun heuristic: any capitalized
// word of three or more letters, including one that starts a sentence.
// This is a deliberately small
// stand-in for a real NER model (e.g. GLiNER2), which spec.md treats as
// pluggable and out of scope.
var capitalizedWord = regexp.MustCompile(`\b[A-Z][a-zA-Z]{2,}\b`)

// toolMention catches "using X" / "with X" / "via X" phrasing as a weak
// signal for a `tool` entity type.
var toolMention = regexp.MustCompile(`(?i)\b(?:using|with|via)\s+([A-Z][a-zA-Z0-9_.+-]{2,})`)

// RegexExtractor is a deterministic, dependency-free default Extractor:
// capitalized tokens become `concept` entities, phrases like "using X"
// become `tool` entities. It has no notion of relations or facts beyond
// a "mentions_with" edge between entities co-occurring in one event;
// those edges carry no entity ids, so upsertExtraction does not save them.
type RegexExtractor struct{}

func NewRegexExtractor() *RegexExtractor { return &RegexExtractor{} }

func (RegexExtractor) Extract(e Event) (Extracted, error) {
	var out Extracted
	seen := make(map[string]bool)

	for _, m := range toolMention.FindAllStringSubmatch(e.Content, -1) {
		name := m[1]
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Entities = append(out.Entities, Entity{
			Name:           name,
			EntityType:     "tool",
			SourceEventIDs: []string{e.ID},
			EventCount:     1,
			FirstSeen:      e.Timestamp,
			LastSeen:       e.Timestamp,
		})
	}

	for _, name := range capitalizedWord.FindAllString(e.Content, -1) {
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Entities = append(out.Entities, Entity{
			Name:           name,
			EntityType:     "concept",
			SourceEventIDs: []string{e.ID},
			EventCount:     1,
			FirstSeen:      e.Timestamp,
			LastSeen:       e.Timestamp,
		})
	}

	for i := 0; i < len(out.Entities); i++ {
		for j := i + 1; j < len(out.Entities); j++ {
			out.Edges = append(out.Edges, Edge{
				Relation:       "mentions_with",
				RelationType:   "co_occurrence",
				Strength:       0.5,
				SourceEventIDs: []string{e.ID},
				FirstSeen:      e.Timestamp,
				LastSeen:       e.Timestamp,
			})
		}
	}

	return out, nil
}
