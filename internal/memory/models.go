// Package memory implements the SQLite-backed event/entity/edge/fact/
// summary/learning store and its activity-gated background maintenance
// worker.
package memory

import "time"

// ExtractionStatus tracks an event's progress through the background
// entity-extraction pipeline.
type ExtractionStatus string

const (
	ExtractionPending  ExtractionStatus = "pending"
	ExtractionComplete ExtractionStatus = "complete"
	ExtractionFailed   ExtractionStatus = "failed"
	ExtractionSkipped  ExtractionStatus = "skipped"
)

// Event is an immutable record of a single inbound or outbound
// interaction. Only ExtractionStatus, LastAccessed and RelevanceScore
// may change after the initial write.
type Event struct {
	ID                string
	Timestamp         time.Time
	Channel           string
	Direction         string
	EventType         string
	Content           string
	SessionKey        string
	ParentEventID     string
	PersonID          string
	ToolName          string
	ExtractionStatus  ExtractionStatus
	ContentEmbedding  []float32
	RelevanceScore    float64
	LastAccessed      *time.Time
	Metadata          map[string]any
}

// Entity is a person, organization, location, concept, or tool mentioned
// across events. Upsert-by-name: a new extraction merges into an
// existing entity when lower(name) matches its name or an alias.
type Entity struct {
	ID                   string
	Name                 string
	EntityType           string
	Aliases              []string
	Description          string
	NameEmbedding        []float32
	DescriptionEmbedding []float32
	SourceEventIDs       []string
	EventCount           int
	FirstSeen            time.Time
	LastSeen             time.Time
}

// EntityTypes is the closed set of normalized entity types extractors
// must emit.
var EntityTypes = map[string]bool{
	"person":       true,
	"organization": true,
	"location":     true,
	"concept":      true,
	"tool":         true,
}

// Edge is a directed relation between two entities.
type Edge struct {
	ID             string
	SourceEntityID string
	TargetEntityID string
	Relation       string
	RelationType   string
	Strength       float64
	SourceEventIDs []string
	FirstSeen      time.Time
	LastSeen       time.Time
}

// Fact is a subject/predicate/object triplet. Facts are additive;
// contradictions are represented by newer facts, never overwrites.
type Fact struct {
	ID              string
	SubjectEntityID string
	Predicate       string
	ObjectText      string
	ObjectEntityID  string
	FactType        string
	Confidence      float64
	Strength        float64
	SourceEventIDs  []string
	ValidFrom       *time.Time
	ValidTo         *time.Time
}

// Topic is a theme cluster over a set of events.
type Topic struct {
	ID          string
	Name        string
	Description string
	Embedding   []float32
	EventIDs    []string
	FirstSeen   time.Time
	LastSeen    time.Time
}

// SummaryNode is a hierarchical, lazily refreshed digest. The
// distinguished key "user_preferences" aggregates Learnings.
type SummaryNode struct {
	ID                string
	NodeType          string
	Key               string
	ParentID          string
	Summary           string
	SummaryEmbedding  []float32
	EventsSinceUpdate int
	LastUpdated       time.Time
}

// Sentiment classifies a Learning's polarity.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Learning is a durable, decaying user preference or correction.
type Learning struct {
	ID               string
	Content          string
	Source           string
	Sentiment        Sentiment
	Confidence       float64
	ToolName         string
	Recommendation   string
	SupersededBy     string
	ContentEmbedding []float32
	CreatedAt        time.Time
	UpdatedAt        time.Time
	RelevanceScore   float64
	TimesAccessed    int
	LastAccessed     *time.Time
}

// Stats summarizes per-table row counts and pending extraction work.
type Stats struct {
	Events             int
	Entities           int
	Edges              int
	Facts              int
	Topics             int
	SummaryNodes       int
	Learnings          int
	PendingExtractions int
}

// EmbeddingDim is the fixed dimension all stored embeddings share.
// Dimension mismatch on read is a fatal load error (see unpackEmbedding).
const EmbeddingDim = 384
