package memory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "memory.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetEvent(t *testing.T) {
	s := newTestStore(t)
	e := Event{
		ID:               uuid.NewString(),
		Timestamp:        time.Now(),
		Channel:          "cli",
		Direction:        "inbound",
		EventType:        "message",
		Content:          "hello world",
		SessionKey:       "room:cli_1",
		ExtractionStatus: ExtractionPending,
		RelevanceScore:   1.0,
	}
	if _, err := s.SaveEvent(e); err != nil {
		t.Fatalf("SaveEvent: %v", err)
	}

	got, err := s.GetEvent(e.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if got == nil || got.Content != "hello world" {
		t.Fatalf("unexpected event: %+v", got)
	}
}

func TestSearchEventsByEmbedding(t *testing.T) {
	s := newTestStore(t)
	embedder := NewHashEmbedder()

	near, _ := embedder.Embed("debug the race condition")
	far, _ := embedder.Embed("order me a pizza")

	e1 := Event{ID: uuid.NewString(), Timestamp: time.Now(), Channel: "cli", Direction: "inbound",
		EventType: "message", Content: "debug the race condition", SessionKey: "room:x",
		ContentEmbedding: near, RelevanceScore: 1}
	e2 := Event{ID: uuid.NewString(), Timestamp: time.Now(), Channel: "cli", Direction: "inbound",
		EventType: "message", Content: "order me a pizza", SessionKey: "room:x",
		ContentEmbedding: far, RelevanceScore: 1}
	s.SaveEvent(e1)
	s.SaveEvent(e2)

	results, err := s.SearchEvents(near, "", 5, 0.99)
	if err != nil {
		t.Fatalf("SearchEvents: %v", err)
	}
	if len(results) != 1 || results[0].Event.ID != e1.ID {
		t.Fatalf("expected exact self-match only, got %+v", results)
	}
}

func TestFindEntityByNameCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ent := Entity{ID: uuid.NewString(), Name: "Acme Corp", EntityType: "organization",
		FirstSeen: time.Now(), LastSeen: time.Now()}
	s.SaveEntity(ent)

	found, err := s.FindEntityByName("acme corp")
	if err != nil {
		t.Fatalf("FindEntityByName: %v", err)
	}
	if found == nil || found.ID != ent.ID {
		t.Fatalf("expected case-insensitive match, got %+v", found)
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	v := make([]float32, EmbeddingDim)
	for i := range v {
		v[i] = float32(i) / float32(EmbeddingDim)
	}
	packed := packEmbedding(v)
	unpacked, err := unpackEmbedding(packed)
	if err != nil {
		t.Fatalf("unpackEmbedding: %v", err)
	}
	for i := range v {
		if v[i] != unpacked[i] {
			t.Fatalf("round trip mismatch at %d: %v != %v", i, v[i], unpacked[i])
		}
	}
}

func TestEmbeddingDimensionMismatchIsFatal(t *testing.T) {
	_, err := unpackEmbedding(make([]byte, 4*10)) // 10 floats, not EmbeddingDim
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	if got := CosineSimilarity(nil, []float32{1, 2, 3}); got != 0 {
		t.Fatalf("expected 0 for empty vector, got %v", got)
	}
	zero := make([]float32, 3)
	if got := CosineSimilarity(zero, []float32{1, 2, 3}); got != 0 {
		t.Fatalf("expected 0 for zero-magnitude vector, got %v", got)
	}
}

func TestGetStats(t *testing.T) {
	s := newTestStore(t)
	s.SaveEvent(Event{ID: uuid.NewString(), Timestamp: time.Now(), Channel: "cli",
		Direction: "inbound", EventType: "message", Content: "hi", SessionKey: "room:x",
		ExtractionStatus: ExtractionPending})

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Events != 1 || stats.PendingExtractions != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
