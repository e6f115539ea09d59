package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed memory database: events, entities, edges,
// facts, topics, summary nodes, and learnings, all behind a single
// WAL-journaled connection.
type Store struct {
	db     *sql.DB
	log    *slog.Logger
	mu     sync.Mutex // serializes writes; modernc's sqlite driver is not safe for concurrent writers
}

// Open opens (creating if necessary) the memory database at path and
// initializes its schema with WAL journaling.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("memory: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer safety per spec §4.2

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=10000;",
		"PRAGMA foreign_keys=ON;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("memory: pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, log: log}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	log.Info("memory store initialized", slog.String("path", path))
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			timestamp REAL NOT NULL,
			channel TEXT NOT NULL,
			direction TEXT NOT NULL,
			event_type TEXT NOT NULL,
			content TEXT NOT NULL,
			session_key TEXT NOT NULL,
			parent_event_id TEXT,
			person_id TEXT,
			tool_name TEXT,
			extraction_status TEXT DEFAULT 'pending',
			content_embedding BLOB,
			relevance_score REAL DEFAULT 1.0,
			last_accessed REAL,
			metadata TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_key)`,
		`CREATE INDEX IF NOT EXISTS idx_events_extraction ON events(extraction_status)`,
		`CREATE INDEX IF NOT EXISTS idx_events_channel ON events(channel)`,

		`CREATE TABLE IF NOT EXISTS entities (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			aliases TEXT,
			description TEXT,
			name_embedding BLOB,
			description_embedding BLOB,
			source_event_ids TEXT,
			event_count INTEGER DEFAULT 0,
			first_seen REAL,
			last_seen REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type)`,

		`CREATE TABLE IF NOT EXISTS edges (
			id TEXT PRIMARY KEY,
			source_entity_id TEXT NOT NULL,
			target_entity_id TEXT NOT NULL,
			relation TEXT NOT NULL,
			relation_type TEXT,
			strength REAL DEFAULT 0.5,
			source_event_ids TEXT,
			first_seen REAL,
			last_seen REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_entity_id)`,

		`CREATE TABLE IF NOT EXISTS facts (
			id TEXT PRIMARY KEY,
			subject_entity_id TEXT NOT NULL,
			predicate TEXT NOT NULL,
			object_text TEXT NOT NULL,
			object_entity_id TEXT,
			fact_type TEXT DEFAULT 'attribute',
			confidence REAL DEFAULT 0.8,
			strength REAL DEFAULT 1.0,
			source_event_ids TEXT,
			valid_from REAL,
			valid_to REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_facts_subject ON facts(subject_entity_id)`,

		`CREATE TABLE IF NOT EXISTS topics (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT,
			embedding BLOB,
			event_ids TEXT,
			first_seen REAL,
			last_seen REAL
		)`,

		`CREATE TABLE IF NOT EXISTS summary_nodes (
			id TEXT PRIMARY KEY,
			node_type TEXT NOT NULL,
			key TEXT NOT NULL UNIQUE,
			parent_id TEXT,
			summary TEXT,
			summary_embedding BLOB,
			events_since_update INTEGER DEFAULT 0,
			last_updated REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_summary_type ON summary_nodes(node_type)`,
		`CREATE INDEX IF NOT EXISTS idx_summary_key ON summary_nodes(key)`,

		`CREATE TABLE IF NOT EXISTS learnings (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			source TEXT NOT NULL,
			sentiment TEXT DEFAULT 'neutral',
			confidence REAL DEFAULT 0.8,
			tool_name TEXT,
			recommendation TEXT,
			superseded_by TEXT,
			content_embedding BLOB,
			created_at REAL,
			updated_at REAL,
			relevance_score REAL DEFAULT 1.0,
			times_accessed INTEGER DEFAULT 0,
			last_accessed REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_learnings_source ON learnings(source)`,
		`CREATE INDEX IF NOT EXISTS idx_learnings_relevance ON learnings(relevance_score)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("memory: init schema: %w", err)
		}
	}
	return nil
}

func tsFloat(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return float64(t.UnixNano()) / 1e9
}

func tsPtrFloat(t *time.Time) any {
	if t == nil {
		return nil
	}
	return tsFloat(*t)
}

func timeFromFloat(v sql.NullFloat64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.Unix(0, int64(v.Float64*1e9))
}

func timePtrFromFloat(v sql.NullFloat64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(0, int64(v.Float64*1e9))
	return &t
}

func marshalStrings(ss []string) any {
	if ss == nil {
		return nil
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

func unmarshalStrings(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(s.String), &out)
	return out
}

func marshalMeta(m map[string]any) any {
	if len(m) == 0 {
		return nil
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func unmarshalMeta(s sql.NullString) map[string]any {
	if !s.Valid || s.String == "" {
		return nil
	}
	var out map[string]any
	_ = json.Unmarshal([]byte(s.String), &out)
	return out
}

// ---- Events -----------------------------------------------------------

// SaveEvent persists an immutable event record.
func (s *Store) SaveEvent(e Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO events (
			id, timestamp, channel, direction, event_type, content,
			session_key, parent_event_id, person_id, tool_name,
			extraction_status, content_embedding, relevance_score,
			last_accessed, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, tsFloat(e.Timestamp), e.Channel, e.Direction, e.EventType, e.Content,
		e.SessionKey, nullStr(e.ParentEventID), nullStr(e.PersonID), nullStr(e.ToolName),
		string(e.ExtractionStatus), packEmbedding(e.ContentEmbedding), e.RelevanceScore,
		tsPtrFloat(e.LastAccessed), marshalMeta(e.Metadata),
	)
	if err != nil {
		return "", fmt.Errorf("memory: save event: %w", err)
	}
	return e.ID, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const eventColumns = `id, timestamp, channel, direction, event_type, content, session_key,
	parent_event_id, person_id, tool_name, extraction_status, content_embedding,
	relevance_score, last_accessed, metadata`

func (s *Store) scanEvent(row interface {
	Scan(dest ...any) error
}) (*Event, error) {
	var (
		e                                                          Event
		ts                                                         float64
		parentID, personID, toolName, extraction                   sql.NullString
		embedding                                                  []byte
		lastAccessed                                               sql.NullFloat64
		meta                                                       sql.NullString
	)
	if err := row.Scan(&e.ID, &ts, &e.Channel, &e.Direction, &e.EventType, &e.Content, &e.SessionKey,
		&parentID, &personID, &toolName, &extraction, &embedding,
		&e.RelevanceScore, &lastAccessed, &meta); err != nil {
		return nil, err
	}
	e.Timestamp = time.Unix(0, int64(ts*1e9))
	e.ParentEventID = parentID.String
	e.PersonID = personID.String
	e.ToolName = toolName.String
	e.ExtractionStatus = ExtractionStatus(extraction.String)
	e.LastAccessed = timePtrFromFloat(lastAccessed)
	e.Metadata = unmarshalMeta(meta)
	emb, err := unpackEmbedding(embedding)
	if err != nil {
		return nil, err
	}
	e.ContentEmbedding = emb
	return &e, nil
}

// GetEvent retrieves a single event by id, or nil if absent.
func (s *Store) GetEvent(id string) (*Event, error) {
	row := s.db.QueryRow(`SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := s.scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: get event: %w", err)
	}
	return e, nil
}

// GetEventsBySession returns events for a session, newest first.
func (s *Store) GetEventsBySession(sessionKey string, limit, offset int) ([]Event, error) {
	rows, err := s.db.Query(`SELECT `+eventColumns+` FROM events
		WHERE session_key = ? ORDER BY timestamp DESC LIMIT ? OFFSET ?`, sessionKey, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("memory: get events by session: %w", err)
	}
	defer rows.Close()
	return s.collectEvents(rows)
}

// GetPendingEvents returns events awaiting extraction, oldest first.
func (s *Store) GetPendingEvents(limit int) ([]Event, error) {
	rows, err := s.db.Query(`SELECT `+eventColumns+` FROM events
		WHERE extraction_status = 'pending' ORDER BY timestamp ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: get pending events: %w", err)
	}
	defer rows.Close()
	return s.collectEvents(rows)
}

func (s *Store) collectEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		e, err := s.scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// MarkExtracted updates an event's extraction_status.
func (s *Store) MarkExtracted(id string, status ExtractionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE events SET extraction_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("memory: mark extracted: %w", err)
	}
	return nil
}

// TouchAccess updates an event's last_accessed timestamp.
func (s *Store) TouchAccess(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE events SET last_accessed = ? WHERE id = ?`, tsFloat(at), id)
	if err != nil {
		return fmt.Errorf("memory: touch access: %w", err)
	}
	return nil
}

// SimilarEvent is a scored search hit.
type SimilarEvent struct {
	Event      Event
	Similarity float64
}

// SearchEvents computes cosine similarity against up to the 1000 most
// recent events with non-null embeddings, returning the top `limit`
// above `threshold`, ties broken by timestamp descending.
func (s *Store) SearchEvents(queryEmbedding []float32, sessionKey string, limit int, threshold float64) ([]SimilarEvent, error) {
	var rows *sql.Rows
	var err error
	if sessionKey != "" {
		rows, err = s.db.Query(`SELECT `+eventColumns+` FROM events
			WHERE session_key = ? AND content_embedding IS NOT NULL
			ORDER BY timestamp DESC LIMIT 1000`, sessionKey)
	} else {
		rows, err = s.db.Query(`SELECT ` + eventColumns + ` FROM events
			WHERE content_embedding IS NOT NULL ORDER BY timestamp DESC LIMIT 1000`)
	}
	if err != nil {
		return nil, fmt.Errorf("memory: search events: %w", err)
	}
	defer rows.Close()

	events, err := s.collectEvents(rows)
	if err != nil {
		return nil, err
	}

	results := make([]SimilarEvent, 0, len(events))
	for _, e := range events {
		sim := CosineSimilarity(queryEmbedding, e.ContentEmbedding)
		if sim >= threshold {
			results = append(results, SimilarEvent{Event: e, Similarity: sim})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].Event.Timestamp.After(results[j].Event.Timestamp)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ---- Entities -----------------------------------------------------------

// SaveEntity inserts or replaces an entity.
func (s *Store) SaveEntity(e Entity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO entities (
			id, name, entity_type, aliases, description,
			name_embedding, description_embedding,
			source_event_ids, event_count, first_seen, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Name, e.EntityType, marshalStrings(e.Aliases), nullStr(e.Description),
		packEmbedding(e.NameEmbedding), packEmbedding(e.DescriptionEmbedding),
		marshalStrings(e.SourceEventIDs), e.EventCount, tsFloat(e.FirstSeen), tsFloat(e.LastSeen),
	)
	if err != nil {
		return "", fmt.Errorf("memory: save entity: %w", err)
	}
	return e.ID, nil
}

// UpdateEntity updates an existing entity's mutable fields.
func (s *Store) UpdateEntity(e Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`
		UPDATE entities SET name=?, entity_type=?, aliases=?, description=?,
			name_embedding=?, description_embedding=?, source_event_ids=?,
			event_count=?, last_seen=? WHERE id=?`,
		e.Name, e.EntityType, marshalStrings(e.Aliases), nullStr(e.Description),
		packEmbedding(e.NameEmbedding), packEmbedding(e.DescriptionEmbedding),
		marshalStrings(e.SourceEventIDs), e.EventCount, tsFloat(e.LastSeen), e.ID,
	)
	if err != nil {
		return fmt.Errorf("memory: update entity: %w", err)
	}
	return nil
}

const entityColumns = `id, name, entity_type, aliases, description, name_embedding,
	description_embedding, source_event_ids, event_count, first_seen, last_seen`

func (s *Store) scanEntity(row interface{ Scan(dest ...any) error }) (*Entity, error) {
	var (
		e                                Entity
		aliases, sourceIDs               sql.NullString
		description                      sql.NullString
		nameEmb, descEmb                 []byte
		firstSeen, lastSeen              float64
	)
	if err := row.Scan(&e.ID, &e.Name, &e.EntityType, &aliases, &description,
		&nameEmb, &descEmb, &sourceIDs, &e.EventCount, &firstSeen, &lastSeen); err != nil {
		return nil, err
	}
	e.Aliases = unmarshalStrings(aliases)
	e.Description = description.String
	e.SourceEventIDs = unmarshalStrings(sourceIDs)
	e.FirstSeen = time.Unix(0, int64(firstSeen*1e9))
	e.LastSeen = time.Unix(0, int64(lastSeen*1e9))
	var err error
	if e.NameEmbedding, err = unpackEmbedding(nameEmb); err != nil {
		return nil, err
	}
	if e.DescriptionEmbedding, err = unpackEmbedding(descEmb); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetEntity retrieves an entity by id, or nil if absent.
func (s *Store) GetEntity(id string) (*Entity, error) {
	row := s.db.QueryRow(`SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	e, err := s.scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: get entity: %w", err)
	}
	return e, nil
}

// FindEntityByName looks up an entity by case-insensitive name-or-alias match.
func (s *Store) FindEntityByName(name string) (*Entity, error) {
	row := s.db.QueryRow(`SELECT `+entityColumns+` FROM entities
		WHERE LOWER(name) = LOWER(?) OR LOWER(aliases) LIKE LOWER(?) LIMIT 1`,
		name, "%\""+name+"\"%")
	e, err := s.scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: find entity by name: %w", err)
	}
	return e, nil
}

// GetEntitiesByType returns entities of a given type, most-referenced first.
func (s *Store) GetEntitiesByType(entityType string, limit int) ([]Entity, error) {
	rows, err := s.db.Query(`SELECT `+entityColumns+` FROM entities
		WHERE entity_type = ? ORDER BY event_count DESC LIMIT ?`, entityType, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: get entities by type: %w", err)
	}
	defer rows.Close()
	return s.collectEntities(rows)
}

// GetAllEntities returns all entities, most-referenced first.
func (s *Store) GetAllEntities(limit int) ([]Entity, error) {
	rows, err := s.db.Query(`SELECT `+entityColumns+` FROM entities ORDER BY event_count DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: get all entities: %w", err)
	}
	defer rows.Close()
	return s.collectEntities(rows)
}

func (s *Store) collectEntities(rows *sql.Rows) ([]Entity, error) {
	var out []Entity
	for rows.Next() {
		e, err := s.scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// SimilarEntity is a scored entity search hit.
type SimilarEntity struct {
	Entity     Entity
	Similarity float64
}

// GetSimilarEntities finds entities whose name embedding is similar to
// the query embedding, optionally filtered by type.
func (s *Store) GetSimilarEntities(nameEmbedding []float32, entityType string, limit int, threshold float64) ([]SimilarEntity, error) {
	var rows *sql.Rows
	var err error
	if entityType != "" {
		rows, err = s.db.Query(`SELECT `+entityColumns+` FROM entities
			WHERE entity_type = ? AND name_embedding IS NOT NULL`, entityType)
	} else {
		rows, err = s.db.Query(`SELECT ` + entityColumns + ` FROM entities WHERE name_embedding IS NOT NULL`)
	}
	if err != nil {
		return nil, fmt.Errorf("memory: get similar entities: %w", err)
	}
	defer rows.Close()

	entities, err := s.collectEntities(rows)
	if err != nil {
		return nil, err
	}
	var results []SimilarEntity
	for _, e := range entities {
		sim := CosineSimilarity(nameEmbedding, e.NameEmbedding)
		if sim >= threshold {
			results = append(results, SimilarEntity{Entity: e, Similarity: sim})
		}
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// ---- Stats & maintenance ------------------------------------------------

// GetStats returns per-table counts and the pending extraction count.
func (s *Store) GetStats() (Stats, error) {
	var st Stats
	tables := map[string]*int{
		"events": &st.Events, "entities": &st.Entities, "edges": &st.Edges,
		"facts": &st.Facts, "topics": &st.Topics, "summary_nodes": &st.SummaryNodes,
		"learnings": &st.Learnings,
	}
	for table, dest := range tables {
		if err := s.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(dest); err != nil {
			return st, fmt.Errorf("memory: stats %s: %w", table, err)
		}
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM events WHERE extraction_status = 'pending'`).Scan(&st.PendingExtractions); err != nil {
		return st, fmt.Errorf("memory: stats pending: %w", err)
	}
	return st, nil
}

// Vacuum reclaims space and defragments the database.
func (s *Store) Vacuum() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`VACUUM`); err != nil {
		return fmt.Errorf("memory: vacuum: %w", err)
	}
	s.log.Info("memory database vacuumed")
	return nil
}
