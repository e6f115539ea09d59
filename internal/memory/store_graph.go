package memory

import (
	"database/sql"
	"fmt"
	"time"
)

// ---- Edges --------------------------------------------------------------

func (s *Store) SaveEdge(e Edge) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO edges (
		id, source_entity_id, target_entity_id, relation, relation_type,
		strength, source_event_ids, first_seen, last_seen
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SourceEntityID, e.TargetEntityID, e.Relation, nullStr(e.RelationType),
		e.Strength, marshalStrings(e.SourceEventIDs), tsFloat(e.FirstSeen), tsFloat(e.LastSeen))
	if err != nil {
		return "", fmt.Errorf("memory: save edge: %w", err)
	}
	return e.ID, nil
}

func (s *Store) GetEdgesForEntity(entityID string, limit int) ([]Edge, error) {
	rows, err := s.db.Query(`SELECT id, source_entity_id, target_entity_id, relation,
		relation_type, strength, source_event_ids, first_seen, last_seen FROM edges
		WHERE source_entity_id = ? OR target_entity_id = ? ORDER BY last_seen DESC LIMIT ?`,
		entityID, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: get edges: %w", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var e Edge
		var relType, sourceIDs sql.NullString
		var firstSeen, lastSeen float64
		if err := rows.Scan(&e.ID, &e.SourceEntityID, &e.TargetEntityID, &e.Relation,
			&relType, &e.Strength, &sourceIDs, &firstSeen, &lastSeen); err != nil {
			return nil, err
		}
		e.RelationType = relType.String
		e.SourceEventIDs = unmarshalStrings(sourceIDs)
		e.FirstSeen = time.Unix(0, int64(firstSeen*1e9))
		e.LastSeen = time.Unix(0, int64(lastSeen*1e9))
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- Facts ----------------------------------------------------------------

func (s *Store) SaveFact(f Fact) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO facts (
		id, subject_entity_id, predicate, object_text, object_entity_id,
		fact_type, confidence, strength, source_event_ids, valid_from, valid_to
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.SubjectEntityID, f.Predicate, f.ObjectText, nullStr(f.ObjectEntityID),
		f.FactType, f.Confidence, f.Strength, marshalStrings(f.SourceEventIDs),
		tsPtrFloat(f.ValidFrom), tsPtrFloat(f.ValidTo))
	if err != nil {
		return "", fmt.Errorf("memory: save fact: %w", err)
	}
	return f.ID, nil
}

func (s *Store) GetFactsForSubject(subjectEntityID string, limit int) ([]Fact, error) {
	rows, err := s.db.Query(`SELECT id, subject_entity_id, predicate, object_text,
		object_entity_id, fact_type, confidence, strength, source_event_ids, valid_from, valid_to
		FROM facts WHERE subject_entity_id = ? LIMIT ?`, subjectEntityID, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: get facts: %w", err)
	}
	defer rows.Close()

	var out []Fact
	for rows.Next() {
		var f Fact
		var objEntity sql.NullString
		var sourceIDs sql.NullString
		var validFrom, validTo sql.NullFloat64
		if err := rows.Scan(&f.ID, &f.SubjectEntityID, &f.Predicate, &f.ObjectText,
			&objEntity, &f.FactType, &f.Confidence, &f.Strength, &sourceIDs, &validFrom, &validTo); err != nil {
			return nil, err
		}
		f.ObjectEntityID = objEntity.String
		f.SourceEventIDs = unmarshalStrings(sourceIDs)
		f.ValidFrom = timePtrFromFloat(validFrom)
		f.ValidTo = timePtrFromFloat(validTo)
		out = append(out, f)
	}
	return out, rows.Err()
}

// ---- Summary nodes ----------------------------------------------------------

func (s *Store) SaveSummaryNode(n SummaryNode) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO summary_nodes (
		id, node_type, key, parent_id, summary, summary_embedding,
		events_since_update, last_updated
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET summary=excluded.summary,
		summary_embedding=excluded.summary_embedding,
		events_since_update=excluded.events_since_update,
		last_updated=excluded.last_updated`,
		n.ID, n.NodeType, n.Key, nullStr(n.ParentID), n.Summary, packEmbedding(n.SummaryEmbedding),
		n.EventsSinceUpdate, tsFloat(n.LastUpdated))
	if err != nil {
		return "", fmt.Errorf("memory: save summary node: %w", err)
	}
	return n.ID, nil
}

func (s *Store) GetSummaryNodeByKey(key string) (*SummaryNode, error) {
	row := s.db.QueryRow(`SELECT id, node_type, key, parent_id, summary, summary_embedding,
		events_since_update, last_updated FROM summary_nodes WHERE key = ?`, key)
	var n SummaryNode
	var parentID sql.NullString
	var embedding []byte
	var lastUpdated float64
	err := row.Scan(&n.ID, &n.NodeType, &n.Key, &parentID, &n.Summary, &embedding,
		&n.EventsSinceUpdate, &lastUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("memory: get summary node: %w", err)
	}
	n.ParentID = parentID.String
	n.LastUpdated = time.Unix(0, int64(lastUpdated*1e9))
	if n.SummaryEmbedding, err = unpackEmbedding(embedding); err != nil {
		return nil, err
	}
	return &n, nil
}

// GetStaleSummaryNodes returns summary nodes whose events_since_update
// has reached staleness, up to maxBatch, oldest-updated first.
func (s *Store) GetStaleSummaryNodes(staleness, maxBatch int) ([]SummaryNode, error) {
	rows, err := s.db.Query(`SELECT id, node_type, key, parent_id, summary, summary_embedding,
		events_since_update, last_updated FROM summary_nodes
		WHERE events_since_update >= ? ORDER BY last_updated ASC LIMIT ?`, staleness, maxBatch)
	if err != nil {
		return nil, fmt.Errorf("memory: get stale summary nodes: %w", err)
	}
	defer rows.Close()

	var out []SummaryNode
	for rows.Next() {
		var n SummaryNode
		var parentID sql.NullString
		var embedding []byte
		var lastUpdated float64
		if err := rows.Scan(&n.ID, &n.NodeType, &n.Key, &parentID, &n.Summary, &embedding,
			&n.EventsSinceUpdate, &lastUpdated); err != nil {
			return nil, err
		}
		n.ParentID = parentID.String
		n.LastUpdated = time.Unix(0, int64(lastUpdated*1e9))
		if n.SummaryEmbedding, err = unpackEmbedding(embedding); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// ---- Learnings --------------------------------------------------------------

func (s *Store) SaveLearning(l Learning) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO learnings (
		id, content, source, sentiment, confidence, tool_name, recommendation,
		superseded_by, content_embedding, created_at, updated_at,
		relevance_score, times_accessed, last_accessed
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Content, l.Source, string(l.Sentiment), l.Confidence, nullStr(l.ToolName),
		nullStr(l.Recommendation), nullStr(l.SupersededBy), packEmbedding(l.ContentEmbedding),
		tsFloat(l.CreatedAt), tsFloat(l.UpdatedAt), l.RelevanceScore, l.TimesAccessed,
		tsPtrFloat(l.LastAccessed))
	if err != nil {
		return "", fmt.Errorf("memory: save learning: %w", err)
	}
	return l.ID, nil
}

func (s *Store) UpdateLearning(l Learning) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`UPDATE learnings SET content=?, sentiment=?, confidence=?,
		recommendation=?, superseded_by=?, updated_at=?, relevance_score=?,
		times_accessed=?, last_accessed=? WHERE id=?`,
		l.Content, string(l.Sentiment), l.Confidence, nullStr(l.Recommendation),
		nullStr(l.SupersededBy), tsFloat(l.UpdatedAt), l.RelevanceScore, l.TimesAccessed,
		tsPtrFloat(l.LastAccessed), l.ID)
	if err != nil {
		return fmt.Errorf("memory: update learning: %w", err)
	}
	return nil
}

func (s *Store) DeleteLearning(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM learnings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("memory: delete learning: %w", err)
	}
	return nil
}

func scanLearning(row interface{ Scan(dest ...any) error }) (*Learning, error) {
	var l Learning
	var toolName, recommendation, supersededBy sql.NullString
	var embedding []byte
	var createdAt, updatedAt float64
	var lastAccessed sql.NullFloat64
	var sentiment string
	if err := row.Scan(&l.ID, &l.Content, &l.Source, &sentiment, &l.Confidence,
		&toolName, &recommendation, &supersededBy, &embedding, &createdAt, &updatedAt,
		&l.RelevanceScore, &l.TimesAccessed, &lastAccessed); err != nil {
		return nil, err
	}
	l.Sentiment = Sentiment(sentiment)
	l.ToolName = toolName.String
	l.Recommendation = recommendation.String
	l.SupersededBy = supersededBy.String
	l.CreatedAt = time.Unix(0, int64(createdAt*1e9))
	l.UpdatedAt = time.Unix(0, int64(updatedAt*1e9))
	l.LastAccessed = timePtrFromFloat(lastAccessed)
	var err error
	if l.ContentEmbedding, err = unpackEmbedding(embedding); err != nil {
		return nil, err
	}
	return &l, nil
}

const learningColumns = `id, content, source, sentiment, confidence, tool_name,
	recommendation, superseded_by, content_embedding, created_at, updated_at,
	relevance_score, times_accessed, last_accessed`

// GetActiveLearnings returns learnings that have not been superseded,
// highest relevance first.
func (s *Store) GetActiveLearnings(limit int) ([]Learning, error) {
	rows, err := s.db.Query(`SELECT ` + learningColumns + ` FROM learnings
		WHERE superseded_by IS NULL ORDER BY relevance_score DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: get active learnings: %w", err)
	}
	defer rows.Close()

	var out []Learning
	for rows.Next() {
		l, err := scanLearning(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// GetAllLearnings returns every learning, including superseded ones.
func (s *Store) GetAllLearnings() ([]Learning, error) {
	rows, err := s.db.Query(`SELECT ` + learningColumns + ` FROM learnings`)
	if err != nil {
		return nil, fmt.Errorf("memory: get all learnings: %w", err)
	}
	defer rows.Close()

	var out []Learning
	for rows.Next() {
		l, err := scanLearning(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}
