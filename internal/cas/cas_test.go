package cas

import "testing"

func TestReadMissingKeyReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	records, tag, err := store.Read("nope")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if records != nil || tag != "" {
		t.Fatalf("expected empty read, got %v %q", records, tag)
	}
}

func TestWriteCASThenReadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)

	res := store.WriteCAS("room-a", []Record{{"id": "1", "content": "hi"}}, "", nil)
	if !res.Success {
		t.Fatalf("initial write failed: %v", res.Err)
	}

	records, tag, err := store.Read("room-a")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(records) != 1 || records[0]["id"] != "1" {
		t.Fatalf("unexpected records: %v", records)
	}
	if tag != res.NewVersion {
		t.Fatalf("etag mismatch: %q != %q", tag, res.NewVersion)
	}
}

func TestWriteCASRejectsStaleETag(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)
	store.WriteCAS("k", []Record{{"id": "1"}}, "", nil)

	res := store.WriteCAS("k", []Record{{"id": "2"}}, "stale-etag", nil)
	if res.Success {
		t.Fatalf("expected stale write to fail")
	}
}

func TestWriteCASMergesOnConflict(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)
	store.WriteCAS("k", []Record{{"id": "1", "timestamp": 1.0}}, "", nil)

	merge := func(current, attempted []Record) []Record {
		return append(append([]Record{}, current...), attempted...)
	}
	res := store.WriteCAS("k", []Record{{"id": "2", "timestamp": 2.0}}, "stale", merge)
	if !res.Success {
		t.Fatalf("expected merge write to succeed: %v", res.Err)
	}

	records, _, _ := store.Read("k")
	if len(records) != 2 {
		t.Fatalf("expected 2 merged records, got %d", len(records))
	}
}

func TestSessionCASDedupAndSort(t *testing.T) {
	dir := t.TempDir()
	store, _ := New(dir)
	sc := NewSessionCAS(store)

	current := []Record{{"id": "a", "timestamp": 2.0}}
	attempted := []Record{{"id": "a", "timestamp": 2.0}, {"id": "b", "timestamp": 1.0}}
	merged := sc.MergeSessions(current, attempted)

	if len(merged) != 2 {
		t.Fatalf("expected 2 records after dedup, got %d", len(merged))
	}
	if merged[0]["id"] != "b" {
		t.Fatalf("expected b (timestamp 1.0) first, got %v", merged[0]["id"])
	}
}
