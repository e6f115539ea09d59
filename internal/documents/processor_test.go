package documents

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nanobridge/orchestrator/internal/config"
)

func TestProcessPDFsSkipsNonPDFPaths(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor(dir, config.DocumentsConfig{}, nil)

	txtPath := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txtPath, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	digests, err := p.ProcessPDFs([]string{txtPath}, "room-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(digests) != 0 {
		t.Fatalf("expected non-PDF paths to be skipped, got %d digests", len(digests))
	}
}

func TestProcessPDFsEmptyInputs(t *testing.T) {
	p := NewProcessor(t.TempDir(), config.DocumentsConfig{}, nil)

	if digests, err := p.ProcessPDFs(nil, "room-1"); err != nil || len(digests) != 0 {
		t.Fatalf("expected no digests with no paths, got %v, err=%v", digests, err)
	}
	if digests, err := p.ProcessPDFs([]string{"a.pdf"}, ""); err != nil || len(digests) != 0 {
		t.Fatalf("expected no digests with no room id, got %v, err=%v", digests, err)
	}
}

func TestProcessPDFsSkipsCorruptedPDF(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor(dir, config.DocumentsConfig{}, nil)

	badPath := filepath.Join(dir, "bad.pdf")
	if err := os.WriteFile(badPath, []byte("not actually a pdf"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	digests, err := p.ProcessPDFs([]string{badPath}, "room-1")
	if err != nil {
		t.Fatalf("a per-file extraction failure should be logged and skipped, not returned: %v", err)
	}
	if len(digests) != 0 {
		t.Fatalf("expected a corrupted PDF to yield zero digests, got %d", len(digests))
	}
}

func TestSummarizeEmptyText(t *testing.T) {
	got := summarize("", 500)
	if got == "" {
		t.Fatal("expected a placeholder summary for empty text")
	}
}

func TestSummarizeShortTextWithoutSentences(t *testing.T) {
	got := summarize("no terminal punctuation here just words", 500)
	if got != "no terminal punctuation here just words" {
		t.Fatalf("expected the whole short text back verbatim, got %q", got)
	}
}

func TestSummarizeTakesFirstFiveSentences(t *testing.T) {
	text := "One. Two. Three. Four. Five. Six. Seven."
	got := summarize(text, 500)
	for _, want := range []string{"One.", "Five."} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected summary to contain %q, got %q", want, got)
		}
	}
	if strings.Contains(got, "Seven.") {
		t.Fatalf("expected summary to stop at 5 sentences, got %q", got)
	}
}

func TestSummarizeTruncatesLongSummary(t *testing.T) {
	got := summarize("one two three four five six seven eight nine ten", 10)
	if len(got) > 10 {
		t.Fatalf("expected summary capped at 10 chars, got %d: %q", len(got), got)
	}
}

func TestSafeFilenameCollapsesUnsafeCharacters(t *testing.T) {
	got := safeFilename("room:general/main")
	if got == "" || strings.ContainsAny(got, ":/") {
		t.Fatalf("expected unsafe characters stripped, got %q", got)
	}
}

func TestFingerprintStableForSameFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("content"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}

	a := fingerprint(path, info)
	b := fingerprint(path, info)
	if a != b {
		t.Fatalf("expected a stable fingerprint for the same file+stat, got %q vs %q", a, b)
	}
	if a == "" {
		t.Fatal("expected a non-empty fingerprint")
	}
}
