// Package documents extracts text from PDFs attached to a room and
// keeps a short digest of each one on disk, so the agent loop can
// reference a document's contents without re-parsing it on every turn.
package documents

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/nanobridge/orchestrator/internal/config"
)

// Digest is the short record kept for one extracted document.
type Digest struct {
	DocID          string    `json:"doc_id"`
	Filename       string    `json:"filename"`
	SourcePath     string    `json:"source_path"`
	TextPath       string    `json:"text_path"`
	Summary        string    `json:"summary"`
	PageCount      int       `json:"page_count"`
	ExtractedChars int       `json:"extracted_chars"`
	CreatedAt      time.Time `json:"created_at"`
}

// Processor extracts text from PDFs and generates digests, scoped
// per room under baseDir/<room>/.
type Processor struct {
	baseDir string
	cfg     config.DocumentsConfig
	log     *slog.Logger

	mu    sync.Mutex
	index map[string][]Digest // room -> digests, loaded lazily
}

// NewProcessor builds a Processor rooted at filepath.Join(workspace, "documents").
func NewProcessor(workspace string, cfg config.DocumentsConfig, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 20000
	}
	if cfg.SummaryChars <= 0 {
		cfg.SummaryChars = 500
	}
	return &Processor{
		baseDir: filepath.Join(workspace, "documents"),
		cfg:     cfg,
		log:     log,
		index:   make(map[string][]Digest),
	}
}

// ProcessPDFs filters paths down to *.pdf files and processes each one
// that hasn't already been digested for roomID, returning every digest
// (newly extracted or previously cached) in path order.
func (p *Processor) ProcessPDFs(paths []string, roomID string) ([]Digest, error) {
	var digests []Digest
	if len(paths) == 0 || roomID == "" {
		return digests, nil
	}

	for _, path := range paths {
		if !isPDF(path) {
			continue
		}
		digest, err := p.processSingle(path, roomID)
		if err != nil {
			p.log.Warn("document: failed to process PDF", "path", path, "error", err)
			continue
		}
		if digest != nil {
			digests = append(digests, *digest)
		}
	}
	return digests, nil
}

func (p *Processor) processSingle(path, roomID string) (*Digest, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return nil, fmt.Errorf("source does not exist: %s", path)
	}

	docID := fingerprint(path, info)

	p.mu.Lock()
	defer p.mu.Unlock()

	existing, err := p.loadIndex(roomID)
	if err != nil {
		return nil, err
	}
	for _, d := range existing {
		if d.DocID == docID {
			return &d, nil
		}
	}

	text, pageCount, err := extractPDFText(path, p.cfg.MaxPages, p.cfg.MaxChars)
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	roomDir := filepath.Join(p.baseDir, safeFilename(roomID))
	if err := os.MkdirAll(roomDir, 0o755); err != nil {
		return nil, fmt.Errorf("create room document dir: %w", err)
	}

	base := safeFilename(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	textPath := filepath.Join(roomDir, fmt.Sprintf("%s_%s.txt", base, docID[:10]))
	if err := os.WriteFile(textPath, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("write extracted text: %w", err)
	}

	digest := Digest{
		DocID:          docID,
		Filename:       filepath.Base(path),
		SourcePath:     path,
		TextPath:       textPath,
		Summary:        summarize(text, p.cfg.SummaryChars),
		PageCount:      pageCount,
		ExtractedChars: len(text),
		CreatedAt:      time.Now(),
	}

	existing = append(existing, digest)
	if err := p.saveIndex(roomID, existing); err != nil {
		return nil, err
	}
	p.index[roomID] = existing
	return &digest, nil
}

func (p *Processor) indexPath(roomID string) string {
	return filepath.Join(p.baseDir, safeFilename(roomID), "index.json")
}

func (p *Processor) loadIndex(roomID string) ([]Digest, error) {
	if cached, ok := p.index[roomID]; ok {
		return cached, nil
	}
	data, err := os.ReadFile(p.indexPath(roomID))
	if err != nil {
		if os.IsNotExist(err) {
			p.index[roomID] = nil
			return nil, nil
		}
		return nil, fmt.Errorf("read document index: %w", err)
	}
	var digests []Digest
	if err := json.Unmarshal(data, &digests); err != nil {
		return nil, fmt.Errorf("parse document index: %w", err)
	}
	p.index[roomID] = digests
	return digests, nil
}

func (p *Processor) saveIndex(roomID string, digests []Digest) error {
	data, err := json.MarshalIndent(digests, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document index: %w", err)
	}
	tmp := p.indexPath(roomID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write document index: %w", err)
	}
	return os.Rename(tmp, p.indexPath(roomID))
}

// extractPDFText reads up to maxPages pages (stopping early once
// maxChars of text has been collected) and returns the joined text
// alongside the PDF's total page count.
func extractPDFText(path string, maxPages, maxChars int) (string, int, error) {
	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	totalPages := reader.NumPage()
	limit := maxPages
	if limit > totalPages {
		limit = totalPages
	}

	var b strings.Builder
	chars := 0
	for i := 1; i <= limit; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(text)
		chars += len(text)
		if chars >= maxChars {
			break
		}
	}

	out := strings.TrimSpace(b.String())
	if len(out) > maxChars {
		out = out[:maxChars]
	}
	return out, totalPages, nil
}

var whitespaceRe = regexp.MustCompile(`\s+`)
var sentenceBoundaryRe = regexp.MustCompile(`[.!?]+\s+`)

// splitSentences breaks s on a run of sentence-ending punctuation
// followed by whitespace, keeping the punctuation attached to the
// sentence that precedes it (Go's RE2 has no lookbehind, so this walks
// match boundaries instead of the lookbehind split the original used).
func splitSentences(s string) []string {
	var sentences []string
	last := 0
	for _, loc := range sentenceBoundaryRe.FindAllStringIndex(s, -1) {
		sentences = append(sentences, strings.TrimSpace(s[last:loc[1]]))
		last = loc[1]
	}
	if last < len(s) {
		sentences = append(sentences, strings.TrimSpace(s[last:]))
	}
	return sentences
}

// summarize produces a short preview: the first handful of sentences
// when the text splits cleanly, otherwise a flat character prefix.
func summarize(text string, summaryChars int) string {
	if text == "" {
		return "No extractable text found (possibly scanned or image-based)."
	}

	cleaned := strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	sentences := splitSentences(cleaned)

	var summary string
	if len(sentences) > 1 {
		n := 5
		if n > len(sentences) {
			n = len(sentences)
		}
		summary = strings.TrimSpace(strings.Join(sentences[:n], " "))
	} else if len(cleaned) > summaryChars {
		summary = strings.TrimSpace(cleaned[:summaryChars])
	} else {
		summary = cleaned
	}

	if len(summary) > summaryChars {
		summary = strings.TrimSpace(summary[:summaryChars-3]) + "..."
	}
	return summary
}

func isPDF(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".pdf")
}

// fingerprint identifies a source file by path, size, and mod time, so
// re-attaching the same document to a room is a cache hit, not a
// re-extraction.
func fingerprint(path string, info os.FileInfo) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	raw := fmt.Sprintf("%s::%d::%d", abs, info.Size(), info.ModTime().UnixNano())
	sum := sha1.Sum([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

var unsafeFilenameRe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// safeFilename collapses anything that isn't a safe filename character
// into underscores, so room IDs containing ":" or "/" (channel-scoped
// keys) still produce a single path segment.
func safeFilename(name string) string {
	name = unsafeFilenameRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")
	if name == "" {
		return "_"
	}
	return name
}
