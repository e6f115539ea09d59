package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/nanobridge/orchestrator/internal/documents"
)

// ProcessDocumentTool extracts text from a PDF and stores a digest of
// it scoped to the calling room, so later turns can reference the
// document without re-parsing it.
type ProcessDocumentTool struct {
	processor *documents.Processor
}

func NewProcessDocumentTool(processor *documents.Processor) *ProcessDocumentTool {
	return &ProcessDocumentTool{processor: processor}
}

func (t *ProcessDocumentTool) Name() string { return "process_document" }
func (t *ProcessDocumentTool) Description() string {
	return "Extract text from a PDF file and return a short digest (summary, page count, extracted text path). Re-attaching the same file is a no-op cache hit."
}
func (t *ProcessDocumentTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"file_path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the PDF file to extract",
			},
			"room_id": map[string]interface{}{
				"type":        "string",
				"description": "Room the extracted digest is scoped under",
			},
		},
		"required": []string{"file_path", "room_id"},
	}
}

func (t *ProcessDocumentTool) Execute(ctx context.Context, args map[string]interface{}) *Result {
	if t.processor == nil {
		return ErrorResult("document processing is not enabled")
	}
	filePath, _ := args["file_path"].(string)
	if filePath == "" {
		return ErrorResult("file_path is required")
	}
	roomID, _ := args["room_id"].(string)
	if roomID == "" {
		roomID = ToolChatIDFromCtx(ctx)
	}
	if roomID == "" {
		return ErrorResult("room_id is required")
	}
	if !strings.HasSuffix(strings.ToLower(filePath), ".pdf") {
		return ErrorResult("only .pdf files are supported")
	}

	digests, err := t.processor.ProcessPDFs([]string{filePath}, roomID)
	if err != nil {
		return ErrorResult(err.Error())
	}
	if len(digests) == 0 {
		return ErrorResult(fmt.Sprintf("no document extracted from %s", filePath))
	}
	d := digests[0]
	return NewResult(fmt.Sprintf(
		"Extracted %s (%d pages, %d chars) -> %s\nSummary: %s",
		d.Filename, d.PageCount, d.ExtractedChars, d.TextPath, d.Summary,
	))
}
