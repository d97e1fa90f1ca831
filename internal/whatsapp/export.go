package whatsapp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ilexum-group/iosextract/internal/utils"
	"github.com/ilexum-group/iosextract/pkg/models"
)

// Transcript directories under the output root.
const (
	TextDir = "Chats/txt"
	HTMLDir = "Chats/html"
)

// ExportResult counts what a transcript export produced.
type ExportResult struct {
	Sessions int
	Written  int
	Messages int
	Errors   []string
}

// Exporter writes one plain text and one hypertext transcript per session.
type Exporter struct {
	store    *Store
	renderer *Renderer
	textDir  string
	htmlDir  string
	dryRun   bool
	names    map[string]bool // transcript base names used in this export
}

// NewExporter creates an exporter writing below outputRoot.
func NewExporter(store *Store, renderer *Renderer, outputRoot string, dryRun bool) *Exporter {
	return &Exporter{
		store:    store,
		renderer: renderer,
		textDir:  filepath.Join(outputRoot, filepath.FromSlash(TextDir)),
		htmlDir:  filepath.Join(outputRoot, filepath.FromSlash(HTMLDir)),
		dryRun:   dryRun,
		names:    make(map[string]bool),
	}
}

// Export renders every session. A session that fails is logged and skipped;
// only failing to list sessions is returned as an error.
func (e *Exporter) Export(ctx context.Context) (ExportResult, error) {
	var result ExportResult

	sessions, err := e.store.Sessions(ctx)
	if err != nil {
		return result, err
	}
	result.Sessions = len(sessions)

	if !e.dryRun {
		for _, dir := range []string{e.textDir, e.htmlDir} {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return result, fmt.Errorf("create transcript directory: %w", err)
			}
		}
	}

	for _, session := range sessions {
		base := e.transcriptName(session)
		count, err := e.exportSession(ctx, session, base)
		if err != nil {
			utils.LogError("Failed to export transcript", map[string]string{
				"session": base,
				"error":   err.Error(),
			})
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", base, err))
			continue
		}
		result.Messages += count
		result.Written++
	}
	return result, nil
}

// transcriptName derives a unique, filesystem-safe base name for session.
// Names are sanitized before they are de-duplicated.
func (e *Exporter) transcriptName(session models.ChatSession) string {
	name := session.PartnerName
	if strings.TrimSpace(name) == "" {
		name = session.LegacyIdentifier
	}
	if strings.TrimSpace(name) == "" {
		name = session.CurrentIdentifier
	}
	unique := utils.UniquePath(utils.SanitizeFileName(name)+".txt", func(candidate string) bool {
		return e.names[strings.ToLower(candidate)]
	})
	e.names[strings.ToLower(unique)] = true
	return strings.TrimSuffix(unique, ".txt")
}

func (e *Exporter) exportSession(ctx context.Context, session models.ChatSession, base string) (int, error) {
	textPath := filepath.Join(e.textDir, base+".txt")
	htmlPath := filepath.Join(e.htmlDir, base+".html")

	var text, hyper strings.Builder
	hyper.WriteString(htmlHeader(session.PartnerName))

	count := 0
	err := e.store.Messages(ctx, session, func(msg models.Message) error {
		text.WriteString(e.renderer.TextLine(session, msg))
		text.WriteString("\n")
		hyper.WriteString(e.renderer.HTMLLine(session, msg, e.htmlDir))
		hyper.WriteString("\n")
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	hyper.WriteString(htmlFooter)

	if e.dryRun {
		utils.LogInfo("Transcript planned", map[string]string{"text": textPath, "html": htmlPath, "messages": fmt.Sprintf("%d", count)})
		return count, nil
	}

	// Files are rewritten whole so a re-run never duplicates lines.
	if err := os.WriteFile(textPath, []byte(text.String()), 0o644); err != nil { //nolint:gosec // transcripts are meant to be readable
		return 0, fmt.Errorf("write %s: %w", textPath, err)
	}
	if err := os.WriteFile(htmlPath, []byte(hyper.String()), 0o644); err != nil { //nolint:gosec // transcripts are meant to be readable
		return 0, fmt.Errorf("write %s: %w", htmlPath, err)
	}
	utils.LogDebug("Transcript written", map[string]string{"text": textPath, "messages": fmt.Sprintf("%d", count)})
	return count, nil
}
