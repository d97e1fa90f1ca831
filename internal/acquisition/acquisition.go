// Package acquisition runs an extraction: the catalog passes that rebuild the
// media tree, then the export phases that read companion databases.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/ilexum-group/iosextract/internal/artifactdetector"
	"github.com/ilexum-group/iosextract/internal/config"
	"github.com/ilexum-group/iosextract/internal/linker"
	"github.com/ilexum-group/iosextract/internal/manifest"
	"github.com/ilexum-group/iosextract/internal/metadata"
	"github.com/ilexum-group/iosextract/internal/notes"
	"github.com/ilexum-group/iosextract/internal/resolver"
	"github.com/ilexum-group/iosextract/internal/utils"
	"github.com/ilexum-group/iosextract/internal/vcard"
	"github.com/ilexum-group/iosextract/internal/whatsapp"
	"github.com/ilexum-group/iosextract/pkg/models"
)

// Companion databases, located through the catalog.
const (
	ChatStoreFile        = "ChatStorage.sqlite"
	WhatsappContactsFile = "ContactsV2.sqlite"
	AddressBookDomain    = "HomeDomain"
	AddressBookFile      = "Library/AddressBook/AddressBook.sqlitedb"
	NotesDomain          = "AppDomainGroup-group.com.apple.notes"
	NotesFile            = "NoteStore.sqlite"
)

// Export phase names as they appear in the report.
const (
	PhaseTranscripts = "transcripts"
	PhaseContacts    = "contacts"
	PhaseNotes       = "notes"
)

// Options carries the collaborators of a run that do not come from config.
type Options struct {
	ToolVersion string
	// PlanOut receives "source -> destination" lines in dry-run mode.
	PlanOut io.Writer
	// Converter overrides the external notes converter.
	Converter notes.Converter
}

// Acquisition owns the state of one run: the catalog, the destination map
// and the WhatsApp index, and the report being filled.
type Acquisition struct {
	cfg       *config.Config
	catalog   *manifest.Catalog
	resolver  *resolver.Resolver
	linker    *linker.Linker
	converter notes.Converter
	report    *models.ExtractionReport
}

// New creates an Acquisition over an open catalog.
func New(cfg *config.Config, catalog *manifest.Catalog, report *models.ExtractionReport, opts Options) *Acquisition {
	converter := opts.Converter
	if converter == nil && cfg.NotesConverter != "" {
		converter = notes.ExternalConverter{Command: cfg.NotesConverter}
	}
	return &Acquisition{
		cfg:       cfg,
		catalog:   catalog,
		resolver:  resolver.New(cfg.PreserveNames),
		linker:    linker.New(cfg.DryRun, opts.PlanOut),
		converter: converter,
		report:    report,
	}
}

// Resolver returns the run's resolver.
func (a *Acquisition) Resolver() *resolver.Resolver {
	return a.resolver
}

// Acquire runs every enabled pass and phase in order. Only cancellation is
// returned; failed passes and phases are recorded in the report.
func (a *Acquisition) Acquire(ctx context.Context) error {
	utils.LogInfo("Starting extraction", map[string]string{
		"backup":  a.cfg.BackupRoot,
		"output":  a.cfg.OutputRoot,
		"dry_run": fmt.Sprintf("%t", a.cfg.DryRun),
	})

	if a.cfg.Phases.Media {
		for _, filter := range a.cfg.Filters {
			stats, err := a.CollectMedia(ctx, filter)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					a.report.Passes = append(a.report.Passes, stats)
					return fmt.Errorf("pass %s: %w", filter.Name, ctxErr)
				}
				stats.Errors = append(stats.Errors, err.Error())
				utils.LogError("Catalog pass failed", map[string]string{"pass": filter.Name, "error": err.Error()})
			}
			a.report.Passes = append(a.report.Passes, stats)
		}
	}

	// The WhatsApp index is complete from here on.
	a.CollectTranscripts(ctx)
	a.CollectContacts(ctx)
	a.CollectNotes(ctx)

	a.report.ResolvedCount = a.resolver.Len()
	utils.LogInfo("Extraction finished", map[string]string{
		"resolved": fmt.Sprintf("%d", a.report.ResolvedCount),
	})
	return nil
}

// CollectMedia runs one catalog pass: every matching entry is decoded,
// resolved and linked into the filter's output directory.
func (a *Acquisition) CollectMedia(ctx context.Context, filter config.Filter) (models.PassStats, error) {
	stats := models.PassStats{Name: filter.Name, Errors: make([]string, 0)}
	outputDir := filepath.Join(a.cfg.OutputRoot, filepath.FromSlash(filter.OutputDir))

	err := a.catalog.Each(ctx, manifest.Query{Domain: filter.Domain, Path: filter.Path}, func(entry models.CatalogEntry) error {
		stats.Entries++
		a.collectEntry(entry, filter.Category, outputDir, &stats)
		return nil
	})

	utils.LogInfo("Pass completed", map[string]string{
		"pass":      filter.Name,
		"entries":   fmt.Sprintf("%d", stats.Entries),
		"processed": fmt.Sprintf("%d", stats.Processed),
		"linked":    fmt.Sprintf("%d", stats.Linked),
		"existing":  fmt.Sprintf("%d", stats.Existing),
		"missing":   fmt.Sprintf("%d", stats.Missing),
		"errors":    fmt.Sprintf("%d", len(stats.Errors)),
	})
	return stats, err
}

func (a *Acquisition) collectEntry(entry models.CatalogEntry, category resolver.Category, outputDir string, stats *models.PassStats) {
	source := a.catalog.SourcePath(entry)
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			stats.Missing++
			return
		}
		stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", source, err))
		utils.LogError("Failed to stat source", map[string]string{"content_id": entry.ContentID, "error": err.Error()})
		return
	}

	meta, err := metadata.Decode(entry.MetadataBlob)
	if err != nil {
		stats.DecodeWarn++
		utils.LogWarn("Metadata incomplete", map[string]string{
			"content_id": entry.ContentID,
			"path":       entry.RelativePath,
			"error":      err.Error(),
		})
	}

	dest := a.resolver.Resolve(entry, meta, category, outputDir, source)
	outcome, err := a.linker.Materialize(source, dest, meta.LastModified)
	if errors.Is(err, linker.ErrSourceMissing) {
		stats.Missing++
		return
	}
	stats.Processed++
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", dest, err))
		utils.LogError("Failed to materialize asset", map[string]string{
			"content_id":  entry.ContentID,
			"destination": dest,
			"error":       err.Error(),
		})
		return
	}

	switch outcome {
	case linker.Linked:
		stats.Linked++
	case linker.Existing:
		stats.Existing++
	case linker.Planned:
	}
}

// companion locates a companion store, logging why it is unusable.
func (a *Acquisition) companion(ctx context.Context, domain, relativePath string, store artifactdetector.StoreType) (string, error) {
	path, err := a.catalog.Companion(ctx, domain, relativePath, store)
	if err != nil {
		utils.LogWarn("Companion store unavailable", map[string]string{
			"domain": domain,
			"path":   relativePath,
			"error":  err.Error(),
		})
	}
	return path, err
}

// CollectTranscripts rebuilds the chat transcripts from the WhatsApp store.
func (a *Acquisition) CollectTranscripts(ctx context.Context) {
	if !a.cfg.Phases.Transcripts {
		a.report.AddPhase(PhaseTranscripts, models.PhaseSkipped, 0, "disabled")
		return
	}

	chatPath, err := a.companion(ctx, config.WhatsappDomain, ChatStoreFile, artifactdetector.StoreChat)
	if err != nil {
		a.report.AddPhase(PhaseTranscripts, models.PhaseSkipped, 0, err.Error())
		return
	}

	// A missing contact directory only costs display names.
	contactsPath, err := a.companion(ctx, config.WhatsappDomain, WhatsappContactsFile, artifactdetector.StoreContacts)
	if err != nil {
		contactsPath = ""
	}
	contacts, err := whatsapp.LoadContacts(ctx, contactsPath)
	if err != nil {
		utils.LogWarn("Contact directory unreadable, names fall back to identifiers", map[string]string{"error": err.Error()})
		contacts = nil
	}

	store, err := whatsapp.OpenStore(ctx, chatPath)
	if err != nil {
		utils.LogError("Failed to open chat store", map[string]string{"path": chatPath, "error": err.Error()})
		a.report.AddPhase(PhaseTranscripts, models.PhaseFailed, 0, err.Error())
		return
	}
	defer func() {
		if err := store.Close(); err != nil {
			utils.LogDebug("Failed to close chat store", map[string]string{"error": err.Error()})
		}
	}()

	renderer := whatsapp.NewRenderer(contacts, a.resolver.WhatsappIndex())
	result, err := whatsapp.NewExporter(store, renderer, a.cfg.OutputRoot, a.cfg.DryRun).Export(ctx)
	if err != nil {
		utils.LogError("Transcript export failed", map[string]string{"error": err.Error()})
		a.report.AddPhase(PhaseTranscripts, models.PhaseFailed, result.Written, err.Error())
		return
	}

	detail := fmt.Sprintf("%d sessions, %d messages", result.Sessions, result.Messages)
	if len(result.Errors) > 0 {
		detail += fmt.Sprintf(", %d failed", len(result.Errors))
	}
	utils.LogInfo("Transcripts exported", map[string]string{
		"sessions": fmt.Sprintf("%d", result.Sessions),
		"written":  fmt.Sprintf("%d", result.Written),
		"messages": fmt.Sprintf("%d", result.Messages),
	})
	a.report.AddPhase(PhaseTranscripts, models.PhaseDone, result.Written, detail)
}

// CollectContacts exports the address book as a card file.
func (a *Acquisition) CollectContacts(ctx context.Context) {
	if !a.cfg.Phases.Contacts {
		a.report.AddPhase(PhaseContacts, models.PhaseSkipped, 0, "disabled")
		return
	}

	dbPath, err := a.companion(ctx, AddressBookDomain, AddressBookFile, artifactdetector.StoreAddressBook)
	if err != nil {
		a.report.AddPhase(PhaseContacts, models.PhaseSkipped, 0, err.Error())
		return
	}

	result, err := vcard.Export(ctx, dbPath, a.cfg.OutputRoot, a.cfg.DryRun)
	if err != nil {
		utils.LogError("Card export failed", map[string]string{"path": result.Path, "error": err.Error()})
		a.report.AddPhase(PhaseContacts, models.PhaseFailed, 0, err.Error())
		return
	}
	a.report.AddPhase(PhaseContacts, models.PhaseDone, result.Written, fmt.Sprintf("%d people", result.People))
}

// CollectNotes hands the Notes database to the configured converter.
func (a *Acquisition) CollectNotes(ctx context.Context) {
	if !a.cfg.Phases.Notes {
		a.report.AddPhase(PhaseNotes, models.PhaseSkipped, 0, "disabled")
		return
	}
	if a.converter == nil {
		utils.LogDebug("Notes export skipped", map[string]string{"reason": notes.ErrNoCommand.Error()})
		a.report.AddPhase(PhaseNotes, models.PhaseSkipped, 0, notes.ErrNoCommand.Error())
		return
	}

	dbPath, err := a.companion(ctx, NotesDomain, NotesFile, artifactdetector.StoreNotes)
	if err != nil {
		a.report.AddPhase(PhaseNotes, models.PhaseSkipped, 0, err.Error())
		return
	}

	outDir, err := notes.Export(ctx, a.converter, dbPath, a.cfg.OutputRoot, a.cfg.DryRun)
	if err != nil {
		utils.LogError("Notes export failed", map[string]string{"output": outDir, "error": err.Error()})
		a.report.AddPhase(PhaseNotes, models.PhaseFailed, 0, err.Error())
		return
	}
	a.report.AddPhase(PhaseNotes, models.PhaseDone, 1, outDir)
}
