package acquisition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/ilexum-group/iosextract/internal/config"
	"github.com/ilexum-group/iosextract/internal/manifest"
	"github.com/ilexum-group/iosextract/internal/sender"
	"github.com/ilexum-group/iosextract/internal/utils"
	"github.com/ilexum-group/iosextract/pkg/models"
)

// LockFileName is created in the output root while a run writes to it.
const LockFileName = ".iosextract.lock"

// ErrOutputLocked means another run holds the output root.
var ErrOutputLocked = errors.New("output root is locked by another run")

// Run performs a complete extraction described by cfg and returns its report.
// Outside dry-run mode the output root is locked for the duration and the
// report is written next to the extracted tree.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*models.ExtractionReport, error) {
	report := models.NewExtractionReport(utils.AppName, opts.ToolVersion)
	report.Hostname, _ = os.Hostname()
	report.BackupRoot = cfg.BackupRoot
	report.OutputRoot = cfg.OutputRoot
	report.DryRun = cfg.DryRun

	catalog, err := manifest.Open(cfg.BackupRoot)
	if err != nil {
		return report, err
	}
	defer func() {
		if err := catalog.Close(); err != nil {
			utils.LogDebug("Failed to close catalog", map[string]string{"error": err.Error()})
		}
	}()

	if !cfg.DryRun {
		unlock, err := lockOutput(cfg.OutputRoot)
		if err != nil {
			return report, err
		}
		defer unlock()
	}

	if err := hashCatalog(report, catalog.Path()); err != nil {
		utils.LogWarn("Failed to hash catalog", map[string]string{"path": catalog.Path(), "error": err.Error()})
	}

	if err := New(cfg, catalog, report, opts).Acquire(ctx); err != nil {
		return report, err
	}

	report.Finalize(utils.GetLogs())
	if cfg.DryRun {
		return report, nil
	}
	path, err := sender.WriteReport(cfg.OutputRoot, report)
	if err != nil {
		utils.LogError("Failed to write extraction report", map[string]string{"path": path, "error": err.Error()})
		return report, nil
	}
	utils.LogInfo("Extraction report written", map[string]string{"path": path, "id": report.ID})
	return report, nil
}

func lockOutput(outputRoot string) (func(), error) {
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create output root: %w", err)
	}
	lock := flock.New(filepath.Join(outputRoot, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, outputRoot)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			utils.LogWarn("Failed to release output lock", map[string]string{"error": err.Error()})
		}
	}, nil
}

func hashCatalog(report *models.ExtractionReport, path string) error {
	//nolint:gosec // G304: the catalog path comes from the backup root
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return report.HashCatalog(f)
}
