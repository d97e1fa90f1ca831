// Package linker materializes resolved assets as hard links into the content
// store and stamps them with their original modification times.
package linker

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrSourceMissing means the catalog references content absent from the store.
var ErrSourceMissing = errors.New("source file missing")

// Outcome describes what Materialize did.
type Outcome int

const (
	// Linked means a new link was created.
	Linked Outcome = iota
	// Existing means the destination was already there; nothing changed.
	Existing
	// Planned means dry-run mode reported the pair without touching disk.
	Planned
)

// String returns a short label for the outcome.
func (o Outcome) String() string {
	switch o {
	case Linked:
		return "linked"
	case Existing:
		return "existing"
	case Planned:
		return "planned"
	default:
		return "unknown"
	}
}

// Linker creates destination artifacts. The zero value is not usable; call New.
type Linker struct {
	dryRun bool
	out    io.Writer
	link   func(oldname, newname string) error
}

// New creates a Linker. In dry-run mode every pair is written to out as
// "source -> destination" and the filesystem is left alone.
func New(dryRun bool, out io.Writer) *Linker {
	if out == nil {
		out = io.Discard
	}
	return &Linker{dryRun: dryRun, out: out, link: os.Link}
}

// DryRun reports whether the linker leaves the filesystem untouched.
func (l *Linker) DryRun() bool {
	return l.dryRun
}

// Materialize hard links source to destination and sets its access and
// modification times to lastModified when known. An existing destination,
// including one created concurrently, is left as is.
func (l *Linker) Materialize(source, destination string, lastModified *time.Time) (Outcome, error) {
	if _, err := os.Stat(source); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Existing, fmt.Errorf("%w: %s", ErrSourceMissing, source)
		}
		return Existing, fmt.Errorf("stat source: %w", err)
	}

	if l.dryRun {
		_, _ = fmt.Fprintf(l.out, "%s -> %s\n", source, destination)
		return Planned, nil
	}

	if _, err := os.Lstat(destination); err == nil {
		return Existing, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Existing, fmt.Errorf("stat destination: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return Existing, fmt.Errorf("create destination directory: %w", err)
	}

	if err := l.link(source, destination); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Existing, nil
		}
		return Existing, fmt.Errorf("link %s: %w", destination, err)
	}

	if lastModified != nil {
		if err := os.Chtimes(destination, *lastModified, *lastModified); err != nil {
			return Linked, fmt.Errorf("set times on %s: %w", destination, err)
		}
	}
	return Linked, nil
}
