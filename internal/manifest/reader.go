// Package manifest reads the backup catalog (Manifest.db) and locates files
// in the content-addressed store next to it.
package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver for the backup catalog

	"github.com/ilexum-group/iosextract/internal/artifactdetector"
	"github.com/ilexum-group/iosextract/internal/utils"
	"github.com/ilexum-group/iosextract/pkg/models"
)

// FileName is the catalog database inside a backup directory.
const FileName = "Manifest.db"

var (
	// ErrCatalogUnavailable is fatal: nothing can be extracted without the catalog.
	ErrCatalogUnavailable = errors.New("backup catalog unavailable")
	// ErrNotFound means no catalog row matched a lookup.
	ErrNotFound = errors.New("catalog entry not found")
	// ErrStoreMissing means a companion database is absent or unusable.
	ErrStoreMissing = errors.New("companion store missing")
)

// Query selects catalog rows by domain and relative path globs. Globs accept
// '*' for any run of characters and '?' for a single one.
type Query struct {
	Domain string
	Path   string
}

// Catalog is an open backup catalog.
type Catalog struct {
	db         *sql.DB
	path       string
	backupRoot string
	classifier *artifactdetector.Classifier
}

// Open opens the catalog of the backup at backupRoot read-only.
func Open(backupRoot string) (*Catalog, error) {
	dbPath := filepath.Join(backupRoot, FileName)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	db, err := sql.Open("sqlite", "file:"+dbPath+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite db: %v", ErrCatalogUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return &Catalog{
		db:         db,
		path:       dbPath,
		backupRoot: backupRoot,
		classifier: artifactdetector.NewClassifier(),
	}, nil
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Path returns the catalog database file.
func (c *Catalog) Path() string {
	return c.path
}

// SourcePath returns where the content of entry lives in the store.
func (c *Catalog) SourcePath(entry models.CatalogEntry) string {
	return filepath.Join(c.backupRoot, entry.Bucket(), entry.ContentID)
}

// Each calls fn for every entry matching q in ascending relative path order.
// Iteration stops at the first error returned by fn.
func (c *Catalog) Each(ctx context.Context, q Query, fn func(models.CatalogEntry) error) error {
	rows, err := c.db.QueryContext(ctx,
		`SELECT fileID, domain, relativePath, flags, file FROM Files
		 WHERE domain LIKE ? ESCAPE '\' AND relativePath LIKE ? ESCAPE '\'
		 ORDER BY relativePath`,
		GlobToLike(q.Domain), GlobToLike(q.Path))
	if err != nil {
		return fmt.Errorf("query catalog: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			utils.LogError("Failed to close catalog rows", map[string]string{"error": err.Error()})
		}
	}()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate catalog: %w", err)
	}
	return nil
}

// Lookup returns the entry with the exact domain and relative path.
func (c *Catalog) Lookup(ctx context.Context, domain, relativePath string) (models.CatalogEntry, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT fileID, domain, relativePath, flags, file FROM Files
		 WHERE domain = ? AND relativePath = ? LIMIT 1`,
		domain, relativePath)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CatalogEntry{}, fmt.Errorf("%w: %s/%s", ErrNotFound, domain, relativePath)
	}
	return entry, err
}

// Companion locates a companion database and checks it is a usable store of
// the given type. Any problem is reported as ErrStoreMissing.
func (c *Catalog) Companion(ctx context.Context, domain, relativePath string, store artifactdetector.StoreType) (string, error) {
	entry, err := c.Lookup(ctx, domain, relativePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreMissing, err)
	}
	source := c.SourcePath(entry)
	if _, err := os.Stat(source); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrStoreMissing, relativePath, err)
	}
	if err := c.classifier.Verify(ctx, source, store); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrStoreMissing, relativePath, err)
	}
	return source, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (models.CatalogEntry, error) {
	var (
		entry models.CatalogEntry
		flags sql.NullInt64
	)
	if err := s.Scan(&entry.ContentID, &entry.Domain, &entry.RelativePath, &flags, &entry.MetadataBlob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entry, err
		}
		return entry, fmt.Errorf("scan catalog row: %w", err)
	}
	entry.Flags = flags.Int64
	return entry, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `*`, `%`, `?`, `_`)

// GlobToLike translates a '*'/'?' glob to a SQL LIKE pattern escaped with '\'.
// An empty glob matches everything.
func GlobToLike(glob string) string {
	if glob == "" {
		return "%"
	}
	return likeEscaper.Replace(glob)
}
