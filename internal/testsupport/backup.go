// Package testsupport builds backup fixtures for tests: a catalog database,
// content-addressed files and the metadata blobs that describe them.
package testsupport

import (
	"crypto/sha1" //nolint:gosec // content ids are SHA1 by construction
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"howett.net/plist"
	_ "modernc.org/sqlite"

	"github.com/ilexum-group/iosextract/pkg/models"
)

// Backup is a throwaway backup directory with a writable catalog.
type Backup struct {
	t    testing.TB
	Root string
	db   *sql.DB
}

// NewBackup creates an empty backup with a Files table.
func NewBackup(t testing.TB) *Backup {
	t.Helper()

	root := t.TempDir()
	db, err := sql.Open("sqlite", filepath.Join(root, "Manifest.db"))
	if err != nil {
		t.Fatalf("open manifest: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Exec(`CREATE TABLE Files (
		fileID TEXT PRIMARY KEY,
		domain TEXT,
		relativePath TEXT,
		flags INTEGER,
		file BLOB
	)`); err != nil {
		t.Fatalf("create Files: %v", err)
	}
	return &Backup{t: t, Root: root, db: db}
}

// ContentID returns the id the backup format assigns to domain/relativePath.
func ContentID(domain, relativePath string) string {
	sum := sha1.Sum([]byte(domain + "-" + relativePath)) //nolint:gosec // id scheme, not security
	return hex.EncodeToString(sum[:])
}

// AddFile registers a catalog row and, when content is non-nil, stores the
// content in the bucket the content id selects.
func (b *Backup) AddFile(domain, relativePath string, content, blob []byte) models.CatalogEntry {
	b.t.Helper()

	entry := models.CatalogEntry{
		ContentID:    ContentID(domain, relativePath),
		Domain:       domain,
		RelativePath: relativePath,
		Flags:        1,
		MetadataBlob: blob,
	}
	if _, err := b.db.Exec(`INSERT INTO Files (fileID, domain, relativePath, flags, file) VALUES (?, ?, ?, ?, ?)`,
		entry.ContentID, entry.Domain, entry.RelativePath, entry.Flags, entry.MetadataBlob); err != nil {
		b.t.Fatalf("insert %s: %v", relativePath, err)
	}
	if content != nil {
		path := b.StorePath(entry)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			b.t.Fatalf("mkdir bucket: %v", err)
		}
		if err := os.WriteFile(path, content, 0o600); err != nil {
			b.t.Fatalf("write content: %v", err)
		}
	}
	return entry
}

// AddDatabase stores a SQLite database built from stmts under domain/relativePath
// and returns its path in the store.
func (b *Backup) AddDatabase(domain, relativePath string, stmts ...string) string {
	b.t.Helper()

	entry := b.AddFile(domain, relativePath, nil, nil)
	path := b.StorePath(entry)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		b.t.Fatalf("mkdir bucket: %v", err)
	}
	ExecSQLite(b.t, path, stmts...)
	return path
}

// StorePath returns where entry's content lives.
func (b *Backup) StorePath(entry models.CatalogEntry) string {
	return filepath.Join(b.Root, entry.Bucket(), entry.ContentID)
}

// ExecSQLite creates or opens the database at path and runs stmts in order.
func ExecSQLite(t testing.TB, path string, stmts ...string) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer func() { _ = db.Close() }()
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
}

// MetadataBlob builds an NSKeyedArchiver MBFile blob. A zero lastModified
// leaves the field out; an empty originalName omits the extended attributes.
func MetadataBlob(t testing.TB, lastModified time.Time, size int64, originalName string) []byte {
	t.Helper()

	root := map[string]interface{}{
		"Size":  size,
		"Mode":  33188,
		"Flags": 0,
	}
	if !lastModified.IsZero() {
		root["LastModified"] = lastModified.Unix()
	}
	objects := []interface{}{"$null", root}
	if originalName != "" {
		xattrs, err := plist.Marshal(map[string]interface{}{
			"com.apple.assetsd.originalFilename": []byte(originalName),
		}, plist.BinaryFormat)
		if err != nil {
			t.Fatalf("marshal xattrs: %v", err)
		}
		root["ExtendedAttributes"] = plist.UID(2)
		objects = append(objects, xattrs)
	}

	blob, err := plist.Marshal(map[string]interface{}{
		"$archiver": "NSKeyedArchiver",
		"$version":  100000,
		"$top":      map[string]interface{}{"root": plist.UID(1)},
		"$objects":  objects,
	}, plist.BinaryFormat)
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	return blob
}
