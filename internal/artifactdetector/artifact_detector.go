// Package artifactdetector classifies companion databases found in a backup
// by signature and schema before an export phase opens them.
package artifactdetector

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver for companion stores
)

// SQLiteSignature is the header every SQLite 3 database starts with.
var SQLiteSignature = []byte("SQLite format 3\x00")

// ErrNotSQLite is returned when a file lacks the SQLite header.
var ErrNotSQLite = errors.New("not a SQLite database")

// StoreType identifies a companion database by the tables it must contain.
type StoreType string

const (
	// StoreChat is the WhatsApp ChatStorage.sqlite message store.
	StoreChat StoreType = "chat_storage"
	// StoreContacts is the WhatsApp ContactsV2.sqlite directory.
	StoreContacts StoreType = "whatsapp_contacts"
	// StoreAddressBook is the system AddressBook.sqlitedb.
	StoreAddressBook StoreType = "address_book"
	// StoreNotes is the Notes NoteStore.sqlite, handed to an external converter.
	StoreNotes StoreType = "notes"
)

var requiredTables = map[StoreType][]string{
	StoreChat:        {"ZWACHATSESSION", "ZWAMESSAGE"},
	StoreContacts:    {"ZWAADDRESSBOOKCONTACT"},
	StoreAddressBook: {"ABPerson", "ABMultiValue"},
	StoreNotes:       {},
}

// Classifier provides stateless artifact checks
type Classifier struct {
	headerReader func(path string) ([]byte, error)
}

// NewClassifier creates a classifier reading headers from the host filesystem.
func NewClassifier() *Classifier {
	return &Classifier{headerReader: readHeader}
}

// SetHeaderReader sets the custom header reader function
func (c *Classifier) SetHeaderReader(reader func(path string) ([]byte, error)) {
	c.headerReader = reader
}

//nolint:gosec // G304: Paths come from the backup catalog
func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	header := make([]byte, len(SQLiteSignature))
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return header[:n], nil
}

// IsSQLite reports whether the file at path carries the SQLite signature.
func (c *Classifier) IsSQLite(path string) (bool, error) {
	header, err := c.headerReader(path)
	if err != nil {
		return false, fmt.Errorf("failed to read header: %w", err)
	}
	return bytes.HasPrefix(header, SQLiteSignature), nil
}

// Verify checks that path is a SQLite database holding every table the
// store type needs. Table names are matched case-insensitively.
func (c *Classifier) Verify(ctx context.Context, path string, store StoreType) error {
	ok, err := c.IsSQLite(path)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotSQLite
	}

	tables := requiredTables[store]
	if len(tables) == 0 {
		return nil
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open sqlite db: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("read schema: %w", err)
		}
		present[strings.ToUpper(name)] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	var missing []string
	for _, table := range tables {
		if !present[strings.ToUpper(table)] {
			missing = append(missing, table)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s store lacks tables %s", store, strings.Join(missing, ", "))
	}
	return nil
}
