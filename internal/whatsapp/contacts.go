package whatsapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ilexum-group/iosextract/internal/utils"
	"github.com/ilexum-group/iosextract/pkg/models"
)

// LidSuffix marks identifiers of the current (linked id) scheme.
const LidSuffix = "@lid"

// ContactIndex looks contacts up by either identifier scheme.
type ContactIndex struct {
	byLegacy  map[string]models.Contact
	byCurrent map[string]models.Contact
}

// NewContactIndex builds an index over contacts.
func NewContactIndex(contacts []models.Contact) *ContactIndex {
	idx := &ContactIndex{
		byLegacy:  make(map[string]models.Contact, len(contacts)),
		byCurrent: make(map[string]models.Contact, len(contacts)),
	}
	for _, c := range contacts {
		if c.LegacyID != "" {
			idx.byLegacy[c.LegacyID] = c
		}
		if c.CurrentID != "" {
			idx.byCurrent[c.CurrentID] = c
		}
	}
	return idx
}

// LoadContacts reads the WhatsApp contact directory at path. An empty path
// or a missing file yields an empty index.
func LoadContacts(ctx context.Context, path string) (*ContactIndex, error) {
	if path == "" {
		return NewContactIndex(nil), nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		utils.LogWarn("Contact directory not found, names fall back to identifiers", map[string]string{"path": path})
		return NewContactIndex(nil), nil
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open contacts: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, `SELECT Z_PK, ZFULLNAME, ZBUSINESSNAME, ZPHONENUMBER, ZWHATSAPPID, ZLID
		FROM ZWAADDRESSBOOKCONTACT ORDER BY Z_PK`)
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var contacts []models.Contact
	for rows.Next() {
		var (
			c                                      models.Contact
			full, business, phone, legacy, current sql.NullString
		)
		if err := rows.Scan(&c.ID, &full, &business, &phone, &legacy, &current); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		c.FullName = full.String
		c.BusinessName = business.String
		c.PhoneNumber = phone.String
		c.LegacyID = legacy.String
		c.CurrentID = current.String
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}

	utils.LogInfo("Contact directory loaded", map[string]string{"contacts": fmt.Sprintf("%d", len(contacts))})
	return NewContactIndex(contacts), nil
}

// ByLegacy returns the contact with the given legacy identifier.
func (i *ContactIndex) ByLegacy(id string) (models.Contact, bool) {
	c, ok := i.byLegacy[id]
	return c, ok
}

// ByCurrent returns the contact with the given current identifier.
func (i *ContactIndex) ByCurrent(id string) (models.Contact, bool) {
	c, ok := i.byCurrent[id]
	return c, ok
}

// Lookup resolves id through the current scheme first, then the legacy one.
func (i *ContactIndex) Lookup(id string) (models.Contact, bool) {
	if c, ok := i.byCurrent[id]; ok {
		return c, true
	}
	if c, ok := i.byCurrent[id+LidSuffix]; ok {
		return c, true
	}
	c, ok := i.byLegacy[id]
	return c, ok
}

// Len returns the number of distinct identifiers indexed.
func (i *ContactIndex) Len() int {
	return len(i.byLegacy) + len(i.byCurrent)
}
