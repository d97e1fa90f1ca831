// Package vcard exports the system address book as a vCard 3.0 file.
package vcard

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for the address book

	"github.com/ilexum-group/iosextract/internal/utils"
	"github.com/ilexum-group/iosextract/pkg/models"
)

// ABMultiValue property codes.
const (
	propertyPhone   = 3
	propertyEmail   = 4
	propertyAddress = 5
)

// Optional address book tables.
const (
	tableLabel    = "ABMULTIVALUELABEL"
	tableEntry    = "ABMULTIVALUEENTRY"
	tableEntryKey = "ABMULTIVALUEENTRYKEY"
)

// Load reads every person of the address book at path, in row order.
func Load(ctx context.Context, path string) ([]models.Card, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open address book: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			utils.LogDebug("Failed to close address book", map[string]string{"error": err.Error()})
		}
	}()

	tables, err := listTables(ctx, db)
	if err != nil {
		return nil, err
	}

	cards, byID, err := loadPeople(ctx, db)
	if err != nil {
		return nil, err
	}
	if err := loadValues(ctx, db, tables, byID); err != nil {
		return nil, err
	}
	if tables[tableEntry] && tables[tableEntryKey] {
		if err := loadAddresses(ctx, db, tables, byID); err != nil {
			return nil, err
		}
	}

	out := make([]models.Card, 0, len(cards))
	for _, c := range cards {
		out = append(out, *c)
	}
	return out, nil
}

func listTables(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return nil, fmt.Errorf("read address book schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("read address book schema: %w", err)
		}
		tables[strings.ToUpper(name)] = true
	}
	return tables, rows.Err()
}

func loadPeople(ctx context.Context, db *sql.DB) ([]*models.Card, map[int64]*models.Card, error) {
	rows, err := db.QueryContext(ctx, `SELECT ROWID, First, Middle, Last, Organization, Birthday
		FROM ABPerson ORDER BY ROWID`)
	if err != nil {
		return nil, nil, fmt.Errorf("query people: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cards []*models.Card
	byID := make(map[int64]*models.Card)
	for rows.Next() {
		var (
			card                               models.Card
			first, middle, last, org, birthday sql.NullString
		)
		if err := rows.Scan(&card.ID, &first, &middle, &last, &org, &birthday); err != nil {
			return nil, nil, fmt.Errorf("scan person: %w", err)
		}
		card.First = strings.TrimSpace(first.String)
		card.Middle = strings.TrimSpace(middle.String)
		card.Last = strings.TrimSpace(last.String)
		card.Organization = strings.TrimSpace(org.String)
		if birthday.Valid && strings.TrimSpace(birthday.String) != "" {
			seconds, err := strconv.ParseFloat(strings.TrimSpace(birthday.String), 64)
			if err != nil {
				utils.LogWarn("Unreadable birthday", map[string]string{
					"person": strconv.FormatInt(card.ID, 10),
					"value":  birthday.String,
				})
			} else {
				bday := utils.FromAppleSeconds(seconds)
				card.Birthday = &bday
			}
		}
		cards = append(cards, &card)
		byID[card.ID] = &card
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate people: %w", err)
	}
	return cards, byID, nil
}

func labelColumn(tables map[string]bool) (string, string) {
	if tables[tableLabel] {
		return "l.value", "LEFT JOIN ABMultiValueLabel l ON l.ROWID = mv.label"
	}
	return "NULL", ""
}

func loadValues(ctx context.Context, db *sql.DB, tables map[string]bool, byID map[int64]*models.Card) error {
	label, join := labelColumn(tables)
	query := fmt.Sprintf(`SELECT mv.record_id, mv.property, %s, mv.value
		FROM ABMultiValue mv %s
		WHERE mv.property IN (%d, %d)
		ORDER BY mv.record_id, mv.ROWID`, label, join, propertyPhone, propertyEmail)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query multi values: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			recordID, property int64
			labelText, value   sql.NullString
		)
		if err := rows.Scan(&recordID, &property, &labelText, &value); err != nil {
			return fmt.Errorf("scan multi value: %w", err)
		}
		card, ok := byID[recordID]
		if !ok || strings.TrimSpace(value.String) == "" {
			continue
		}
		v := models.CardValue{Label: cleanLabel(labelText.String), Value: strings.TrimSpace(value.String)}
		if property == propertyPhone {
			card.Phones = append(card.Phones, v)
		} else {
			card.Emails = append(card.Emails, v)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate multi values: %w", err)
	}
	return nil
}

func loadAddresses(ctx context.Context, db *sql.DB, tables map[string]bool, byID map[int64]*models.Card) error {
	label, join := labelColumn(tables)
	query := fmt.Sprintf(`SELECT mv.ROWID, mv.record_id, %s, k.value, e.value
		FROM ABMultiValue mv %s
		JOIN ABMultiValueEntry e ON e.parent_id = mv.ROWID
		JOIN ABMultiValueEntryKey k ON k.ROWID = e.key
		WHERE mv.property = %d
		ORDER BY mv.record_id, mv.ROWID`, label, join, propertyAddress)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query addresses: %w", err)
	}
	defer func() { _ = rows.Close() }()

	type pending struct {
		card *models.Card
		addr models.CardAddress
	}
	var (
		order []int64
		parts = make(map[int64]*pending)
	)
	for rows.Next() {
		var (
			valueID, recordID     int64
			labelText, key, value sql.NullString
		)
		if err := rows.Scan(&valueID, &recordID, &labelText, &key, &value); err != nil {
			return fmt.Errorf("scan address: %w", err)
		}
		card, ok := byID[recordID]
		if !ok {
			continue
		}
		p, ok := parts[valueID]
		if !ok {
			p = &pending{card: card, addr: models.CardAddress{Label: cleanLabel(labelText.String)}}
			parts[valueID] = p
			order = append(order, valueID)
		}
		v := strings.TrimSpace(value.String)
		switch strings.ToLower(key.String) {
		case "street":
			p.addr.Street = v
		case "city":
			p.addr.City = v
		case "state":
			p.addr.State = v
		case "zip":
			p.addr.ZIP = v
		case "country":
			p.addr.Country = v
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate addresses: %w", err)
	}

	for _, id := range order {
		p := parts[id]
		p.card.Addresses = append(p.card.Addresses, p.addr)
	}
	return nil
}

// cleanLabel turns "_$!<Mobile>!$_" into "Mobile".
func cleanLabel(label string) string {
	label = strings.TrimPrefix(label, "_$!<")
	label = strings.TrimSuffix(label, ">!$_")
	return strings.TrimSpace(label)
}

// birthdayLayout is the vCard BDAY date form.
const birthdayLayout = "2006-01-02"

func formatBirthday(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(birthdayLayout)
}
