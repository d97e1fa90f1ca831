// Package whatsapp rebuilds chat transcripts from the WhatsApp message store,
// its contact directory and the media paths resolved during extraction.
package whatsapp

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver for the chat store

	"github.com/ilexum-group/iosextract/internal/utils"
	"github.com/ilexum-group/iosextract/pkg/models"
)

// Optional tables; older stores lack some of them.
const (
	tableMediaItem   = "ZWAMEDIAITEM"
	tableGroupMember = "ZWAGROUPMEMBER"
	tableDataItem    = "ZWAMESSAGEDATAITEM"
)

// Store reads sessions and messages from ChatStorage.sqlite.
type Store struct {
	db     *sql.DB
	tables map[string]bool
}

// OpenStore opens the chat store at path read-only.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open chat store: %w", err)
	}

	tables, err := listTables(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, optional := range []string{tableMediaItem, tableGroupMember, tableDataItem} {
		if !tables[optional] {
			utils.LogDebug("Chat store table absent", map[string]string{"table": optional})
		}
	}
	return &Store{db: db, tables: tables}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func listTables(ctx context.Context, db *sql.DB) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return nil, fmt.Errorf("read chat store schema: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("read chat store schema: %w", err)
		}
		tables[strings.ToUpper(name)] = true
	}
	return tables, rows.Err()
}

// Sessions returns every session with at least one message, in session order.
func (s *Store) Sessions(ctx context.Context) ([]models.ChatSession, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.Z_PK, s.ZPARTNERNAME, s.ZLASTMESSAGEDATE, s.ZCONTACTJID, s.ZCONTACTIDENTIFIER
		FROM ZWACHATSESSION s
		WHERE EXISTS (
			SELECT 1 FROM ZWAMESSAGE m
			WHERE m.ZFROMJID IN (s.ZCONTACTJID, s.ZCONTACTIDENTIFIER)
			   OR m.ZTOJID IN (s.ZCONTACTJID, s.ZCONTACTIDENTIFIER)
		)
		ORDER BY s.Z_PK`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []models.ChatSession
	for rows.Next() {
		var (
			session                  models.ChatSession
			partner, legacy, current sql.NullString
			last                     sql.NullFloat64
		)
		if err := rows.Scan(&session.ID, &partner, &last, &legacy, &current); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		session.PartnerName = partner.String
		session.LastMessageTimestamp = last.Float64
		session.LegacyIdentifier = legacy.String
		session.CurrentIdentifier = current.String
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// Messages calls fn for every message sent to or received from session, in
// message order, with media, group member and data item attributes joined.
func (s *Store) Messages(ctx context.Context, session models.ChatSession, fn func(models.Message) error) error {
	legacy, current := session.LegacyIdentifier, session.CurrentIdentifier
	if current == "" {
		current = legacy
	}
	if legacy == "" {
		legacy = current
	}

	rows, err := s.db.QueryContext(ctx, s.messageQuery(), legacy, current, legacy, current)
	if err != nil {
		return fmt.Errorf("query messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			msg                                models.Message
			date                               sql.NullFloat64
			msgType                            sql.NullInt64
			chatRef                            sql.NullInt64
			title, summary, content1, content2 sql.NullString
			hasDataItem                        bool
		)
		if err := rows.Scan(
			&msg.ID, &msg.FromID, &msg.ToID, &msg.Text, &date, &chatRef,
			&msg.GroupMemberID, &msg.GroupMemberIdentifier, &msgType,
			&msg.MediaLocalPath, &msg.MediaThumbnailPath,
			&hasDataItem, &title, &summary, &content1, &content2,
		); err != nil {
			return fmt.Errorf("scan message: %w", err)
		}
		msg.Timestamp = date.Float64
		msg.ChatSession = chatRef.Int64
		msg.Type = models.MessageType(msgType.Int64)
		if hasDataItem {
			msg.DataItem = &models.DataItem{Title: title, Summary: summary, Content1: content1, Content2: content2}
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate messages: %w", err)
	}
	return nil
}

// messageQuery builds the message join for the tables this store has.
func (s *Store) messageQuery() string {
	media := "NULL, NULL"
	member := "NULL"
	dataItem := "0, NULL, NULL, NULL, NULL"
	var joins []string

	if s.tables[tableMediaItem] {
		media = "mi.ZMEDIALOCALPATH, mi.ZXMPPTHUMBPATH"
		joins = append(joins, "LEFT JOIN ZWAMEDIAITEM mi ON mi.Z_PK = m.ZMEDIAITEM")
	}
	if s.tables[tableGroupMember] {
		member = "gm.ZMEMBERJID"
		joins = append(joins, "LEFT JOIN ZWAGROUPMEMBER gm ON gm.Z_PK = m.ZGROUPMEMBER")
	}
	if s.tables[tableDataItem] {
		dataItem = "di.Z_PK IS NOT NULL, di.ZTITLE, di.ZSUMMARY, di.ZCONTENT1, di.ZCONTENT2"
		joins = append(joins, "LEFT JOIN ZWAMESSAGEDATAITEM di ON di.Z_PK = (SELECT MIN(Z_PK) FROM ZWAMESSAGEDATAITEM WHERE ZMESSAGE = m.Z_PK)")
	}

	return fmt.Sprintf(`
		SELECT m.Z_PK, m.ZFROMJID, m.ZTOJID, m.ZTEXT, m.ZMESSAGEDATE, m.ZCHATSESSION,
		       m.ZGROUPMEMBER, %s, m.ZMESSAGETYPE, %s, %s
		FROM ZWAMESSAGE m
		%s
		WHERE m.ZFROMJID IN (?, ?) OR m.ZTOJID IN (?, ?)
		ORDER BY m.ZMESSAGEDATE, m.Z_PK`, member, media, dataItem, strings.Join(joins, "\n\t\t"))
}
