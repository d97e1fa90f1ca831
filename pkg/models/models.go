// Package models defines the records that flow through the extractor: catalog
// entries, decoded file metadata, chat sessions, messages, contacts and the
// extraction report.
package models

import (
	"database/sql"
	"strings"
	"time"
)

// CatalogEntry is one row of the backup catalog (Manifest.db Files table).
type CatalogEntry struct {
	ContentID    string
	Domain       string
	RelativePath string
	Flags        int64
	MetadataBlob []byte
}

// Bucket returns the storage sub-directory of the entry in the content store.
func (e CatalogEntry) Bucket() string {
	if len(e.ContentID) < 2 {
		return e.ContentID
	}
	return e.ContentID[:2]
}

// DecodedMetadata is the useful subset of a catalog entry's metadata blob.
// Absent values are nil.
type DecodedMetadata struct {
	LastModified     *time.Time
	Size             *int64
	OriginalFilename *string
}

// HasLastModified reports whether a modification time was recovered.
func (m DecodedMetadata) HasLastModified() bool {
	return m.LastModified != nil
}

// Contact is one row of the WhatsApp contact directory.
type Contact struct {
	ID           int64
	FullName     string
	BusinessName string
	PhoneNumber  string
	LegacyID     string // <phone>@s.whatsapp.net
	CurrentID    string // <lid>@lid
}

// DisplayName returns the best human label for the contact.
func (c Contact) DisplayName() string {
	switch {
	case c.FullName != "":
		return c.FullName
	case c.BusinessName != "":
		return c.BusinessName
	case c.PhoneNumber != "":
		return c.PhoneNumber
	case c.LegacyID != "":
		return c.LegacyID
	default:
		return c.CurrentID
	}
}

// ChatSession is a conversation that has at least one message.
type ChatSession struct {
	ID                   int64
	PartnerName          string
	LastMessageTimestamp float64 // reference-epoch seconds
	LegacyIdentifier     string
	CurrentIdentifier    string
}

// MessageType is the message kind code stored in the chat store.
type MessageType int

// Message kinds with distinct transcript formatting.
const (
	MessageText      MessageType = 0
	MessageImage     MessageType = 1
	MessageVideo     MessageType = 2
	MessageAudio     MessageType = 3
	MessageLink      MessageType = 7
	MessageDocument  MessageType = 8
	MessageSticker   MessageType = 15
	MessageVoiceCall MessageType = 59
)

// String returns a short lowercase label for the type.
func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageImage:
		return "image"
	case MessageVideo:
		return "video"
	case MessageAudio:
		return "audio"
	case MessageLink:
		return "link"
	case MessageDocument:
		return "document"
	case MessageSticker:
		return "sticker"
	case MessageVoiceCall:
		return "voice call"
	default:
		return "other"
	}
}

// DataItem is the rich link preview attached to a message.
type DataItem struct {
	Title    sql.NullString
	Summary  sql.NullString
	Content1 sql.NullString
	Content2 sql.NullString
}

// Message is one joined row of the chat store. It lives only while its
// transcript line is rendered.
type Message struct {
	ID                    int64
	FromID                sql.NullString
	ToID                  sql.NullString
	Text                  sql.NullString
	Timestamp             float64 // reference-epoch seconds
	ChatSession           int64
	GroupMemberID         sql.NullInt64
	GroupMemberIdentifier sql.NullString
	Type                  MessageType
	MediaLocalPath        sql.NullString
	MediaThumbnailPath    sql.NullString
	DataItem              *DataItem
}

// IsFromMe reports whether the message has no external sender.
func (m Message) IsFromMe() bool {
	return !m.FromID.Valid || m.FromID.String == ""
}

// PassStats counts the outcome of one catalog filter pass.
type PassStats struct {
	Name       string   `json:"name"`
	Entries    int      `json:"entries"`
	Processed  int      `json:"processed"`
	Linked     int      `json:"linked"`
	Existing   int      `json:"existing"`
	Missing    int      `json:"missing"`
	DecodeWarn int      `json:"decode_warnings"`
	Errors     []string `json:"errors"`
}

// CardValue is one labelled phone number or email address of an address
// book person.
type CardValue struct {
	Label string
	Value string
}

// CardAddress is one labelled postal address of an address book person.
type CardAddress struct {
	Label   string
	Street  string
	City    string
	State   string
	ZIP     string
	Country string
}

// Card is an address book person flattened for card export.
type Card struct {
	ID           int64
	First        string
	Middle       string
	Last         string
	Organization string
	Birthday     *time.Time
	Phones       []CardValue
	Emails       []CardValue
	Addresses    []CardAddress
}

// FormattedName returns the full name, or the organization for company cards.
func (c Card) FormattedName() string {
	var parts []string
	for _, p := range []string{c.First, c.Middle, c.Last} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return c.Organization
}
