package whatsapp

import (
	"fmt"
	"html"
	"net/url"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/ilexum-group/iosextract/internal/utils"
	"github.com/ilexum-group/iosextract/pkg/models"
)

// SelfMarker names the device owner on lines they sent.
const SelfMarker = "Me"

// MediaIndex resolves chat store media paths to extracted files.
type MediaIndex interface {
	Lookup(storePath string) (string, bool)
}

// Renderer formats joined messages as transcript lines.
type Renderer struct {
	contacts *ContactIndex
	media    MediaIndex
}

// NewRenderer creates a Renderer. Nil arguments behave as empty indexes.
func NewRenderer(contacts *ContactIndex, media MediaIndex) *Renderer {
	if contacts == nil {
		contacts = NewContactIndex(nil)
	}
	return &Renderer{contacts: contacts, media: media}
}

// Sender returns the display name of whoever sent msg.
func (r *Renderer) Sender(session models.ChatSession, msg models.Message) string {
	if msg.GroupMemberID.Valid {
		if id := msg.GroupMemberIdentifier.String; id != "" {
			if c, ok := r.contacts.Lookup(id); ok {
				return c.DisplayName()
			}
			return id
		}
	}
	if msg.IsFromMe() {
		return SelfMarker
	}
	if session.PartnerName != "" {
		return session.PartnerName
	}
	return msg.FromID.String
}

// Timestamp formats the message time as local time.
func Timestamp(msg models.Message) string {
	return utils.FromAppleSeconds(msg.Timestamp).Format(utils.TranscriptLayout)
}

// resolveMedia returns the extracted file for a stored media path, or the
// stored path itself when the file was not extracted.
func (r *Renderer) resolveMedia(stored string) (string, bool) {
	if r.media == nil || stored == "" {
		return stored, false
	}
	if dest, ok := r.media.Lookup(stored); ok {
		return dest, true
	}
	return stored, false
}

// mediaPath returns the stored media reference of msg, falling back to the
// thumbnail when only the preview was downloaded.
func mediaPath(msg models.Message) string {
	if msg.MediaLocalPath.String != "" {
		return msg.MediaLocalPath.String
	}
	return msg.MediaThumbnailPath.String
}

func mediaLabel(t models.MessageType) (string, bool) {
	switch t {
	case models.MessageImage, models.MessageVideo, models.MessageSticker, models.MessageAudio, models.MessageDocument:
		return t.String(), true
	default:
		return "", false
	}
}

// TextLine renders msg as a plain text transcript line.
func (r *Renderer) TextLine(session models.ChatSession, msg models.Message) string {
	text := msg.Text.String
	var b strings.Builder

	if label, ok := mediaLabel(msg.Type); ok {
		path, _ := r.resolveMedia(mediaPath(msg))
		fmt.Fprintf(&b, "[%s] %s", label, path)
		if text != "" {
			b.WriteString(" ")
			b.WriteString(text)
		}
	} else if msg.Type == models.MessageVoiceCall {
		b.WriteString("[voice call]")
		if text != "" {
			b.WriteString(" ")
			b.WriteString(text)
		}
	} else {
		b.WriteString(text)
	}

	for _, extra := range dataItemFields(msg) {
		b.WriteString(" | ")
		b.WriteString(extra)
	}

	return fmt.Sprintf("%s: %s: %s", Timestamp(msg), r.Sender(session, msg), b.String())
}

// HTMLLine renders msg as one hypertext transcript line. Media references
// are made relative to htmlDir, the directory the transcript is written to.
func (r *Renderer) HTMLLine(session models.ChatSession, msg models.Message, htmlDir string) string {
	text := msg.Text.String
	var b strings.Builder

	switch msg.Type {
	case models.MessageImage, models.MessageSticker:
		class := "image"
		if msg.Type == models.MessageSticker {
			class = "sticker"
		}
		fmt.Fprintf(&b, `<img class="%s" src="%s" alt="%s">`, class, r.mediaRef(mediaPath(msg), htmlDir), class)
	case models.MessageVideo:
		fmt.Fprintf(&b, `<video controls src="%s"></video>`, r.mediaRef(mediaPath(msg), htmlDir))
	case models.MessageAudio:
		fmt.Fprintf(&b, `<audio controls src="%s"></audio>`, r.mediaRef(mediaPath(msg), htmlDir))
	case models.MessageDocument:
		stored := mediaPath(msg)
		fmt.Fprintf(&b, `<a href="%s">%s</a>`, r.mediaRef(stored, htmlDir), html.EscapeString(filepath.Base(stored)))
	case models.MessageVoiceCall:
		b.WriteString("<i>voice call</i>")
	case models.MessageLink:
		if before, link, raw, after, ok := splitLink(text); ok {
			fmt.Fprintf(&b, `%s<a href="%s">%s</a>%s`,
				escapeText(before), html.EscapeString(link.String()), html.EscapeString(raw), escapeText(after))
			text = ""
		}
	case models.MessageText:
	}

	if text != "" {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(escapeText(text))
	}
	for _, extra := range dataItemFields(msg) {
		b.WriteString("<br>")
		b.WriteString(escapeText(extra))
	}

	return fmt.Sprintf("<p>%s: <b>%s</b>: %s</p>",
		html.EscapeString(Timestamp(msg)), html.EscapeString(r.Sender(session, msg)), b.String())
}

// mediaRef returns an attribute-safe reference to a stored media path.
func (r *Renderer) mediaRef(stored, htmlDir string) string {
	path, found := r.resolveMedia(stored)
	if !found {
		return html.EscapeString(stored)
	}
	if rel, err := filepath.Rel(htmlDir, path); err == nil {
		path = rel
	}
	segments := strings.Split(filepath.ToSlash(path), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return html.EscapeString(strings.Join(segments, "/"))
}

// dataItemFields returns the preview fields worth showing: present, not
// empty and not a repeat of anything already rendered for the message.
func dataItemFields(msg models.Message) []string {
	if msg.DataItem == nil {
		return nil
	}
	shown := map[string]bool{strings.TrimSpace(msg.Text.String): true}
	var fields []string
	for _, field := range []string{
		msg.DataItem.Title.String,
		msg.DataItem.Summary.String,
		msg.DataItem.Content1.String,
		msg.DataItem.Content2.String,
	} {
		field = strings.TrimSpace(field)
		if field == "" || shown[field] {
			continue
		}
		shown[field] = true
		fields = append(fields, field)
	}
	return fields
}

// splitLink finds the first http or https URL in text and returns the text
// around it. Only that URL is ever placed in an href.
func splitLink(text string) (before string, link *url.URL, raw, after string, ok bool) {
	lower := strings.ToLower(text)
	start := -1
	for _, scheme := range []string{"http://", "https://"} {
		if i := strings.Index(lower, scheme); i >= 0 && (start < 0 || i < start) {
			start = i
		}
	}
	if start < 0 {
		return "", nil, "", "", false
	}
	end := len(text)
	if i := strings.IndexFunc(text[start:], unicode.IsSpace); i >= 0 {
		end = start + i
	}
	raw = text[start:end]
	link, err := url.Parse(raw)
	if err != nil || link.Host == "" || (link.Scheme != "http" && link.Scheme != "https") {
		return "", nil, "", "", false
	}
	return text[:start], link, raw, text[end:], true
}

func escapeText(s string) string {
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>")
}

// htmlHeader and htmlFooter wrap a hypertext transcript.
func htmlHeader(title string) string {
	return "<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>" +
		html.EscapeString(title) + "</title>\n</head>\n<body>\n"
}

const htmlFooter = "</body>\n</html>\n"
