package vcard

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	govcard "github.com/emersion/go-vcard"

	"github.com/ilexum-group/iosextract/internal/utils"
	"github.com/ilexum-group/iosextract/pkg/models"
)

// Output location below the output root.
const (
	OutputDir = "Contacts"
	FileName  = "contacts.vcf"
)

// Version is the vCard version written to every card.
const Version = "3.0"

// maxLineOctets is the folding limit for content lines.
const maxLineOctets = 75

func typeParams(label, fallback string) govcard.Params {
	if label == "" {
		label = fallback
	}
	return govcard.Params{govcard.ParamType: {strings.ToLower(strings.Join(strings.Fields(label), "-"))}}
}

// toCard converts c to a vCard, or reports false for persons without any
// name, organization, phone or email.
func toCard(c models.Card) (govcard.Card, bool) {
	fn := c.FormattedName()
	if fn == "" && len(c.Phones) == 0 && len(c.Emails) == 0 {
		return nil, false
	}
	if fn == "" {
		fn = firstValue(c)
	}

	card := make(govcard.Card)
	card.SetValue(govcard.FieldVersion, Version)
	card.SetValue(govcard.FieldFormattedName, fn)
	card.SetName(&govcard.Name{FamilyName: c.Last, GivenName: c.First, AdditionalName: c.Middle})
	if c.Organization != "" {
		card.SetValue(govcard.FieldOrganization, c.Organization)
	}
	for _, p := range c.Phones {
		card.Add(govcard.FieldTelephone, &govcard.Field{Value: p.Value, Params: typeParams(p.Label, govcard.TypeVoice)})
	}
	for _, e := range c.Emails {
		card.Add(govcard.FieldEmail, &govcard.Field{Value: e.Value, Params: typeParams(e.Label, "internet")})
	}
	for _, a := range c.Addresses {
		card.AddAddress(&govcard.Address{
			Field:         &govcard.Field{Params: typeParams(a.Label, govcard.TypeHome)},
			StreetAddress: a.Street,
			Locality:      a.City,
			Region:        a.State,
			PostalCode:    a.ZIP,
			Country:       a.Country,
		})
	}
	if bday := formatBirthday(c.Birthday); bday != "" {
		card.SetValue(govcard.FieldBirthday, bday)
	}
	return card, true
}

// Encode writes cards as vCard 3.0 blocks with content lines folded at 75
// octets. Persons without any name, organization, phone or email are skipped.
func Encode(w io.Writer, cards []models.Card) (int, error) {
	fw := &foldingWriter{w: bufio.NewWriter(w)}
	enc := govcard.NewEncoder(fw)
	written := 0
	for _, c := range cards {
		card, ok := toCard(c)
		if !ok {
			continue
		}
		if err := enc.Encode(card); err != nil {
			return written, err
		}
		written++
	}
	if err := fw.flush(); err != nil {
		return written, err
	}
	return written, fw.w.Flush()
}

// foldingWriter folds CRLF-terminated content lines longer than
// maxLineOctets into continuation lines starting with a space. Folds never
// split a UTF-8 sequence.
type foldingWriter struct {
	w       *bufio.Writer
	pending []byte
}

func (f *foldingWriter) Write(p []byte) (int, error) {
	f.pending = append(f.pending, p...)
	for {
		i := bytes.Index(f.pending, []byte("\r\n"))
		if i < 0 {
			return len(p), nil
		}
		if err := f.writeLine(f.pending[:i]); err != nil {
			return 0, err
		}
		f.pending = f.pending[i+2:]
	}
}

func (f *foldingWriter) writeLine(line []byte) error {
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if _, err := f.w.Write(line[:cut]); err != nil {
			return err
		}
		if _, err := f.w.WriteString("\r\n "); err != nil {
			return err
		}
		line = line[cut:]
		// The leading space counts toward the next line.
		limit = maxLineOctets - 1
	}
	if _, err := f.w.Write(line); err != nil {
		return err
	}
	_, err := f.w.WriteString("\r\n")
	return err
}

func (f *foldingWriter) flush() error {
	if len(f.pending) == 0 {
		return nil
	}
	err := f.writeLine(f.pending)
	f.pending = nil
	return err
}

func firstValue(c models.Card) string {
	if len(c.Phones) > 0 {
		return c.Phones[0].Value
	}
	return c.Emails[0].Value
}

// Result counts what a card export produced.
type Result struct {
	People  int
	Written int
	Path    string
}

// Export reads the address book at dbPath and writes the card file below
// outputRoot. The file is rewritten whole on every run.
func Export(ctx context.Context, dbPath, outputRoot string, dryRun bool) (Result, error) {
	result := Result{Path: filepath.Join(outputRoot, OutputDir, FileName)}

	cards, err := Load(ctx, dbPath)
	if err != nil {
		return result, err
	}
	result.People = len(cards)

	if dryRun {
		n, err := Encode(io.Discard, cards)
		result.Written = n
		utils.LogInfo("Card export planned", map[string]string{"path": result.Path, "cards": fmt.Sprintf("%d", n)})
		return result, err
	}

	if err := os.MkdirAll(filepath.Dir(result.Path), 0o755); err != nil {
		return result, fmt.Errorf("create contacts directory: %w", err)
	}
	tmp := result.Path + "." + utils.GenerateRandomID() + ".tmp"
	f, err := os.Create(tmp) //nolint:gosec // path is built from the output root
	if err != nil {
		return result, fmt.Errorf("create card file: %w", err)
	}
	n, err := Encode(f, cards)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return result, fmt.Errorf("write card file: %w", err)
	}
	if err := os.Rename(tmp, result.Path); err != nil {
		return result, fmt.Errorf("replace card file: %w", err)
	}
	result.Written = n

	utils.LogInfo("Cards exported", map[string]string{"path": result.Path, "cards": fmt.Sprintf("%d", n)})
	return result, nil
}
