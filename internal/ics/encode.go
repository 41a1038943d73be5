package ics

import (
	"context"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	appLog "daycal/internal/log"
	"daycal/internal/model"
)

const (
	crlf = "\r\n"

	// foldLimit is the RFC 5545 content line limit in octets, excluding CRLF.
	foldLimit = 75

	dateLayout     = "20060102"
	dateTimeLayout = "20060102T150405Z"

	// DefaultProductID is the PRODID written when none is configured.
	DefaultProductID = "-//Days Calendar//CYF//EN"

	defaultLookupConcurrency = 4
)

// Entry is a fully rendered VEVENT, ready to be written.
type Entry struct {
	UID         string
	Stamp       time.Time
	Summary     string
	Start       time.Time
	End         time.Time
	Description string
}

// Encoder turns resolved events into an iCalendar document.
type Encoder struct {
	ProductID string
	Lookup    Lookup

	// Now supplies DTSTAMP. It is read once per document.
	Now func() time.Time

	// Concurrency bounds the number of in-flight description lookups.
	Concurrency int
}

// NewEncoder returns an Encoder with the default clock and concurrency.
// A nil lookup uses each event's name as its description.
func NewEncoder(productID string, lookup Lookup) *Encoder {
	if productID == "" {
		productID = DefaultProductID
	}
	if lookup == nil {
		lookup = Fallback{}
	}
	return &Encoder{
		ProductID:   productID,
		Lookup:      lookup,
		Now:         time.Now,
		Concurrency: defaultLookupConcurrency,
	}
}

// Encode renders events with the default product id.
func Encode(ctx context.Context, events []model.ResolvedEvent, lookup Lookup) string {
	return NewEncoder("", lookup).EncodeString(ctx, events)
}

// Entries builds one Entry per event, preserving input order. Descriptions
// are looked up concurrently; lookups never fail, they degrade to the event
// name.
func (e *Encoder) Entries(ctx context.Context, events []model.ResolvedEvent) []Entry {
	stamp := e.now().UTC().Truncate(time.Second)
	entries := make([]Entry, len(events))

	g, gctx := errgroup.WithContext(ctx)
	limit := e.Concurrency
	if limit <= 0 {
		limit = defaultLookupConcurrency
	}
	g.SetLimit(limit)

	for i, ev := range events {
		start := ev.Start()
		entries[i] = Entry{
			UID:     ev.UID(),
			Stamp:   stamp,
			Summary: ev.Name,
			Start:   start,
			End:     ev.End(),
		}
		g.Go(func() error {
			entries[i].Description = e.lookup().Describe(gctx, ev.DescriptionURL, ev.Name)
			return nil
		})
	}
	_ = g.Wait()

	return entries
}

// Write encodes events as a complete VCALENDAR document to w.
func (e *Encoder) Write(ctx context.Context, w io.Writer, events []model.ResolvedEvent) error {
	_, err := io.WriteString(w, e.EncodeString(ctx, events))
	return err
}

// EncodeString encodes events as a complete VCALENDAR document.
func (e *Encoder) EncodeString(ctx context.Context, events []model.ResolvedEvent) string {
	entries := e.Entries(ctx, events)
	doc := Document(e.ProductID, entries)
	appLog.Debug("ics document encoded", "events", len(entries), "bytes", len(doc))
	return doc
}

// Document frames rendered entries with the calendar header and footer.
func Document(productID string, entries []Entry) string {
	var b strings.Builder
	writeLine(&b, "BEGIN:VCALENDAR")
	writeLine(&b, "PRODID:"+productID)
	writeLine(&b, "VERSION:2.0")
	writeLine(&b, "CALSCALE:GREGORIAN")
	writeLine(&b, "METHOD:PUBLISH")
	for _, en := range entries {
		writeEntry(&b, en)
	}
	writeLine(&b, "END:VCALENDAR")
	return b.String()
}

func writeEntry(b *strings.Builder, en Entry) {
	writeLine(b, "BEGIN:VEVENT")
	writeLine(b, "UID:"+en.UID)
	writeLine(b, "DTSTAMP:"+en.Stamp.UTC().Format(dateTimeLayout))
	writeLine(b, "SUMMARY:"+Escape(en.Summary))
	writeLine(b, "DTSTART;VALUE=DATE:"+en.Start.Format(dateLayout))
	writeLine(b, "DTEND;VALUE=DATE:"+en.End.Format(dateLayout))
	writeLine(b, "DESCRIPTION:"+Escape(en.Description))
	writeLine(b, "END:VEVENT")
}

func writeLine(b *strings.Builder, line string) {
	b.WriteString(Fold(line))
	b.WriteString(crlf)
}

var escaper = strings.NewReplacer(
	`\`, `\\`,
	"\r\n", `\n`,
	"\r", `\n`,
	"\n", `\n`,
	";", `\;`,
	",", `\,`,
)

// Escape escapes TEXT values: backslash, newline, semicolon and comma.
// CRLF and a lone CR are each treated as a single newline. Invalid UTF-8 is
// replaced with U+FFFD.
func Escape(s string) string {
	return escaper.Replace(strings.ToValidUTF8(s, "\uFFFD"))
}

// Unescape reverses Escape.
func Unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// Fold splits a content line into physical lines of at most foldLimit
// octets, joined by CRLF and a single leading space. Multi-byte UTF-8
// sequences are never split.
func Fold(line string) string {
	if len(line) <= foldLimit {
		return line
	}

	var b strings.Builder
	limit := foldLimit
	for len(line) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		if cut == 0 {
			// No rune start within the limit: the input is not UTF-8.
			cut = limit
		}
		b.WriteString(line[:cut])
		b.WriteString(crlf + " ")
		line = line[cut:]
		// Continuation lines spend one octet on the leading space.
		limit = foldLimit - 1
	}
	b.WriteString(line)
	return b.String()
}

func (e *Encoder) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Encoder) lookup() Lookup {
	if e.Lookup == nil {
		return Fallback{}
	}
	return e.Lookup
}
