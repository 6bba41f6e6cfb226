// Package render serializes ranked entries into an Atom 1.0 document.
package render

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JakeFAU/feed-aggregator/internal/feed"
	"github.com/JakeFAU/feed-aggregator/internal/feed/normalize"
)

// DefaultFeedID identifies the output document when the metadata carries no link.
const DefaultFeedID = "urn:uuid:aggregated-feed"

// ErrInvalidText is returned when a value cannot be carried by an XML document.
var ErrInvalidText = errors.New("render: text is not valid XML character data")

const (
	prolog    = `<?xml version="1.0" encoding="utf-8"?>`
	atomOpen  = `<feed xmlns="http://www.w3.org/2005/Atom">`
	atomClose = `</feed>`
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// EscapeXML replaces the five XML special characters with named entities.
func EscapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// CDATA wraps s in a CDATA section, splitting any literal "]]>" across two sections.
func CDATA(s string) string {
	return "<![CDATA[" + strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>") + "]]>"
}

// Atom renders entries in the given order. The feed's updated stamp is taken from the
// first entry, or now when there are none. Text that is not valid UTF-8, or that holds
// characters XML 1.0 forbids, fails the whole render with ErrInvalidText.
func Atom(entries []feed.Entry, meta feed.Metadata, now time.Time) (string, error) {
	if err := checkMetadata(meta); err != nil {
		return "", err
	}

	updated := now
	if len(entries) > 0 {
		updated = entries[0].UpdatedAt
	}
	id := meta.Link
	if id == "" {
		id = DefaultFeedID
	}

	var b strings.Builder
	b.WriteString(prolog)
	b.WriteString(atomOpen)
	element(&b, "id", id)
	element(&b, "title", meta.Title)
	if meta.Subtitle != "" {
		element(&b, "subtitle", meta.Subtitle)
	}
	if meta.Link != "" {
		fmt.Fprintf(&b, `<link href="%s" rel="alternate" />`, EscapeXML(meta.Link))
	}
	element(&b, "updated", normalize.FormatTimestamp(updated))

	for i := range entries {
		if err := writeEntry(&b, &entries[i]); err != nil {
			return "", fmt.Errorf("entry %d: %w", i, err)
		}
	}

	b.WriteString(atomClose)
	return b.String(), nil
}

func writeEntry(b *strings.Builder, e *feed.Entry) error {
	fields := []string{e.ID, e.Title, e.Link, e.Summary, e.Author, e.SourceTitle, e.SourceLink}
	if err := checkText(append(fields, e.Tags...)...); err != nil {
		return err
	}

	b.WriteString("<entry>")
	element(b, "id", e.ID)
	element(b, "title", e.Title)
	linkElement(b, e.Link)
	element(b, "updated", normalize.FormatTimestamp(e.UpdatedAt))
	if e.Summary != "" {
		b.WriteString(`<summary type="html">`)
		b.WriteString(CDATA(e.Summary))
		b.WriteString(`</summary>`)
	}
	if e.Author != "" {
		b.WriteString("<author>")
		element(b, "name", e.Author)
		b.WriteString("</author>")
	}
	if e.SourceTitle != "" {
		b.WriteString("<source>")
		element(b, "title", e.SourceTitle)
		if e.SourceLink != "" {
			linkElement(b, e.SourceLink)
		}
		b.WriteString("</source>")
	}
	for _, tag := range e.Tags {
		fmt.Fprintf(b, `<category term="%s" />`, EscapeXML(tag))
	}
	b.WriteString("</entry>")
	return nil
}

func element(b *strings.Builder, name, text string) {
	b.WriteString("<" + name + ">")
	b.WriteString(EscapeXML(text))
	b.WriteString("</" + name + ">")
}

func linkElement(b *strings.Builder, href string) {
	fmt.Fprintf(b, `<link href="%s" />`, EscapeXML(href))
}

func checkMetadata(meta feed.Metadata) error {
	if err := checkText(meta.Title, meta.Subtitle, meta.Link); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	return nil
}

func checkText(values ...string) error {
	for _, v := range values {
		if !utf8.ValidString(v) {
			return fmt.Errorf("%w: invalid UTF-8 in %q", ErrInvalidText, truncate(v))
		}
		for _, r := range v {
			if !isXMLChar(r) {
				return fmt.Errorf("%w: character %U in %q", ErrInvalidText, r, truncate(v))
			}
		}
	}
	return nil
}

// isXMLChar reports whether r is in the XML 1.0 Char production.
func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

func truncate(s string) string {
	const limit = 40
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
