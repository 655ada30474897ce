// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package epubfix repairs the titles of EPUBs produced from OneNote pages.
//
// LibreOffice names every converted document after its file, and EpubMerge
// carries those names into the merged table of contents. OneNote writes the
// real page title as the first paragraph of its export, styled with a
// dedicated class (para0 by default). This package finds that paragraph in the
// raw XHTML with regular expressions, rewrites the document's <title>, the
// matching NCX navigation labels and optionally the OPF dc:title, and re-zips
// the archive.
package epubfix

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// DefaultClass is the paragraph class OneNote's docx export maps to the page title.
const DefaultClass = "para0"

var (
	headingRe   = regexp.MustCompile(`(?is)<h[1-3]\b[^>]*>(.*?)</h[1-3]\s*>`)
	headRe      = regexp.MustCompile(`(?is)(<head\b[^>]*>)(.*?)</head\s*>`)
	emptyHeadRe = regexp.MustCompile(`(?is)<head\b([^>]*?)\s*/>`)
	titleRe     = regexp.MustCompile(`(?is)(<title\b[^>]*>)(.*?)(</title\s*>)`)
	emptyTitle  = regexp.MustCompile(`(?is)<title\b([^>]*?)\s*/>`)
	opfTitleRe  = regexp.MustCompile(`(?is)(<dc:title\b[^>]*>)(.*?)(</dc:title\s*>)`)
)

// invisible runes Word and OneNote leave in page titles.
var invisibles = strings.NewReplacer("\u200b", "", "\ufeff", "", "\u200e", "", "\u200f", "")

// Extractor finds page titles in content documents.
type Extractor struct {
	class string
	para  *regexp.Regexp
}

// NewExtractor returns an Extractor for paragraphs carrying class. An empty
// class selects DefaultClass.
func NewExtractor(class string) *Extractor {
	class = strings.TrimSpace(class)
	if class == "" {
		class = DefaultClass
	}
	q := regexp.QuoteMeta(class)
	pattern := fmt.Sprintf(
		`(?is)<p\s+(?:[^>]*?\s)?class\s*=\s*(?:"(?:[^"]*\s)?%[1]s(?:\s[^"]*)?"|'(?:[^']*\s)?%[1]s(?:\s[^']*)?')(?:[^>]*[^/])?>(.*?)</p\s*>`,
		q,
	)
	return &Extractor{class: class, para: regexp.MustCompile(pattern)}
}

// Class returns the paragraph class the extractor matches.
func (e *Extractor) Class() string { return e.class }

// Title returns the text of the first title paragraph in markup, falling
// back to the first h1-h3 heading. ok is false when neither yields text.
func (e *Extractor) Title(markup string) (title string, ok bool) {
	for _, m := range e.para.FindAllStringSubmatch(markup, -1) {
		if t := PlainText(m[1]); t != "" {
			return t, true
		}
	}
	if m := headingRe.FindStringSubmatch(markup); m != nil {
		if t := PlainText(m[1]); t != "" {
			return t, true
		}
	}
	return "", false
}

// ExtractTitle is a convenience wrapper around NewExtractor(class).Title.
func ExtractTitle(markup, class string) (string, bool) {
	return NewExtractor(class).Title(markup)
}

// PlainText flattens an HTML fragment into a single line of text: tags are
// dropped, entities decoded, the result NFC-normalised and whitespace
// collapsed.
func PlainText(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return normalize(b.String())
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			// Block and break elements separate words.
			name, _ := z.TagName()
			switch string(name) {
			case "br", "p", "div", "li":
				b.WriteByte(' ')
			}
		}
	}
}

func normalize(s string) string {
	s = invisibles.Replace(norm.NFC.String(s))
	return strings.Join(strings.Fields(s), " ")
}

// RewriteTitle sets the <title> of an XHTML document. An existing title
// inside <head> is replaced, a missing one inserted after the head start
// tag, and a self-closing <title/> or <head/> expanded. changed is false when there is
// no head or the title already matches.
func RewriteTitle(markup, title string) (out string, changed bool) {
	escaped := html.EscapeString(title)

	if loc := headRe.FindStringSubmatchIndex(markup); loc != nil {
		headOpenEnd := loc[3]
		innerStart, innerEnd := loc[4], loc[5]
		inner := markup[innerStart:innerEnd]

		if t := emptyTitle.FindStringSubmatchIndex(inner); t != nil {
			repl := "<title" + inner[t[2]:t[3]] + ">" + escaped + "</title>"
			return markup[:innerStart+t[0]] + repl + markup[innerStart+t[1]:], true
		}
		if t := titleRe.FindStringSubmatchIndex(inner); t != nil {
			if PlainText(inner[t[4]:t[5]]) == title {
				return markup, false
			}
			start := innerStart + t[4]
			end := innerStart + t[5]
			return markup[:start] + escaped + markup[end:], true
		}
		return markup[:headOpenEnd] + "<title>" + escaped + "</title>" + markup[headOpenEnd:], true
	}

	if loc := emptyHeadRe.FindStringSubmatchIndex(markup); loc != nil {
		attrs := markup[loc[2]:loc[3]]
		repl := "<head" + attrs + "><title>" + escaped + "</title></head>"
		return markup[:loc[0]] + repl + markup[loc[1]:], true
	}

	return markup, false
}

// PatchOPFTitle replaces the first dc:title in a package document.
func PatchOPFTitle(opf, title string) (string, bool) {
	loc := opfTitleRe.FindStringSubmatchIndex(opf)
	if loc == nil {
		return opf, false
	}
	if PlainText(opf[loc[4]:loc[5]]) == title {
		return opf, false
	}
	return opf[:loc[4]] + html.EscapeString(title) + opf[loc[5]:], true
}
