// Package excerpt derives a plain-text summary from page blocks for use as a
// fallback meta description.
package excerpt

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/eringen/pagecms/content"
)

// MaxLength is the meta description limit in characters.
const MaxLength = 160

// textKeys are the object keys whose string values count as prose.
var textKeys = map[string]bool{
	"text":        true,
	"body":        true,
	"content":     true,
	"html":        true,
	"heading":     true,
	"title":       true,
	"subtitle":    true,
	"description": true,
	"question":    true,
	"answer":      true,
}

var (
	reHeading    = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	reListMarker = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	reQuote      = regexp.MustCompile(`(?m)^\s*>\s?`)
	reImg        = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)(?:\{[^}]*\})?`)
	reLink       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	reStrong     = regexp.MustCompile(`\*\*(\S(?:[^*\n]*\S)?)\*\*`)
	reStar       = regexp.MustCompile(`\*(\S(?:[^*\n]*\S)?)\*`)
	reCode       = regexp.MustCompile("`([^`\n]+)`")
	// Underscore emphasis only opens and closes at word boundaries, so
	// identifiers like snake_case survive.
	reUnderscore = regexp.MustCompile(`(^|\W)__?([^_\s](?:[^_\n]*[^_\s])?)__?(\W|$)`)
	reSpace      = regexp.MustCompile(`\s+`)
)

// FromPage concatenates the prose of every block in section order and
// truncates it to MaxLength.
func FromPage(p content.Page) string {
	var parts []string
	for _, s := range p.Sections {
		for _, b := range s.Blocks {
			if t := BlockText(b); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return Truncate(strings.Join(parts, " "), MaxLength)
}

// BlockText extracts plain text from a block's content. String content is
// treated as raw text; structured content contributes the string values of
// known prose keys, in document order.
func BlockText(b content.Block) string {
	if len(b.Content) == 0 {
		return ""
	}
	if !gjson.ValidBytes(b.Content) {
		return Plain(string(b.Content))
	}
	var parts []string
	collect(gjson.ParseBytes(b.Content), "", &parts)
	return Plain(strings.Join(parts, " "))
}

func collect(r gjson.Result, key string, parts *[]string) {
	switch {
	case r.IsObject():
		r.ForEach(func(k, v gjson.Result) bool {
			collect(v, k.String(), parts)
			return true
		})
	case r.IsArray():
		r.ForEach(func(_, v gjson.Result) bool {
			collect(v, key, parts)
			return true
		})
	case r.Type == gjson.String:
		if key == "" || textKeys[key] {
			*parts = append(*parts, r.String())
		}
	}
}

// Plain strips HTML tags and markdown markers and collapses whitespace.
func Plain(s string) string {
	if strings.ContainsRune(s, '<') {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			doc.Find("script, style").Remove()
			doc.Find("p, div, li, br, h1, h2, h3, h4, h5, h6, td").AfterHtml(" ")
			s = doc.Text()
		}
	}
	s = reImg.ReplaceAllString(s, "$1")
	s = reLink.ReplaceAllString(s, "$1")
	s = reHeading.ReplaceAllString(s, "")
	s = reListMarker.ReplaceAllString(s, "")
	s = reQuote.ReplaceAllString(s, "")
	s = reCode.ReplaceAllString(s, "$1")
	s = reStrong.ReplaceAllString(s, "$1")
	s = reStar.ReplaceAllString(s, "$1")
	// Adjacent spans share a boundary character, so repeat until stable.
	for reUnderscore.MatchString(s) {
		s = reUnderscore.ReplaceAllString(s, "$1$2$3")
	}
	return strings.TrimSpace(reSpace.ReplaceAllString(s, " "))
}

// Truncate shortens s to at most max characters, cutting at the last word
// boundary that fits. A single word longer than max is cut hard. No ellipsis
// is appended.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	// A boundary falls exactly at max when the next rune is a space.
	if unicode.IsSpace(runes[max]) {
		return strings.TrimRightFunc(string(runes[:max]), isTrailing)
	}
	cut := runes[:max]
	for i := len(cut) - 1; i > 0; i-- {
		if unicode.IsSpace(cut[i]) {
			return strings.TrimRightFunc(string(cut[:i]), isTrailing)
		}
	}
	return string(cut)
}

func isTrailing(r rune) bool {
	return unicode.IsSpace(r) || r == ',' || r == ';' || r == ':' || r == '-'
}
