// Package sanitize cleans free-text form input before it is stored.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// maxStripPasses bounds how many layers of entity encoding are unwrapped.
const maxStripPasses = 8

// StripTags returns the text content of s with markup removed. The bodies
// of script and style elements are dropped and entities are decoded.
// Decoding can surface new markup (&lt;script&gt;), so passes repeat until
// the text no longer changes; input still changing after maxStripPasses
// loses its angle brackets.
func StripTags(s string) string {
	for range maxStripPasses {
		next := stripOnce(s)
		if next == s {
			return s
		}
		s = next
	}
	return strings.NewReplacer("<", "", ">", "").Replace(s)
}

func stripOnce(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a tokenizer error; either way the text so far is all
			// there is.
			return b.String()
		case html.StartTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); a == atom.Script || a == atom.Style {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); (a == atom.Script || a == atom.Style) && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// stripControl drops control characters. Whitespace controls become
// spaces, except newlines and tabs when keepLines is set.
func stripControl(s string, keepLines bool) string {
	return strings.Map(func(r rune) rune {
		if keepLines && (r == '\n' || r == '\t') {
			return r
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return -1
		}
		return r
	}, s)
}

// Line cleans single-line input: markup and control characters removed,
// whitespace runs collapsed to one space.
func Line(s string) string {
	s = stripControl(StripTags(s), false)
	return strings.Join(strings.Fields(s), " ")
}

// Text cleans multi-line input. Line breaks survive; spaces within a line
// are collapsed and runs of blank lines become one.
func Text(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = stripControl(StripTags(s), true)
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Email trims and lower-cases an address.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(stripControl(s, false)))
}
