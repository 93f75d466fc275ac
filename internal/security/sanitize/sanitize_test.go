package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLine(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  Ada   Lovelace ", "Ada Lovelace"},
		{"<b>Ada</b> Lovelace", "Ada Lovelace"},
		{"Hi<script>alert('x')</script>there", "Hi there"},
		{"R&D and Tom &amp; Jerry", "R&D and Tom & Jerry"},
		{"a < b", "a < b"},
		{"bell\x07 and\x00 nul", "bell and nul"},
		{"two\nlines", "two lines"},
		{"&lt;script&gt;alert(1)&lt;/script&gt;", ""},
		{"<b>x</b>&lt;img src=x onerror=alert(1)&gt;", "x"},
		{"&amp;lt;b&amp;gt;bold&amp;lt;/b&amp;gt;", "bold"},
		{"Tom &amp;amp; Jerry", "Tom & Jerry"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Line(tt.in), tt.in)
	}
}

func TestText(t *testing.T) {
	in := "Hello,\r\n\r\n\r\n  I  would like <i>more</i> info.\n<style>p{}</style>Thanks\x1b"
	assert.Equal(t, "Hello,\n\nI would like more info.\nThanks", Text(in))
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "ada@example.edu", Email("  Ada@Example.EDU\t"))
}

func TestStripTagsLeavesNoMarkup(t *testing.T) {
	in := "&lt;img src=x onerror=alert(1)&gt;"
	for range 10 {
		in = strings.ReplaceAll(in, "&", "&amp;")
	}
	out := Line(in)
	assert.NotContains(t, out, "<")
	assert.NotContains(t, out, ">")
}
