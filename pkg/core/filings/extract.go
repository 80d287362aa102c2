package filings

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// MaxTextChars bounds how much filing text is carried into prompts.
const MaxTextChars = 80000

// ExtractText reduces a raw filing document to plain text suitable for LLM
// prompts. HTML markup is stripped, each non-blank line keeps its own line,
// and runs of whitespace collapse to single spaces. Documents that fail to
// parse as HTML fall back to whitespace normalization of the raw bytes.
func ExtractText(raw []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return Truncate(normalize(string(raw)), MaxTextChars)
	}

	doc.Find("script, style").Remove()

	text := doc.Text()
	return Truncate(normalize(text), MaxTextChars)
}

// Truncate cuts s at the limit, backing up to the nearest rune boundary so
// the result stays valid UTF-8.
func Truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, line := range strings.Split(s, "\n") {
		cleaned := strings.Join(strings.Fields(line), " ")
		if cleaned == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(cleaned)
	}
	return b.String()
}
