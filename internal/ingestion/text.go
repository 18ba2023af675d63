// Package ingestion turns free-form posting and resume text into clean, normalized text
// ready for similarity scoring.
package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

var (
	multiSpace    = regexp.MustCompile(`[ \t\f\v]+`)
	blankLines    = regexp.MustCompile(`\n\n\n+`)
	htmlTagSniffs = regexp.MustCompile(`(?i)<\s*(html|body|div|p|br|ul|li|span|h[1-6]|strong|em|a)\b[^>]*>`)
)

// CleanText cleans and normalizes text content while preserving structure
func CleanText(content string) string {
	if content == "" {
		return ""
	}

	// Normalize line endings (CRLF → LF)
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	cleanedLines := make([]string, 0, len(lines))
	for _, line := range lines {
		cleanedLines = append(cleanedLines, cleanLine(line))
	}

	result := strings.Join(cleanedLines, "\n")
	result = blankLines.ReplaceAllString(result, "\n\n")
	return strings.TrimSpace(result)
}

// cleanLine trims a single line and collapses inner runs of whitespace.
// Markdown headings and bullets keep their marker.
func cleanLine(line string) string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "#") || isBulletLine(trimmed) {
		return trimmed
	}
	return multiSpace.ReplaceAllString(trimmed, " ")
}

func isBulletLine(line string) bool {
	return strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") ||
		strings.HasPrefix(line, "• ") || strings.HasPrefix(line, "· ")
}

// NormalizeText applies NFKC normalization and strips control characters other than
// newlines and tabs.
func NormalizeText(text string) string {
	normed := norm.NFKC.String(text)
	normed = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
	return strings.TrimSpace(normed)
}

// LooksLikeHTML reports whether text appears to contain HTML markup.
func LooksLikeHTML(text string) bool {
	return htmlTagSniffs.MatchString(text)
}

// ExtractText parses HTML and returns its visible text, one block per line.
// Scripts, styles and page chrome are dropped.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, noscript, nav, footer, header, iframe").Remove()

	// Break block elements onto their own lines so words don't run together.
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, h1, h2, h3, h4, h5, h6, tr, section, article").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	return CleanText(root.Text()), nil
}

// Prepare readies raw posting or resume text for similarity scoring: HTML is flattened
// to text, unicode normalized and whitespace cleaned. Malformed HTML falls back to the
// raw text.
func Prepare(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if LooksLikeHTML(text) {
		if extracted, err := ExtractText(text); err == nil {
			text = extracted
		}
	}
	return CleanText(NormalizeText(text))
}

// Fingerprint returns the SHA-256 hex digest of the given parts joined with '|'.
func Fingerprint(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte{'|'})
		}
		_, _ = h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
