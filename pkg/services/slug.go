package services

import (
	"html/template"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases title and collapses everything outside [a-z0-9] into
// single dashes.
func Slugify(title string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

const excerptLimit = 200

// DeriveExcerpt picks the intro paragraph of rendered body HTML, falling back
// to the first body paragraph, and shortens it at a word boundary.
func DeriveExcerpt(body template.HTML) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}

	var text string
	doc.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		if p.HasClass("italic") {
			return true
		}
		text = strings.Join(strings.Fields(p.Text()), " ")
		return text == ""
	})
	return truncateWords(text, excerptLimit)
}

func truncateWords(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := string(runes[:limit])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}
