package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SummaryLimit is the maximum summary length in runes before the ellipsis.
const SummaryLimit = 300

// CleanSummary strips HTML from an entry description, collapses whitespace
// and truncates the result to SummaryLimit runes followed by "...".
func CleanSummary(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	text := html
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		// separate adjacent block elements so their words do not run together
		doc.Find("p, br, div, li, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
			s.AppendHtml(" ")
		})
		text = doc.Text()
	}

	text = strings.Join(strings.Fields(text), " ")

	runes := []rune(text)
	if len(runes) > SummaryLimit {
		return string(runes[:SummaryLimit]) + "..."
	}
	return text
}
