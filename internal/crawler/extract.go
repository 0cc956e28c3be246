package crawler

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractSeedTitle returns the movie title shown on the seed page.
func ExtractSeedTitle(doc *goquery.Selection, selector string) string {
	if doc == nil || selector == "" {
		return ""
	}
	return normSpace(doc.Find(selector).First().Text())
}

// ExtractActorLinks returns the unique, non-empty href values matched by
// selector, in document order.
func ExtractActorLinks(doc *goquery.Selection, selector string) []string {
	if doc == nil {
		return nil
	}
	seen := make(map[string]struct{})
	links := make([]string, 0)
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	})
	return links
}

// ExtractActorName returns the text of the first element matched by selector.
func ExtractActorName(doc *goquery.Selection, selector string) string {
	if doc == nil {
		return ""
	}
	return normSpace(doc.Find(selector).First().Text())
}

// ExtractFilmography returns one title per filmography row: the text of the
// first titleSelector match inside each row that has any. Image-only links are
// passed over and rows without a title are skipped.
func ExtractFilmography(doc *goquery.Selection, rowSelector, titleSelector string) []string {
	if doc == nil {
		return nil
	}
	titles := make([]string, 0)
	doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		var title string
		row.Find(titleSelector).EachWithBreak(func(_ int, link *goquery.Selection) bool {
			title = normSpace(link.Text())
			return title == ""
		})
		if title != "" {
			titles = append(titles, title)
		}
	})
	return titles
}

func normSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
