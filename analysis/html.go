package analysis

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"productlens/imaging"
)

// MaxDescriptionChars bounds the detail text sent to the model.
const MaxDescriptionChars = 6000

// ExtractText returns the visible text of an HTML fragment, one trimmed
// fragment per line, cut to MaxDescriptionChars characters.
func ExtractText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, template").Remove()

	var lines []string
	for _, n := range doc.Nodes {
		lines = appendText(lines, n)
	}
	return truncateRunes(strings.Join(lines, "\n"), MaxDescriptionChars)
}

func appendText(lines []string, n *html.Node) []string {
	if n.Type == html.TextNode {
		if s := strings.TrimSpace(n.Data); s != "" {
			lines = append(lines, s)
		}
		return lines
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		lines = appendText(lines, c)
	}
	return lines
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}

// ExtractImageURLs lists the inline images of an HTML fragment in document
// order. Protocol-relative sources become https, site-relative and
// non-http sources are skipped, denylisted URLs are dropped and duplicates
// removed.
func ExtractImageURLs(fragment string) []string {
	if strings.TrimSpace(fragment) == "" {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil
	}

	var urls []string
	seen := make(map[string]bool)
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			return
		}
		u := absoluteImageURL(strings.TrimSpace(src))
		if u == "" || seen[u] || imaging.Denied(u) {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	})
	return urls
}

func absoluteImageURL(src string) string {
	switch {
	case src == "":
		return ""
	case strings.HasPrefix(src, "//"):
		return "https:" + src
	case strings.HasPrefix(src, "/"):
		return ""
	}
	lower := strings.ToLower(src)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return src
	}
	return ""
}

// mergeURLs appends extra to base, skipping URLs already present.
func mergeURLs(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]bool, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, u := range list {
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
