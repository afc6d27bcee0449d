package fetch

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

const maxContentLen = 2048

var stripPolicy = bluemonday.StrictPolicy()

// Removes all html tags from the string, usually a description.
//
// Also limits the length of the string so there's not a massive chunk of text being output.
func sanitize(s string) string {
	s = plain(s)
	if len(s) <= maxContentLen {
		return s
	}

	// Cut on a rune boundary
	cut := maxContentLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func sanitizeTitle(s string) string {
	return plain(s)
}

// Strips tags, decodes entities and collapses whitespace.
func plain(s string) string {
	s = stripPolicy.Sanitize(strings.TrimSpace(s))
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// Finds the best image for an item: its own image, an image enclosure, or the
// first <img> in its body.
func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}

	for _, body := range []string{item.Content, item.Description} {
		if src := firstImage(body); src != "" {
			return src
		}
	}

	return ""
}

func firstImage(body string) string {
	if !strings.Contains(body, "<img") {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}
