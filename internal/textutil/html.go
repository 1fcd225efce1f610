package textutil

import (
	"errors"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoHTMLText is returned when an HTML source has no readable body text.
var ErrNoHTMLText = errors.New("html source has no text")

const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, blockquote, pre"

// ExtractHTMLText pulls readable text out of an HTML document, one line per
// block element so chapter headings stay on their own line.
func ExtractHTMLText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript, nav, header, footer").Remove()

	var lines []string
	doc.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		// Nested blocks (p inside li) are emitted by the innermost match.
		if sel.Find(blockSelector).Length() > 0 {
			return
		}
		if text := collapseSpaces(sel.Text()); text != "" {
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		body := doc.Find("body").First()
		for _, line := range strings.Split(body.Text(), "\n") {
			if text := collapseSpaces(line); text != "" {
				lines = append(lines, text)
			}
		}
	}
	if len(lines) == 0 {
		return "", ErrNoHTMLText
	}
	return strings.Join(lines, "\n"), nil
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
