// Package processor turns raw fetched HTML into the plain Markdown text the
// pipeline embeds and scores.
package processor

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// Processor extracts readable content from HTML pages.
type Processor struct{}

// New creates a new content processor.
func New() *Processor {
	return &Processor{}
}

// Extract pulls the page title and readable Markdown body out of an HTML
// document. Pages with no extractable text return an empty body; callers
// drop those rather than keeping empty candidates.
func (p *Processor) Extract(htmlContent string) (title, body string, err error) {
	title = p.ExtractTitle(htmlContent)
	body, err = p.Convert(htmlContent)
	return title, body, err
}

// Convert transforms HTML content into Markdown.
func (p *Processor) Convert(htmlContent string) (string, error) {
	if htmlContent == "" {
		return "", nil
	}

	markdown, err := htmltomarkdown.ConvertString(htmlContent)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(markdown), nil
}

// ExtractTitle extracts the <title> content from HTML.
func (p *Processor) ExtractTitle(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var title string
	var findTitle func(*html.Node)
	findTitle = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil {
				title = n.FirstChild.Data
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findTitle(c)
		}
	}
	findTitle(doc)

	return strings.TrimSpace(title)
}
