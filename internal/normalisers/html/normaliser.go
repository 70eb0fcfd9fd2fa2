package html

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/custodia-labs/acqgen/internal/core/domain"
	"github.com/custodia-labs/acqgen/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Extensions returns the file extensions this normaliser handles.
func (n *Normaliser) Extensions() []string {
	return []string{".html", ".htm", ".xhtml"}
}

// contentSelectors are tried in order; the first match is treated as the
// page body.
var contentSelectors = []string{
	"main",
	"article",
	"#content",
	".content",
	"body",
}

// blockElements end a line of text.
const blockElements = "p, div, li, tr, h1, h2, h3, h4, h5, h6, blockquote, pre, section, br, hr, table"

// Normalise returns the readable text of an HTML document, one block per
// line, with scripts, styles and navigation removed. The <title> becomes
// the first line when present.
func (n *Normaliser) Normalise(ctx context.Context, name string, content []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("%w: parse %s: %v", domain.ErrInvalidInput, name, err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript, svg, head, nav, footer").Remove()

	root := doc.Selection
	for _, selector := range contentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			root = sel
			break
		}
	}

	// Mark block boundaries so Text() keeps paragraphs apart.
	root.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})

	var lines []string
	if title != "" {
		lines = append(lines, title)
	}
	for _, line := range strings.Split(root.Text(), "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" && line != title {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
