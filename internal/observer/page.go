package observer

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a host document. It is only touched from the observer's loop.
type Page struct {
	doc *goquery.Document
}

func ParsePage(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}
	return &Page{doc: doc}, nil
}

func ParsePageString(html string) (*Page, error) {
	return ParsePage(strings.NewReader(html))
}

func (p *Page) Document() *goquery.Document {
	return p.doc
}

func (p *Page) HTML() (string, error) {
	return goquery.OuterHtml(p.doc.Selection)
}

// Source produces a fresh snapshot of the host document.
type Source interface {
	Load(ctx context.Context) (*Page, error)
}

// FileSource reads the document from an HTML file on every load.
type FileSource string

func (f FileSource) Load(ctx context.Context) (*Page, error) {
	file, err := os.Open(string(f))
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer file.Close()
	return ParsePage(file)
}
