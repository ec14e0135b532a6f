package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html/charset"

	"docquery-platform/internal/chunker"
	"docquery-platform/internal/logger"
)

// Page is extracted text with its source page. Number is 1-based for
// paginated formats and 0 for formats without pages.
type Page struct {
	Number int
	Text   string
}

// FromFile extracts text from a stored upload, dispatching on the file
// extension. Unsupported extensions are an error, not a silent skip.
func FromFile(path string) ([]Page, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "pdf":
		return FromPDF(path)
	case "txt", "md":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", ext, err)
		}
		return singlePage(string(data)), nil
	case "html", "htm":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open html: %w", err)
		}
		defer f.Close()
		text, err := FromHTML(f, "")
		if err != nil {
			return nil, err
		}
		return singlePage(text), nil
	default:
		return nil, fmt.Errorf("unsupported file type: %s", ext)
	}
}

// FromPDF extracts plain text page by page so chunks can carry their
// page number. Pages that fail to decode are skipped with a warning
// rather than failing the whole document.
func FromPDF(path string) ([]Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var pages []Page
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warn("Skipping unreadable PDF page", "path", path, "page", i, "error", err)
			continue
		}
		text = chunker.CleanText(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return pages, nil
}

// FromHTML strips markup and boilerplate tags and returns readable
// text. contentType, when known, drives charset detection for
// non-UTF-8 pages.
func FromHTML(r io.Reader, contentType string) (string, error) {
	decoded, err := charset.NewReader(r, contentType)
	if err != nil {
		return "", fmt.Errorf("detect charset: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(decoded)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript, nav, footer, header, iframe").Remove()

	var b bytes.Buffer
	doc.Find("body").Each(func(_ int, sel *goquery.Selection) {
		b.WriteString(sel.Text())
		b.WriteString("\n")
	})
	if b.Len() == 0 {
		// Fragment without a body element.
		b.WriteString(doc.Text())
	}
	return chunker.CleanText(b.String()), nil
}

// Title pulls the <title> of an HTML document, empty if absent.
func Title(r io.Reader) string {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func singlePage(text string) []Page {
	text = chunker.CleanText(text)
	if text == "" {
		return nil
	}
	return []Page{{Number: 0, Text: text}}
}

// WordCount counts whitespace-separated words across pages.
func WordCount(pages []Page) int {
	n := 0
	for _, p := range pages {
		n += len(strings.Fields(p.Text))
	}
	return n
}
