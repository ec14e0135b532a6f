package scraper

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"

	"docquery-platform/internal/extract"
	"docquery-platform/internal/logger"
	"docquery-platform/models"
)

var httpTransport = &http.Transport{
	DisableCompression: false,
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Config bounds one scrape job.
type Config struct {
	URL      string
	Crawl    bool // follow same-domain links
	MaxPages int
	Timeout  time.Duration
}

// Result is the captured content of a scrape, one entry per page.
type Result struct {
	URL          string
	Title        string
	Pages        []models.CrawledPage
	PagesCrawled int
}

// Text merges all captured pages into one ingestable document.
func (r *Result) Text() string {
	var b strings.Builder
	for i, p := range r.Pages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if p.Title != "" {
			b.WriteString(p.Title)
			b.WriteString("\n\n")
		}
		b.WriteString(p.Content)
	}
	return b.String()
}

// normalizeURL canonicalizes for duplicate detection: no fragment, no
// trailing slash, lowercase scheme and host, default ports stripped.
func normalizeURL(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	parsed.Fragment = ""

	path := parsed.Path
	if path != "" && path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	parsed.Path = path

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	if (parsed.Port() == "80" && parsed.Scheme == "http") ||
		(parsed.Port() == "443" && parsed.Scheme == "https") {
		host, _, _ := strings.Cut(parsed.Host, ":")
		parsed.Host = host
	}
	return parsed.String(), nil
}

// Scrape fetches one page, or crawls same-domain links up to MaxPages
// when cfg.Crawl is set.
func Scrape(cfg Config) (*Result, error) {
	parsedURL, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" {
		parsedURL.Scheme = "https"
		cfg.URL = parsedURL.String()
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("URL has no host: %s", cfg.URL)
	}

	maxPages := cfg.MaxPages
	if maxPages <= 0 || !cfg.Crawl {
		maxPages = 1
	}

	options := []colly.CollectorOption{
		colly.AllowedDomains(parsedURL.Hostname()),
	}
	if cfg.Crawl {
		options = append(options, colly.Async(true), colly.MaxDepth(2))
	}
	c := colly.NewCollector(options...)
	c.WithTransport(httpTransport)
	c.UserAgent = userAgent

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	c.SetRequestTimeout(timeout)

	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       1 * time.Second,
	})

	var (
		mu    sync.Mutex
		pages []models.CrawledPage
		title string
	)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
	})

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") &&
			!strings.Contains(contentType, "application/xhtml+xml") {
			return
		}

		// gzip is transparent at the transport; brotli is not.
		if strings.Contains(r.Headers.Get("Content-Encoding"), "br") {
			if decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(r.Body))); err == nil {
				r.Body = decompressed
			}
		}

		if len(r.Body) > 0 {
			if utf8Reader, err := charset.NewReader(bytes.NewReader(r.Body), contentType); err == nil {
				if decoded, err := io.ReadAll(utf8Reader); err == nil && len(decoded) > 0 {
					r.Body = decoded
				}
			}
		}

		pageTitle := extract.Title(bytes.NewReader(r.Body))
		content, err := extract.FromHTML(bytes.NewReader(r.Body), "")
		if err != nil || content == "" {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if len(pages) >= maxPages {
			return
		}
		if title == "" {
			title = pageTitle
		}
		pages = append(pages, models.CrawledPage{
			URL:     r.Request.URL.String(),
			Title:   pageTitle,
			Content: content,
		})
	})

	if cfg.Crawl {
		c.OnHTML("a[href]", func(e *colly.HTMLElement) {
			mu.Lock()
			full := len(pages) >= maxPages
			mu.Unlock()
			if full {
				return
			}
			link, err := normalizeURL(e.Request.AbsoluteURL(e.Attr("href")))
			if err != nil || link == "" {
				return
			}
			e.Request.Visit(link)
		})
	}

	c.OnError(func(r *colly.Response, err error) {
		logger.Warn("Scrape request failed", "url", r.Request.URL.String(), "status", r.StatusCode, "error", err)
	})

	startURL, err := normalizeURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	if err := c.Visit(startURL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", startURL, err)
	}
	c.Wait()

	if len(pages) == 0 {
		return nil, fmt.Errorf("no readable content at %s", cfg.URL)
	}
	if title == "" {
		title = parsedURL.Hostname()
	}

	return &Result{
		URL:          cfg.URL,
		Title:        title,
		Pages:        pages,
		PagesCrawled: len(pages),
	}, nil
}
