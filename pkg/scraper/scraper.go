// Package scraper crawls a site and extracts the readable text of each page.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/xhad/redagent/internal/logger"
	"github.com/xhad/redagent/internal/models"
	"github.com/xhad/redagent/internal/types"
)

type ScraperConfig struct {
	BaseURL           string
	MaxDepth          int
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	OnProgress        func(url string)
}

type Scraper struct {
	config   ScraperConfig
	client   *http.Client
	limiter  *rate.Limiter
	baseHost string
}

var noisePatterns = []string{
	"Cookie Policy",
	"Accept Cookies",
	"Privacy Policy",
	"Terms of Service",
}

var contentSelectors = []string{
	"main",
	"article",
	".content",
	"#content",
	".documentation",
	"#documentation",
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 1
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base URL: %v", types.ErrExtraction, err)
	}

	return &Scraper{
		config:   config,
		client:   &http.Client{Timeout: config.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
	}, nil
}

// ExtractText crawls from BaseURL and joins the page contents.
func (s *Scraper) ExtractText(ctx context.Context) (string, error) {
	docs, err := s.Scrape(ctx, s.config.BaseURL)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc.Content != "" {
			parts = append(parts, doc.Content)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("%w: no text found at %s", types.ErrExtraction, s.config.BaseURL)
	}
	return strings.Join(parts, "\n\n"), nil
}

// Scrape fetches startURL and follows same-host links up to MaxDepth.
// Only a failure on startURL itself is returned; deeper failures are logged.
func (s *Scraper) Scrape(ctx context.Context, startURL string) ([]models.Document, error) {
	c := &crawl{scraper: s, visited: make(map[string]bool)}
	if err := c.visit(ctx, startURL, 0); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrExtraction, err)
	}
	return c.documents, nil
}

func (s *Scraper) shouldProcessURL(urlStr string) bool {
	parsedURL, err := url.Parse(urlStr)
	if err != nil || parsedURL.Host != s.baseHost {
		return false
	}

	path := strings.ToLower(parsedURL.Path)
	validExt := false
	for _, allowedExt := range s.config.AllowedExtensions {
		if strings.HasSuffix(path, allowedExt) {
			validExt = true
			break
		}
	}
	if !validExt {
		return false
	}

	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(urlStr, pattern) {
			return false
		}
	}
	return true
}

func cleanContent(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	for _, pattern := range noisePatterns {
		content = strings.ReplaceAll(content, pattern, "")
	}
	return strings.TrimSpace(content)
}

func extractMainContent(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer").Remove()

	var content string
	for _, selector := range contentSelectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			content = selected.Text()
			break
		}
	}
	if content == "" {
		content = doc.Find("body").Text()
	}
	return cleanContent(content)
}

type crawl struct {
	scraper   *Scraper
	visited   map[string]bool
	documents []models.Document
}

func (c *crawl) visit(ctx context.Context, urlStr string, depth int) error {
	s := c.scraper
	if depth > s.config.MaxDepth || c.visited[urlStr] || !s.shouldProcessURL(urlStr) {
		return nil
	}
	c.visited[urlStr] = true
	if s.config.OnProgress != nil {
		s.config.OnProgress(urlStr)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, urlStr)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return err
	}

	c.documents = append(c.documents, models.Document{
		URL:     urlStr,
		Title:   strings.TrimSpace(doc.Find("title").Text()),
		Content: extractMainContent(doc),
		Metadata: map[string]interface{}{
			"depth":        depth,
			"time":         time.Now(),
			"contentType":  resp.Header.Get("Content-Type"),
			"lastModified": resp.Header.Get("Last-Modified"),
		},
	})

	base := resp.Request.URL
	var links []string
	doc.Find("a[href]").Each(func(_ int, selection *goquery.Selection) {
		href, _ := selection.Attr("href")
		ref, err := url.Parse(href)
		if err != nil {
			logger.Debug("skipping unparsable link %q: %v", href, err)
			return
		}
		link := base.ResolveReference(ref)
		link.Fragment = ""
		links = append(links, link.String())
	})

	for _, link := range links {
		if err := c.visit(ctx, link, depth+1); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("error scraping %s: %v", link, err)
		}
	}
	return nil
}
