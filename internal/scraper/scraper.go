package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	httpclient "github.com/outreachly/outreach-service/internal/http"
	"github.com/outreachly/outreach-service/internal/http/ratelimit"
	"github.com/outreachly/outreach-service/internal/types"
)

const scrapedOnLayout = "2006-01-02 15:04:05"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9 ()\-./]{6,18}[0-9]`)
)

// Config controls fetch behavior
type Config struct {
	UserAgent      string
	RequestTimeout time.Duration
	RatePerSecond  float64
	RateBurst      int
}

// Scraper fetches a page and extracts contact fields from its markup.
// Requests are rate limited across all goroutines sharing the instance.
type Scraper struct {
	client *httpclient.Client
	logger zerolog.Logger
}

// New creates a scraper with the given config
func New(cfg Config, logger zerolog.Logger) *Scraper {
	fetchCfg := ratelimit.DefaultConfig()
	if cfg.RatePerSecond > 0 {
		fetchCfg.RequestsPerSecond = cfg.RatePerSecond
	}
	if cfg.RateBurst > 0 {
		fetchCfg.Burst = cfg.RateBurst
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "outreach-service/1.0"
	}
	return &Scraper{
		client: httpclient.NewClient(fetchCfg, cfg.RequestTimeout, userAgent),
		logger: logger.With().Str("component", "scraper").Logger(),
	}
}

// Fetch retrieves one URL and extracts whatever contact fields the page
// exposes. An exhausted fetch returns an error; partial extraction is not
// an error, missing fields stay empty.
func (s *Scraper) Fetch(ctx context.Context, url string) (types.ScrapeResult, error) {
	result := types.ScrapeResult{
		SourceURL: url,
		ScrapedOn: time.Now().Format(scrapedOnLayout),
	}

	resp, err := s.client.Get(ctx, url)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf("failed to read response body: %w", err)
	}
	body = decodeToUTF8(body, resp.Header.Get("Content-Type"))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("failed to parse HTML: %w", err)
	}

	s.extract(doc, &result)
	result.Status = types.ScrapeStatusSuccess

	s.logger.Debug().
		Str("url", url).
		Str("name", result.Name).
		Bool("email_found", result.Email != "").
		Msg("Page scraped")

	return result, nil
}

// extract pulls contact fields out of the parsed document
func (s *Scraper) extract(doc *goquery.Document, result *types.ScrapeResult) {
	// Scripts and styles pollute text scans.
	doc.Find("script, style").Remove()

	result.Name = extractName(doc)
	result.Email = extractEmail(doc)
	result.Phone = extractPhone(doc)
	result.City, result.Country = extractLocality(doc)
	result.PersonalizedInfo = extractDescription(doc)
}

func extractName(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists && ogTitle != "" {
		return strings.TrimSpace(ogTitle)
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return ""
}

func extractEmail(doc *goquery.Document) string {
	email := ""
	doc.Find("a[href^='mailto:']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		addr := strings.TrimPrefix(href, "mailto:")
		if idx := strings.IndexByte(addr, '?'); idx >= 0 {
			addr = addr[:idx]
		}
		if emailPattern.MatchString(addr) {
			email = addr
			return false
		}
		return true
	})
	if email != "" {
		return email
	}
	return emailPattern.FindString(doc.Text())
}

func extractPhone(doc *goquery.Document) string {
	phone := ""
	doc.Find("a[href^='tel:']").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		phone = strings.TrimPrefix(href, "tel:")
		return false
	})
	if phone != "" {
		return strings.TrimSpace(phone)
	}
	return strings.TrimSpace(phonePattern.FindString(doc.Text()))
}

func extractLocality(doc *goquery.Document) (city, country string) {
	// Microdata and common address markup, best effort.
	city = strings.TrimSpace(doc.Find("[itemprop='addressLocality']").First().Text())
	country = strings.TrimSpace(doc.Find("[itemprop='addressCountry']").First().Text())
	if city == "" {
		if meta, exists := doc.Find("meta[name='geo.placename']").Attr("content"); exists {
			city = strings.TrimSpace(meta)
		}
	}
	return city, country
}

func extractDescription(doc *goquery.Document) string {
	if desc, exists := doc.Find("meta[name='description']").Attr("content"); exists && desc != "" {
		return strings.TrimSpace(desc)
	}
	if ogDesc, exists := doc.Find("meta[property='og:description']").Attr("content"); exists && ogDesc != "" {
		return strings.TrimSpace(ogDesc)
	}
	return ""
}
