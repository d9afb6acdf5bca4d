// Package secfilings retrieves SEC filing metadata and text through the
// sec-api.io query and extractor endpoints.
package secfilings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrNoFilings indicates no filings matched the query.
var ErrNoFilings = errors.New("no filings found")

// Items lists the extractable 10-K section identifiers, in filing order.
var Items = []string{
	"1", "1A", "1B", "2", "3", "4", "5", "6",
	"7", "7A", "8", "9", "9A", "9B", "10", "11", "12", "13", "14", "15",
}

// Filing is the metadata record returned by the filing query API.
type Filing struct {
	Ticker         string `json:"ticker"`
	CompanyName    string `json:"companyName"`
	FormType       string `json:"formType"`
	FiledAt        string `json:"filedAt"`
	PeriodOfReport string `json:"periodOfReport"`
	CIK            string `json:"cik"`
	AccessionNo    string `json:"accessionNo"`
}

// CacheKey identifies a cached filing lookup. A zero Year means the
// latest filing of the form type.
type CacheKey struct {
	Ticker   string
	FormType string
	Year     int
}

// Config holds sec-api.io client configuration.
type Config struct {
	// BaseURL is the API root, normally https://api.sec-api.io.
	BaseURL string
	// APIKey is the sec-api.io token.
	APIKey string
	// RateLimit is the maximum requests per second; zero disables limiting.
	RateLimit float64
}

// Client queries sec-api.io for filing metadata and section text.
// Lookups are cached in memory for the lifetime of the client, keyed by
// (ticker, form type, year).
type Client struct {
	http    *resty.Client
	apiKey  string
	limiter *rate.Limiter

	mu    sync.Mutex
	cache map[CacheKey]*Filing

	logger *zap.Logger
}

// NewClient creates a sec-api.io client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sec-api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.sec-api.io"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(60 * time.Second)

	return &Client{
		http:    http,
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(limit, 1),
		cache:   make(map[CacheKey]*Filing),
		logger:  logger,
	}, nil
}

type queryResponse struct {
	Filings []Filing `json:"filings"`
}

// LatestFiling returns the most recent filing of formType for ticker.
// The result is cached both under the latest key and under the fiscal
// year it reports on, so a later year-specific lookup hits the cache.
func (c *Client) LatestFiling(ctx context.Context, ticker, formType string) (*Filing, error) {
	ticker = strings.ToUpper(ticker)

	key := CacheKey{Ticker: ticker, FormType: formType}
	if f := c.Cached(key); f != nil {
		return f, nil
	}

	query := fmt.Sprintf("ticker:%s AND formType:%q", ticker, formType)
	filings, err := c.queryFilings(ctx, query, 1)
	if err != nil {
		return nil, err
	}
	if len(filings) == 0 {
		return nil, fmt.Errorf("%w: no %s filings for %s", ErrNoFilings, formType, ticker)
	}

	filing := &filings[0]

	c.mu.Lock()
	c.cache[key] = filing
	if year := FilingYear(filing); year != 0 {
		c.cache[CacheKey{Ticker: ticker, FormType: formType, Year: year}] = filing
	}
	c.mu.Unlock()

	return filing, nil
}

// FilingByYear returns the filing of formType for ticker whose period of
// report falls in the given fiscal year. The date range extends through
// the following calendar year because fiscal-year filings land months
// after the period closes.
func (c *Client) FilingByYear(ctx context.Context, ticker, formType string, year int) (*Filing, error) {
	ticker = strings.ToUpper(ticker)

	key := CacheKey{Ticker: ticker, FormType: formType, Year: year}
	if f := c.Cached(key); f != nil {
		return f, nil
	}

	query := fmt.Sprintf("ticker:%s AND formType:%q AND filedAt:[%d-01-01 TO %d-12-31]",
		ticker, formType, year, year+1)
	filings, err := c.queryFilings(ctx, query, 5)
	if err != nil {
		return nil, err
	}
	if len(filings) == 0 {
		return nil, fmt.Errorf("%w: no %s filings for %s in %d", ErrNoFilings, formType, ticker, year)
	}

	var match *Filing
	for i := range filings {
		if FilingYear(&filings[i]) == year {
			match = &filings[i]
			break
		}
	}
	if match == nil {
		match = &filings[0]
		c.logger.Warn("no exact fiscal year match, using most recent filing",
			zap.String("ticker", ticker),
			zap.Int("requested_year", year),
			zap.String("period_of_report", match.PeriodOfReport),
		)
	}

	c.mu.Lock()
	c.cache[key] = match
	c.mu.Unlock()

	return match, nil
}

// AvailableYears returns the fiscal years with filings of formType for
// ticker, most recent first. Each discovered filing is cached by year.
func (c *Client) AvailableYears(ctx context.Context, ticker, formType string, maxYears int) ([]int, error) {
	ticker = strings.ToUpper(ticker)
	if maxYears <= 0 {
		maxYears = 5
	}

	query := fmt.Sprintf("ticker:%s AND formType:%q", ticker, formType)
	filings, err := c.queryFilings(ctx, query, maxYears)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	var years []int
	c.mu.Lock()
	for i := range filings {
		year := FilingYear(&filings[i])
		if year == 0 {
			continue
		}
		c.cache[CacheKey{Ticker: ticker, FormType: formType, Year: year}] = &filings[i]
		if !seen[year] {
			seen[year] = true
			years = append(years, year)
		}
	}
	c.mu.Unlock()

	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

// Cached returns the cached filing for key, or nil.
func (c *Client) Cached(key CacheKey) *Filing {
	key.Ticker = strings.ToUpper(key.Ticker)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache[key]
}

func (c *Client) queryFilings(ctx context.Context, queryString string, size int) ([]Filing, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	body := map[string]any{
		"query": map[string]any{
			"query_string": map[string]any{
				"query": queryString,
			},
		},
		"from": 0,
		"size": size,
		"sort": []map[string]any{
			{"filedAt": map[string]any{"order": "desc"}},
		},
	}

	var result queryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", c.apiKey).
		SetBody(body).
		SetResult(&result).
		Post("/")
	if err != nil {
		return nil, fmt.Errorf("querying filings: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("filing query failed: %s: %s", resp.Status(), resp.String())
	}

	return result.Filings, nil
}

// SectionText extracts one item section of a filing as plain text.
// Item identifiers follow the 10-K structure ("1", "1A", "7", ...).
func (c *Client) SectionText(ctx context.Context, filing *Filing, item string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"url":   filingIndexURL(filing.CIK, filing.AccessionNo),
			"item":  item,
			"type":  "text",
			"token": c.apiKey,
		}).
		Get("/extractor")
	if err != nil {
		return "", fmt.Errorf("extracting section %s: %w", item, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("section %s extraction failed: %s", item, resp.Status())
	}

	return resp.String(), nil
}

// FullText retrieves the entire filing as plain text in a single call
// through the filing-reader endpoint.
func (c *Client) FullText(ctx context.Context, filing *Filing) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limiter: %w", err)
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"url":   filingIndexURL(filing.CIK, filing.AccessionNo),
			"type":  "text",
			"token": c.apiKey,
		}).
		Get("/filing-reader")
	if err != nil {
		return "", fmt.Errorf("extracting filing text: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("filing text extraction failed: %s", resp.Status())
	}

	return resp.String(), nil
}

// FilingText returns the filing's complete text. A single full-document
// extraction is tried first; if that fails or comes back empty, the
// extractable sections are concatenated instead, skipping with a
// warning any section that fails or is empty. An error is returned only
// when nothing could be extracted either way.
func (c *Client) FilingText(ctx context.Context, filing *Filing) (string, error) {
	text, err := c.FullText(ctx, filing)
	if err != nil {
		c.logger.Warn("full filing extraction failed, extracting per section",
			zap.String("ticker", filing.Ticker),
			zap.Error(err),
		)
	} else if text = strings.TrimSpace(text); text != "" {
		return text, nil
	}

	var sections []string
	for _, item := range Items {
		text, err := c.SectionText(ctx, filing, item)
		if err != nil {
			c.logger.Warn("skipping filing section",
				zap.String("ticker", filing.Ticker),
				zap.String("item", item),
				zap.Error(err),
			)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		sections = append(sections, text)
	}

	if len(sections) == 0 {
		return "", fmt.Errorf("no extractable content in %s filing %s", filing.FormType, filing.AccessionNo)
	}
	return strings.Join(sections, "\n\n"), nil
}

// FilingYear returns the fiscal year of a filing's period of report, or
// zero when the period is missing or malformed.
func FilingYear(f *Filing) int {
	if f == nil || f.PeriodOfReport == "" {
		return 0
	}
	t, err := time.Parse("2006-01-02", f.PeriodOfReport)
	if err != nil {
		return 0
	}
	return t.Year()
}

// filingIndexURL builds the EDGAR archive index URL the extractor API
// accepts in place of a direct document URL.
func filingIndexURL(cik, accessionNo string) string {
	return fmt.Sprintf("https://www.sec.gov/Archives/edgar/data/%s/%s/index.json",
		cik, strings.ReplaceAll(accessionNo, "-", ""))
}
