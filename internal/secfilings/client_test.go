package secfilings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		BaseURL:   srv.URL,
		APIKey:    "test-key",
		RateLimit: 1000,
	}, zap.NewNop())
	require.NoError(t, err)
	return client, srv
}

func filingsResponse(filings ...Filing) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"filings": filings})
	}
}

func TestLatestFilingCachesByYearToo(t *testing.T) {
	var queries int
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries++
		filingsResponse(Filing{
			Ticker:         "AAPL",
			CompanyName:    "Apple Inc.",
			FormType:       "10-K",
			FiledAt:        "2023-11-03T08:01:36-04:00",
			PeriodOfReport: "2023-09-30",
			CIK:            "320193",
			AccessionNo:    "0000320193-23-000106",
		})(w, r)
	}))

	filing, err := client.LatestFiling(context.Background(), "aapl", "10-K")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", filing.CompanyName)
	assert.Equal(t, 1, queries)

	// Cached under the latest key and the resolved fiscal year.
	assert.NotNil(t, client.Cached(CacheKey{Ticker: "AAPL", FormType: "10-K"}))
	assert.NotNil(t, client.Cached(CacheKey{Ticker: "AAPL", FormType: "10-K", Year: 2023}))

	// Year-specific lookup is served from cache, no second request.
	byYear, err := client.FilingByYear(context.Background(), "AAPL", "10-K", 2023)
	require.NoError(t, err)
	assert.Equal(t, filing, byYear)
	assert.Equal(t, 1, queries)
}

func TestFilingByYearPicksMatchingPeriod(t *testing.T) {
	client, _ := newTestClient(t, filingsResponse(
		Filing{Ticker: "MSFT", PeriodOfReport: "2023-06-30", AccessionNo: "a-23"},
		Filing{Ticker: "MSFT", PeriodOfReport: "2022-06-30", AccessionNo: "a-22"},
	))

	filing, err := client.FilingByYear(context.Background(), "MSFT", "10-K", 2022)
	require.NoError(t, err)
	assert.Equal(t, "a-22", filing.AccessionNo)
}

func TestFilingByYearFallsBackToMostRecent(t *testing.T) {
	client, _ := newTestClient(t, filingsResponse(
		Filing{Ticker: "MSFT", PeriodOfReport: "2023-06-30", AccessionNo: "a-23"},
	))

	filing, err := client.FilingByYear(context.Background(), "MSFT", "10-K", 2021)
	require.NoError(t, err)
	assert.Equal(t, "a-23", filing.AccessionNo)
}

func TestLatestFilingNoResults(t *testing.T) {
	client, _ := newTestClient(t, filingsResponse())

	_, err := client.LatestFiling(context.Background(), "ZZZZ", "10-K")
	assert.ErrorIs(t, err, ErrNoFilings)
}

func TestAvailableYears(t *testing.T) {
	client, _ := newTestClient(t, filingsResponse(
		Filing{Ticker: "AAPL", PeriodOfReport: "2023-09-30"},
		Filing{Ticker: "AAPL", PeriodOfReport: "2022-09-24"},
		Filing{Ticker: "AAPL", PeriodOfReport: "2021-09-25"},
	))

	years, err := client.AvailableYears(context.Background(), "AAPL", "10-K", 5)
	require.NoError(t, err)
	assert.Equal(t, []int{2023, 2022, 2021}, years)

	// Each discovered filing is cached by year.
	assert.NotNil(t, client.Cached(CacheKey{Ticker: "AAPL", FormType: "10-K", Year: 2022}))
}

func TestSectionTextBuildsExtractorRequest(t *testing.T) {
	var gotURL, gotItem, gotType string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/extractor", r.URL.Path)
		gotURL = r.URL.Query().Get("url")
		gotItem = r.URL.Query().Get("item")
		gotType = r.URL.Query().Get("type")
		_, _ = w.Write([]byte("Risk factors include supply chain disruption."))
	}))

	filing := &Filing{CIK: "320193", AccessionNo: "0000320193-23-000106"}
	text, err := client.SectionText(context.Background(), filing, "1A")
	require.NoError(t, err)

	assert.Equal(t, "Risk factors include supply chain disruption.", text)
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/data/320193/000032019323000106/index.json", gotURL)
	assert.Equal(t, "1A", gotItem)
	assert.Equal(t, "text", gotType)
}

func TestFilingTextPrefersFullDocument(t *testing.T) {
	var sectionCalls int
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/filing-reader":
			assert.Equal(t, "text", r.URL.Query().Get("type"))
			_, _ = w.Write([]byte("Complete filing text."))
		case "/extractor":
			sectionCalls++
			http.Error(w, "unexpected", http.StatusInternalServerError)
		}
	}))

	text, err := client.FilingText(context.Background(), &Filing{CIK: "1", AccessionNo: "a-1"})
	require.NoError(t, err)
	assert.Equal(t, "Complete filing text.", text)
	assert.Zero(t, sectionCalls)
}

func TestFilingTextFallsBackToSections(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/filing-reader" {
			http.Error(w, "not supported", http.StatusForbidden)
			return
		}
		switch r.URL.Query().Get("item") {
		case "1":
			_, _ = w.Write([]byte("Business overview."))
		case "1A":
			http.Error(w, "not found", http.StatusNotFound)
		case "7":
			_, _ = w.Write([]byte("Management discussion."))
		default:
			_, _ = w.Write([]byte("   "))
		}
	}))

	text, err := client.FilingText(context.Background(), &Filing{CIK: "1", AccessionNo: "a-1"})
	require.NoError(t, err)
	assert.Equal(t, "Business overview.\n\nManagement discussion.", text)
}

func TestFilingTextAllSectionsEmpty(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))

	_, err := client.FilingText(context.Background(), &Filing{CIK: "1", AccessionNo: "a-1"})
	assert.Error(t, err)
}

func TestFilingYear(t *testing.T) {
	assert.Equal(t, 2023, FilingYear(&Filing{PeriodOfReport: "2023-09-30"}))
	assert.Equal(t, 0, FilingYear(&Filing{PeriodOfReport: "not-a-date"}))
	assert.Equal(t, 0, FilingYear(&Filing{}))
	assert.Equal(t, 0, FilingYear(nil))
}
