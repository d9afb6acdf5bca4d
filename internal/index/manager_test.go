package index

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finrag/internal/secfilings"
	"github.com/fyrsmithlabs/finrag/internal/vectorstore"
)

type fakeStore struct {
	collections map[string][]vectorstore.Document
	addCalls    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: make(map[string][]vectorstore.Document)}
}

func (s *fakeStore) AddDocuments(ctx context.Context, collection string, docs []vectorstore.Document) ([]string, error) {
	s.addCalls++
	s.collections[collection] = append(s.collections[collection], docs...)
	ids := make([]string, len(docs))
	return ids, nil
}

func (s *fakeStore) CollectionExists(name string) bool {
	_, ok := s.collections[name]
	return ok
}

func (s *fakeStore) ListCollections() []string {
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	return names
}

type fakeFilings struct {
	filing      *secfilings.Filing
	text        string
	cache       map[secfilings.CacheKey]*secfilings.Filing
	textCalls   int
	latestCalls int
	byYearCalls int
	byYearErr   error
}

func newFakeFilings() *fakeFilings {
	return &fakeFilings{
		filing: &secfilings.Filing{
			Ticker:         "AAPL",
			CompanyName:    "Apple Inc.",
			FormType:       "10-K",
			FiledAt:        "2023-11-03T08:01:36-04:00",
			PeriodOfReport: "2023-09-30",
			CIK:            "320193",
			AccessionNo:    "0000320193-23-000106",
		},
		text:  strings.Repeat("Apple designs and sells consumer electronics. ", 100),
		cache: make(map[secfilings.CacheKey]*secfilings.Filing),
	}
}

func (f *fakeFilings) LatestFiling(ctx context.Context, ticker, formType string) (*secfilings.Filing, error) {
	f.latestCalls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.filing, nil
}

func (f *fakeFilings) FilingByYear(ctx context.Context, ticker, formType string, year int) (*secfilings.Filing, error) {
	f.byYearCalls++
	if f.byYearErr != nil {
		return nil, f.byYearErr
	}
	return f.filing, nil
}

func (f *fakeFilings) FilingText(ctx context.Context, filing *secfilings.Filing) (string, error) {
	f.textCalls++
	return f.text, nil
}

func (f *fakeFilings) Cached(key secfilings.CacheKey) *secfilings.Filing {
	return f.cache[key]
}

func TestGetOrBuildLatestResolvesFilingYear(t *testing.T) {
	store := newFakeStore()
	filings := newFakeFilings()
	m := NewManager(store, filings, zap.NewNop())

	result, err := m.GetOrBuild(context.Background(), "aapl", 0)
	require.NoError(t, err)

	assert.Equal(t, "AAPL_2023_10K", result.Collection)
	assert.Equal(t, 2023, result.Year)
	assert.Equal(t, "Apple Inc.", result.Meta.CompanyName)
	assert.Equal(t, 1, store.addCalls)
	assert.NotEmpty(t, store.collections["AAPL_2023_10K"])
}

func TestGetOrBuildChunkMetadata(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, newFakeFilings(), zap.NewNop())

	_, err := m.GetOrBuild(context.Background(), "AAPL", 0)
	require.NoError(t, err)

	docs := store.collections["AAPL_2023_10K"]
	require.NotEmpty(t, docs)
	assert.Equal(t, "AAPL", docs[0].Metadata["ticker"])
	assert.Equal(t, "10-K", docs[0].Metadata["source"])
	assert.Equal(t, "2023", docs[0].Metadata["year"])
}

func TestGetOrBuildReusesExistingIndex(t *testing.T) {
	store := newFakeStore()
	filings := newFakeFilings()
	m := NewManager(store, filings, zap.NewNop())

	_, err := m.GetOrBuild(context.Background(), "AAPL", 0)
	require.NoError(t, err)
	require.Equal(t, 1, store.addCalls)
	require.Equal(t, 1, filings.textCalls)

	// Same latest request again: metadata is re-fetched, text is not.
	result, err := m.GetOrBuild(context.Background(), "AAPL", 0)
	require.NoError(t, err)
	assert.Equal(t, "AAPL_2023_10K", result.Collection)
	assert.Equal(t, 1, store.addCalls)
	assert.Equal(t, 1, filings.textCalls)
}

func TestYearRequestFindsIndexBuiltFromLatest(t *testing.T) {
	store := newFakeStore()
	filings := newFakeFilings()
	m := NewManager(store, filings, zap.NewNop())

	_, err := m.GetOrBuild(context.Background(), "AAPL", 0)
	require.NoError(t, err)

	// The latest filing covered fiscal 2023; asking for 2023 must not
	// download anything.
	filings.cache[secfilings.CacheKey{Ticker: "AAPL", FormType: "10-K", Year: 2023}] = filings.filing
	result, err := m.GetOrBuild(context.Background(), "AAPL", 2023)
	require.NoError(t, err)

	assert.Equal(t, "AAPL_2023_10K", result.Collection)
	assert.Equal(t, "Apple Inc.", result.Meta.CompanyName)
	assert.Equal(t, 1, filings.textCalls)
	assert.Equal(t, 0, filings.byYearCalls)
}

func TestBuildSurvivesCallerCancellation(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, newFakeFilings(), zap.NewNop())

	// The build flight may be shared with other callers, so one caller's
	// cancelled context must not abort it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := m.GetOrBuild(ctx, "AAPL", 0)
	require.NoError(t, err)
	assert.Equal(t, "AAPL_2023_10K", result.Collection)
	assert.Equal(t, 1, store.addCalls)
}

func TestCachedIndexWithUnreachableMetadata(t *testing.T) {
	store := newFakeStore()
	store.collections["TSLA_2021_10K"] = []vectorstore.Document{{Content: "x"}}

	filings := newFakeFilings()
	filings.byYearErr = errors.New("api down")
	m := NewManager(store, filings, zap.NewNop())

	result, err := m.GetOrBuild(context.Background(), "TSLA", 2021)
	require.NoError(t, err)

	assert.Equal(t, "TSLA_2021_10K", result.Collection)
	assert.Equal(t, "TSLA", result.Meta.CompanyName)
	assert.Equal(t, "10-K", result.Meta.FormType)
	assert.Contains(t, result.Meta.FiledAt, "(cached)")
	assert.Equal(t, 0, filings.textCalls)
}

func TestList(t *testing.T) {
	store := newFakeStore()
	store.collections["AAPL_2023_10K"] = nil
	store.collections["AAPL_2021_10K"] = nil
	store.collections["MSFT_2022_10K"] = nil
	store.collections["not_a_filing"] = nil

	m := NewManager(store, newFakeFilings(), zap.NewNop())

	indexed := m.List()
	assert.Equal(t, []int{2023, 2021}, indexed["AAPL"])
	assert.Equal(t, []int{2022}, indexed["MSFT"])
	assert.NotContains(t, indexed, "not")
}
