// Package index builds and reuses per-filing vector indexes.
//
// An index is keyed by (ticker, fiscal year). Builds are expensive: a
// full 10-K download, chunking, and embedding. The manager collapses
// concurrent builds for the same key into a single flight and treats a
// persisted collection as an already-built index that is never rebuilt.
package index

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fyrsmithlabs/finrag/internal/secfilings"
	"github.com/fyrsmithlabs/finrag/internal/vectorstore"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200
	formType     = "10-K"
)

// Store is the vector store surface the manager needs.
type Store interface {
	AddDocuments(ctx context.Context, collection string, docs []vectorstore.Document) ([]string, error)
	CollectionExists(name string) bool
	ListCollections() []string
}

// FilingSource fetches filing metadata and text.
type FilingSource interface {
	LatestFiling(ctx context.Context, ticker, formType string) (*secfilings.Filing, error)
	FilingByYear(ctx context.Context, ticker, formType string, year int) (*secfilings.Filing, error)
	FilingText(ctx context.Context, filing *secfilings.Filing) (string, error)
	Cached(key secfilings.CacheKey) *secfilings.Filing
}

// FilingMeta is the filing metadata surfaced alongside retrieved context.
type FilingMeta struct {
	CompanyName    string
	FormType       string
	FiledAt        string
	PeriodOfReport string
}

// Result identifies a ready-to-query index.
type Result struct {
	// Collection is the vector store collection holding the filing chunks.
	Collection string
	// Meta describes the indexed filing. For an index served from disk
	// without reachable filing metadata, fields carry placeholders.
	Meta FilingMeta
	// Year is the fiscal year the index covers.
	Year int
}

// Manager builds filing indexes on demand.
type Manager struct {
	store    Store
	filings  FilingSource
	splitter textsplitter.RecursiveCharacter
	group    singleflight.Group
	logger   *zap.Logger
}

// NewManager creates an index manager.
func NewManager(store Store, filings FilingSource, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:   store,
		filings: filings,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		logger: logger,
	}
}

// GetOrBuild returns the index for the ticker's 10-K filing of the given
// fiscal year, building it if absent. A zero year means the latest
// filing; the latest filing's own fiscal year names the index, so a
// later year-specific request finds the same collection.
//
// Concurrent calls for the same (ticker, year) share one build.
func (m *Manager) GetOrBuild(ctx context.Context, ticker string, year int) (*Result, error) {
	ticker = strings.ToUpper(ticker)

	key := fmt.Sprintf("%s:%d", ticker, year)
	v, err, shared := m.group.Do(key, func() (any, error) {
		// The flight may be shared with other callers, so the build must
		// outlive any single caller's cancellation.
		return m.getOrBuild(context.WithoutCancel(ctx), ticker, year)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		m.logger.Debug("index build shared with concurrent caller",
			zap.String("ticker", ticker), zap.Int("year", year))
	}
	return v.(*Result), nil
}

func (m *Manager) getOrBuild(ctx context.Context, ticker string, year int) (*Result, error) {
	// A persisted collection short-circuits the filing download entirely.
	if year != 0 {
		collection := collectionName(ticker, year)
		if m.store.CollectionExists(collection) {
			return &Result{
				Collection: collection,
				Meta:       m.reconstructMeta(ctx, ticker, year),
				Year:       year,
			}, nil
		}
	}

	var (
		filing *secfilings.Filing
		err    error
	)
	if year != 0 {
		filing, err = m.filings.FilingByYear(ctx, ticker, formType, year)
	} else {
		filing, err = m.filings.LatestFiling(ctx, ticker, formType)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching %s filing for %s: %w", formType, ticker, err)
	}

	resolvedYear := secfilings.FilingYear(filing)
	if resolvedYear == 0 {
		resolvedYear = year
	}

	meta := FilingMeta{
		CompanyName:    filing.CompanyName,
		FormType:       filing.FormType,
		FiledAt:        filing.FiledAt,
		PeriodOfReport: filing.PeriodOfReport,
	}

	collection := collectionName(ticker, resolvedYear)
	if m.store.CollectionExists(collection) {
		return &Result{Collection: collection, Meta: meta, Year: resolvedYear}, nil
	}

	m.logger.Info("building filing index",
		zap.String("ticker", ticker),
		zap.Int("year", resolvedYear),
		zap.String("collection", collection),
	)

	text, err := m.filings.FilingText(ctx, filing)
	if err != nil {
		return nil, fmt.Errorf("extracting filing text: %w", err)
	}

	chunks, err := m.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("splitting filing text: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("filing text produced no chunks")
	}

	docs := make([]vectorstore.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = vectorstore.Document{
			Content: chunk,
			Metadata: map[string]string{
				"ticker": ticker,
				"source": formType,
				"year":   strconv.Itoa(resolvedYear),
			},
		}
	}

	if _, err := m.store.AddDocuments(ctx, collection, docs); err != nil {
		return nil, fmt.Errorf("indexing filing chunks: %w", err)
	}

	m.logger.Info("filing index built",
		zap.String("collection", collection),
		zap.Int("chunks", len(chunks)),
	)

	return &Result{Collection: collection, Meta: meta, Year: resolvedYear}, nil
}

// reconstructMeta recovers filing metadata for an index served from
// disk. The in-memory filing cache is tried first, then a metadata-only
// query; failing both, placeholders identify the filing by ticker and
// year without blocking retrieval.
func (m *Manager) reconstructMeta(ctx context.Context, ticker string, year int) FilingMeta {
	filing := m.filings.Cached(secfilings.CacheKey{Ticker: ticker, FormType: formType, Year: year})
	if filing == nil {
		var err error
		filing, err = m.filings.FilingByYear(ctx, ticker, formType, year)
		if err != nil {
			m.logger.Debug("filing metadata unavailable for cached index",
				zap.String("ticker", ticker), zap.Int("year", year), zap.Error(err))
		}
	}

	if filing == nil {
		cached := fmt.Sprintf("%d (cached)", year)
		return FilingMeta{
			CompanyName:    ticker,
			FormType:       formType,
			FiledAt:        cached,
			PeriodOfReport: cached,
		}
	}

	return FilingMeta{
		CompanyName:    filing.CompanyName,
		FormType:       filing.FormType,
		FiledAt:        filing.FiledAt,
		PeriodOfReport: filing.PeriodOfReport,
	}
}

// List returns the indexed fiscal years per ticker, most recent first.
func (m *Manager) List() map[string][]int {
	result := make(map[string][]int)
	for _, name := range m.store.ListCollections() {
		ticker, year, ok := parseCollectionName(name)
		if !ok {
			continue
		}
		result[ticker] = append(result[ticker], year)
	}
	for ticker := range result {
		sort.Sort(sort.Reverse(sort.IntSlice(result[ticker])))
	}
	return result
}

// collectionName formats the collection for a ticker and fiscal year,
// e.g. AAPL_2023_10K. A zero year, meaning the filing's fiscal year
// could not be determined, is labeled "latest".
func collectionName(ticker string, year int) string {
	label := "latest"
	if year != 0 {
		label = strconv.Itoa(year)
	}
	return fmt.Sprintf("%s_%s_%s", ticker, label, strings.ReplaceAll(formType, "-", ""))
}

func parseCollectionName(name string) (ticker string, year int, ok bool) {
	parts := strings.Split(name, "_")
	if len(parts) != 3 || parts[2] != strings.ReplaceAll(formType, "-", "") {
		return "", 0, false
	}
	if parts[1] == "latest" {
		return parts[0], 0, true
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, false
	}
	return parts[0], year, true
}
