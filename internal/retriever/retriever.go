// Package retriever turns a user query into grounded 10-K context.
//
// The pipeline rewrites the query for filing search, runs a similarity
// search against the filing's index, compresses the hits to their
// relevant parts, and renders the result with filing provenance. The
// output is always a prompt-ready string: retrieval failures become an
// inline error statement the model can acknowledge rather than a failed
// request.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finrag/internal/index"
	"github.com/fyrsmithlabs/finrag/internal/llm"
	"github.com/fyrsmithlabs/finrag/internal/vectorstore"
)

// topK is the number of passages fetched per query before compression.
const topK = 5

const rewritePrompt = `You are a financial search query optimizer. Your job is to generate an optimized search query
for retrieving information from SEC 10-K filings based on the user's query and conversation history.

USER QUERY: %s

CONVERSATION HISTORY:
%s

Based on the user query and conversation history, generate an optimized search query that:
1. Captures the key financial concepts needed
2. Includes specific financial terms that might be in 10-K documents
3. Extracts and expands any implied searches from the conversation context
4. Uses specific financial terminology that would appear in SEC filings
5. Is focused and precise (between 10-20 words)

DO NOT explain your reasoning. ONLY output the optimized search query text.

OPTIMIZED SEARCH QUERY:`

// RewriteQuery asks the chat model for a filing-search-optimized version
// of the user query, informed by conversation history.
func RewriteQuery(ctx context.Context, client llm.Client, query, history string) (string, error) {
	response, err := client.Complete(ctx, fmt.Sprintf(rewritePrompt, query, history))
	if err != nil {
		return "", fmt.Errorf("rewriting search query: %w", err)
	}
	return strings.TrimSpace(response), nil
}

// Indexes provides ready-to-query filing indexes.
type Indexes interface {
	GetOrBuild(ctx context.Context, ticker string, year int) (*index.Result, error)
}

// Searcher performs similarity search over an indexed collection.
type Searcher interface {
	Query(ctx context.Context, collection, query string, k int) ([]vectorstore.SearchResult, error)
}

// Compressor reduces passages to their query-relevant parts.
type Compressor interface {
	Extract(ctx context.Context, query string, passages []string) []string
}

// Retriever produces grounded filing context for queries.
type Retriever struct {
	indexes    Indexes
	search     Searcher
	compressor Compressor
	llm        llm.Client
	logger     *zap.Logger
}

// New creates a Retriever. The compressor may be nil to skip contextual
// compression.
func New(indexes Indexes, search Searcher, compressor Compressor, client llm.Client, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		indexes:    indexes,
		search:     search,
		compressor: compressor,
		llm:        client,
		logger:     logger,
	}
}

// Retrieve returns filing context for the query as prompt-ready text. A
// zero year targets the latest filing.
func (r *Retriever) Retrieve(ctx context.Context, ticker, query, history string, year int) string {
	result, err := r.indexes.GetOrBuild(ctx, ticker, year)
	if err != nil {
		return fmt.Sprintf("Error retrieving SEC context: %v", err)
	}

	searchQuery := query
	if rewritten, err := RewriteQuery(ctx, r.llm, query, history); err != nil {
		r.logger.Warn("query rewrite failed, searching with original query", zap.Error(err))
	} else if rewritten != "" {
		r.logger.Debug("rewrote search query",
			zap.String("original", query), zap.String("rewritten", rewritten))
		searchQuery = rewritten
	}

	hits, err := r.search.Query(ctx, result.Collection, searchQuery, topK)
	if err != nil {
		return fmt.Sprintf("Error retrieving SEC context: %v", err)
	}

	passages := make([]string, len(hits))
	for i, hit := range hits {
		passages[i] = hit.Content
	}

	if r.compressor != nil && len(passages) > 0 {
		passages = r.compressor.Extract(ctx, searchQuery, passages)
	}

	if len(passages) == 0 {
		return fmt.Sprintf("No relevant information found in the 10-K filing for %s.", strings.ToUpper(ticker))
	}

	return formatContext(result.Meta, passages)
}

func formatContext(meta index.FilingMeta, passages []string) string {
	var b strings.Builder
	b.WriteString("Filing Information:\n")
	fmt.Fprintf(&b, "- Company: %s\n", valueOrNA(meta.CompanyName))
	fmt.Fprintf(&b, "- Filing Type: %s\n", valueOrNA(meta.FormType))
	fmt.Fprintf(&b, "- Filed Date: %s\n", valueOrNA(meta.FiledAt))
	fmt.Fprintf(&b, "- Period End Date: %s\n", valueOrNA(meta.PeriodOfReport))
	b.WriteString("\nRelevant Excerpts:\n")
	for i, passage := range passages {
		fmt.Fprintf(&b, "\nContext %d:\n%s\n", i+1, passage)
	}
	return strings.TrimRight(b.String(), "\n")
}

func valueOrNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
