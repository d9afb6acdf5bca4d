package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finrag/internal/llm"
)

// stubLLM returns a fixed response or error for every prompt.
type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return s.response, s.err
}

func (s *stubLLM) Stream(ctx context.Context, prompt string, fn llm.TokenFunc) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if err := fn(s.response); err != nil {
		return "", err
	}
	return s.response, nil
}

func TestExtractTickers(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"single ticker", "What is the price of AAPL today?", []string{"AAPL"}},
		{"multiple tickers deduped", "Compare AAPL and MSFT, then AAPL again", []string{"AAPL", "MSFT"}},
		{"stopwords only", "THE CEO of THE SEC", nil},
		{"mixed stopwords and tickers", "What did the SEC say about TSLA?", []string{"TSLA"}},
		{"lowercase ignored", "what is apple's revenue", nil},
		{"too long ignored", "GOOGLE is not a ticker", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTickers(tt.query))
		})
	}
}

func TestExtractYear(t *testing.T) {
	assert.Equal(t, 2022, ExtractYear("What was revenue in 2022?"))
	assert.Equal(t, 1999, ExtractYear("the 1999 annual report"))
	assert.Equal(t, 0, ExtractYear("latest annual report"))
	assert.Equal(t, 0, ExtractYear("the year 3022"))
}

func TestClassifyParsesModelJSON(t *testing.T) {
	c := NewClassifier(&stubLLM{response: `{
		"requires_10k": true,
		"requires_account_info": false,
		"requires_positions": false,
		"requires_stock_price": true,
		"tickers": ["aapl"],
		"year": 2022
	}`}, zap.NewNop())

	result := c.Classify(context.Background(), "What was AAPL revenue in 2022?", "")
	assert.True(t, result.Requires10K)
	assert.False(t, result.RequiresAccountInfo)
	assert.True(t, result.RequiresStockPrice)
	assert.Equal(t, []string{"AAPL"}, result.Tickers)
	assert.Equal(t, 2022, result.Year)
}

func TestClassifyStripsCodeFences(t *testing.T) {
	c := NewClassifier(&stubLLM{response: "```json\n" + `{
		"requires_10k": true,
		"requires_account_info": false,
		"requires_positions": false,
		"requires_stock_price": false,
		"tickers": ["MSFT"],
		"year": null
	}` + "\n```"}, zap.NewNop())

	result := c.Classify(context.Background(), "Tell me about MSFT's annual report", "")
	assert.True(t, result.Requires10K)
	assert.Equal(t, []string{"MSFT"}, result.Tickers)
	assert.Equal(t, 0, result.Year)
}

func TestClassifyCoercesStringYear(t *testing.T) {
	c := NewClassifier(&stubLLM{response: `{
		"requires_10k": true, "requires_account_info": false,
		"requires_positions": false, "requires_stock_price": false,
		"tickers": ["NVDA"], "year": "2021"
	}`}, zap.NewNop())

	result := c.Classify(context.Background(), "NVDA 2021 filing", "")
	assert.Equal(t, 2021, result.Year)
}

func TestClassifyYearNoMeansUnspecified(t *testing.T) {
	c := NewClassifier(&stubLLM{response: `{
		"requires_10k": true, "requires_account_info": false,
		"requires_positions": false, "requires_stock_price": false,
		"tickers": ["NVDA"], "year": "no"
	}`}, zap.NewNop())

	result := c.Classify(context.Background(), "NVDA latest filing", "")
	assert.Equal(t, 0, result.Year)
}

func TestClassifyRegexYearBackfill(t *testing.T) {
	// Model omits the year but the query names one.
	c := NewClassifier(&stubLLM{response: `{
		"requires_10k": true, "requires_account_info": false,
		"requires_positions": false, "requires_stock_price": false,
		"tickers": ["AMZN"], "year": null
	}`}, zap.NewNop())

	result := c.Classify(context.Background(), "AMZN risk factors 2020", "")
	assert.Equal(t, 2020, result.Year)
}

func TestClassifyTickerBackfillFromHistory(t *testing.T) {
	// Model finds no tickers and the query names none, but the
	// conversation history does.
	c := NewClassifier(&stubLLM{response: `{
		"requires_10k": true, "requires_account_info": false,
		"requires_positions": false, "requires_stock_price": false,
		"tickers": [], "year": null
	}`}, zap.NewNop())

	history := "User Query 1: Summarize MSFT risk factors\nAssistant Response 1: ...\n"
	result := c.Classify(context.Background(), "what about their revenue?", history)
	assert.Equal(t, []string{"MSFT"}, result.Tickers)
}

func TestClassifyFallsBackOnModelError(t *testing.T) {
	c := NewClassifier(&stubLLM{err: errors.New("model unavailable")}, zap.NewNop())

	result := c.Classify(context.Background(), "What is the price of TSLA stock?", "")
	assert.True(t, result.RequiresStockPrice)
	assert.Equal(t, []string{"TSLA"}, result.Tickers)
}

func TestClassifyFallsBackOnGarbageOutput(t *testing.T) {
	c := NewClassifier(&stubLLM{response: "I cannot help with that."}, zap.NewNop())

	result := c.Classify(context.Background(), "How much cash do I have in my account?", "")
	assert.True(t, result.RequiresAccountInfo)
	assert.False(t, result.Requires10K)
}

func TestClassifyHeuristicKeywords(t *testing.T) {
	c := NewClassifier(nil, zap.NewNop())

	result := c.Classify(context.Background(), "What stocks do I own in my portfolio?", "")
	assert.True(t, result.RequiresPositions)

	result = c.Classify(context.Background(), "Summarize the risk factors in the latest 10-K for AAPL", "")
	require.True(t, result.Requires10K)
	assert.Equal(t, []string{"AAPL"}, result.Tickers)
}
