// Package classify determines which data sources a user query needs.
//
// Classification is primarily model-driven: the query is sent to the
// chat model with a JSON-only instruction. When the model fails or
// returns unparseable output, a keyword and regex heuristic takes over,
// so classification itself never fails a request.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finrag/internal/llm"
)

// Classification describes the data sources a query requires.
type Classification struct {
	Requires10K         bool     `json:"requires_10k"`
	RequiresAccountInfo bool     `json:"requires_account_info"`
	RequiresPositions   bool     `json:"requires_positions"`
	RequiresStockPrice  bool     `json:"requires_stock_price"`
	Tickers             []string `json:"tickers"`
	// Year is the fiscal year the query asks about, zero when unspecified.
	Year int `json:"year"`
}

var (
	yearPattern   = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	tickerPattern = regexp.MustCompile(`\b[A-Z]{1,5}\b`)
	jsonPattern   = regexp.MustCompile(`(?s)\{.*\}`)
)

// tickerStopwords are uppercase words that match the ticker pattern but
// are almost never meant as symbols.
var tickerStopwords = map[string]bool{
	"I": true, "A": true, "AN": true, "THE": true, "AND": true, "OR": true,
	"TO": true, "OF": true, "IN": true, "ON": true, "AT": true, "IS": true,
	"IT": true, "BE": true, "DO": true, "MY": true, "ME": true, "US": true,
	"FOR": true, "HOW": true, "WHAT": true, "WHO": true, "WHY": true,
	"K": true, "Q": true, // 10-K, 10-Q
	"CEO": true, "CFO": true, "SEC": true, "ETF": true, "GDP": true,
	"IPO": true, "AI": true, "API": true, "USA": true, "USD": true,
	"YOY": true, "EPS": true, "LLC": true, "INC": true, "CORP": true,
}

const classifyPrompt = `You are a financial assistant that helps users find information from different sources.
Analyze the following user query and determine what type of information is needed.
%s
User query: %q

For this query, I need to know:
1. Does it require information from SEC 10-K filings? (yes/no)
2. Does it require information about the user's account (cash, portfolio value, etc.)? (yes/no)
3. Does it require information about the user's positions (stocks owned)? (yes/no)
4. Does it require current stock price information? (yes/no)
5. What ticker symbols (if any) are mentioned in the query? List them in uppercase.
6. Does the query ask about a specific year for financial data? If so, what year? (Type the year as a 4-digit number, or "no" if not specified)

Respond in JSON format only:
{
    "requires_10k": true/false,
    "requires_account_info": true/false,
    "requires_positions": true/false,
    "requires_stock_price": true/false,
    "tickers": ["TICKER1", "TICKER2", ...],
    "year": 2023 (or null if not specified)
}`

// Classifier classifies queries with a chat model, falling back to
// heuristics on failure.
type Classifier struct {
	llm    llm.Client
	logger *zap.Logger
}

// NewClassifier creates a Classifier. The client may be nil, in which
// case only the heuristic path is used.
func NewClassifier(client llm.Client, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{llm: client, logger: logger}
}

// Classify determines what data sources the query needs. It never
// returns an error: model failures degrade to heuristic classification.
func (c *Classifier) Classify(ctx context.Context, query, history string) Classification {
	if c.llm != nil {
		if result, err := c.classifyWithModel(ctx, query, history); err == nil {
			return result
		} else {
			c.logger.Warn("model classification failed, using heuristics", zap.Error(err))
		}
	}
	return c.classifyHeuristic(query, history)
}

// llmClassification mirrors Classification but tolerates the loose
// typing models produce for the year field.
type llmClassification struct {
	Requires10K         bool     `json:"requires_10k"`
	RequiresAccountInfo bool     `json:"requires_account_info"`
	RequiresPositions   bool     `json:"requires_positions"`
	RequiresStockPrice  bool     `json:"requires_stock_price"`
	Tickers             []string `json:"tickers"`
	Year                any      `json:"year"`
}

func (c *Classifier) classifyWithModel(ctx context.Context, query, history string) (Classification, error) {
	historyBlock := ""
	if history != "" {
		historyBlock = fmt.Sprintf("\nPrevious conversation for context:\n%s\n", history)
	}

	response, err := c.llm.Complete(ctx, fmt.Sprintf(classifyPrompt, historyBlock, query))
	if err != nil {
		return Classification{}, fmt.Errorf("completing classification prompt: %w", err)
	}

	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")

	raw := jsonPattern.FindString(response)
	if raw == "" {
		return Classification{}, fmt.Errorf("no JSON object in model response")
	}

	var parsed llmClassification
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return Classification{}, fmt.Errorf("decoding classification: %w", err)
	}

	result := Classification{
		Requires10K:         parsed.Requires10K,
		RequiresAccountInfo: parsed.RequiresAccountInfo,
		RequiresPositions:   parsed.RequiresPositions,
		RequiresStockPrice:  parsed.RequiresStockPrice,
		Tickers:             normalizeTickers(parsed.Tickers),
		Year:                coerceYear(parsed.Year),
	}

	// The regex is more reliable than the model for explicit years.
	if result.Year == 0 {
		result.Year = ExtractYear(query)
	}
	if len(result.Tickers) == 0 {
		result.Tickers = ExtractTickers(query + " " + history)
	}

	return result, nil
}

// classifyHeuristic classifies with keyword matching alone. Tickers are
// extracted from both the query and the conversation history.
func (c *Classifier) classifyHeuristic(query, history string) Classification {
	lower := strings.ToLower(query)

	contains := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(lower, w) {
				return true
			}
		}
		return false
	}

	return Classification{
		Requires10K:         contains("10-k", "10k", "filing", "report", "annual", "risk", "factors", "revenue", "business"),
		RequiresAccountInfo: contains("account", "balance", "cash", "buying power", "equity", "margin"),
		RequiresPositions:   contains("position", "holding", "portfolio", "own", "shares"),
		RequiresStockPrice:  contains("price", "stock", "market", "trading", "quote", "worth"),
		Tickers:             ExtractTickers(query + " " + history),
		Year:                ExtractYear(query),
	}
}

// ExtractTickers finds candidate ticker symbols in a query: uppercase
// words of one to five letters, minus common English words and
// financial abbreviations, deduplicated in order of appearance.
func ExtractTickers(query string) []string {
	seen := make(map[string]bool)
	var tickers []string
	for _, match := range tickerPattern.FindAllString(query, -1) {
		if tickerStopwords[match] || seen[match] {
			continue
		}
		seen[match] = true
		tickers = append(tickers, match)
	}
	return tickers
}

// ExtractYear returns the first four-digit year in the query, or zero.
func ExtractYear(query string) int {
	match := yearPattern.FindString(query)
	if match == "" {
		return 0
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return year
}

func normalizeTickers(tickers []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// coerceYear normalizes the year field from model output, which may be
// a number, a digit string, "no", or null.
func coerceYear(v any) int {
	switch year := v.(type) {
	case float64:
		return int(year)
	case string:
		if strings.EqualFold(year, "no") {
			return 0
		}
		if n, err := strconv.Atoi(year); err == nil {
			return n
		}
	}
	return 0
}
