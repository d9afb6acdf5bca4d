// Package assistant orchestrates the answer pipeline: classify the
// query, gather the data sources it needs, assemble a grounded prompt,
// generate the answer, and record the exchange.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finrag/internal/classify"
	"github.com/fyrsmithlabs/finrag/internal/llm"
	"github.com/fyrsmithlabs/finrag/internal/marketdata"
	"github.com/fyrsmithlabs/finrag/internal/prompt"
)

// QueryClassifier determines the data sources a query needs.
type QueryClassifier interface {
	Classify(ctx context.Context, query, history string) classify.Classification
}

// ContextRetriever produces grounded 10-K context for a query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, ticker, query, history string, year int) string
}

// MarketData provides brokerage account and market state.
type MarketData interface {
	AccountInfo(ctx context.Context) (*marketdata.Account, error)
	Positions(ctx context.Context) ([]marketdata.Position, error)
	StockPrice(ctx context.Context, ticker string) (*marketdata.StockPrice, error)
}

// ConversationMemory records and replays conversation turns.
type ConversationMemory interface {
	HistoryText() string
	AddInteraction(query, response string)
}

// Assistant answers financial queries grounded in filings and live
// market data.
type Assistant struct {
	classifier QueryClassifier
	retriever  ContextRetriever
	market     MarketData
	memory     ConversationMemory
	llm        llm.Client
	logger     *zap.Logger
}

// New creates an Assistant. The retriever and market client may be nil
// when their backing services are not configured; queries needing them
// get an inline unavailability note instead of failing.
func New(classifier QueryClassifier, retriever ContextRetriever, market MarketData,
	memory ConversationMemory, client llm.Client, logger *zap.Logger) *Assistant {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assistant{
		classifier: classifier,
		retriever:  retriever,
		market:     market,
		memory:     memory,
		llm:        client,
		logger:     logger,
	}
}

// Answer runs the full pipeline and returns the generated response.
func (a *Assistant) Answer(ctx context.Context, query string) string {
	return a.answer(ctx, query, nil)
}

// AnswerStream runs the full pipeline, delivering answer tokens through
// fn as they are generated, and returns the complete response.
func (a *Assistant) AnswerStream(ctx context.Context, query string, fn llm.TokenFunc) string {
	return a.answer(ctx, query, fn)
}

func (a *Assistant) answer(ctx context.Context, query string, fn llm.TokenFunc) string {
	history := a.memory.HistoryText()

	c := a.classifier.Classify(ctx, query, history)
	a.logger.Info("classified query",
		zap.Bool("requires_10k", c.Requires10K),
		zap.Bool("requires_account", c.RequiresAccountInfo),
		zap.Bool("requires_positions", c.RequiresPositions),
		zap.Bool("requires_price", c.RequiresStockPrice),
		zap.Strings("tickers", c.Tickers),
		zap.Int("year", c.Year),
	)

	pc := prompt.Context{Query: query, History: history}

	// Only the first mentioned ticker drives filing and price lookups.
	if len(c.Tickers) > 1 {
		a.logger.Warn("query mentions multiple tickers, using the first",
			zap.Strings("tickers", c.Tickers))
	}

	if c.Requires10K && len(c.Tickers) > 0 {
		pc.SECContext = a.retrieveFilingContext(ctx, c.Tickers[0], query, history, c.Year)
	}
	if c.RequiresAccountInfo {
		pc.AccountInfo = a.retrieveAccountInfo(ctx)
	}
	if c.RequiresPositions {
		pc.Positions = a.retrievePositions(ctx)
	}
	if c.RequiresStockPrice && len(c.Tickers) > 0 {
		pc.StockInfo = a.retrieveStockInfo(ctx, c.Tickers[0])
	}

	var (
		response string
		err      error
	)
	if fn != nil {
		response, err = a.llm.Stream(ctx, prompt.Build(pc), fn)
	} else {
		response, err = a.llm.Complete(ctx, prompt.Build(pc))
	}
	if err != nil {
		a.logger.Error("answer generation failed", zap.Error(err))
		response = fmt.Sprintf("I apologize, but I encountered an error while processing your query: %v", err)
	}

	a.memory.AddInteraction(query, response)
	return response
}

func (a *Assistant) retrieveFilingContext(ctx context.Context, ticker, query, history string, year int) string {
	if a.retriever == nil {
		return "SEC filing retrieval is not configured."
	}
	return a.retriever.Retrieve(ctx, ticker, query, history, year)
}

func (a *Assistant) retrieveAccountInfo(ctx context.Context) string {
	if a.market == nil {
		return "Brokerage account access is not configured."
	}
	account, err := a.market.AccountInfo(ctx)
	if err != nil {
		a.logger.Warn("account lookup failed", zap.Error(err))
		return fmt.Sprintf("Error retrieving account information: %v", err)
	}
	return marshalIndent(account)
}

func (a *Assistant) retrievePositions(ctx context.Context) string {
	if a.market == nil {
		return "Brokerage account access is not configured."
	}
	positions, err := a.market.Positions(ctx)
	if err != nil {
		a.logger.Warn("positions lookup failed", zap.Error(err))
		return fmt.Sprintf("Error retrieving position information: %v", err)
	}
	if len(positions) == 0 {
		return "No open positions."
	}
	return marshalIndent(positions)
}

func (a *Assistant) retrieveStockInfo(ctx context.Context, ticker string) string {
	if a.market == nil {
		return "Market data access is not configured."
	}
	price, err := a.market.StockPrice(ctx, ticker)
	if err != nil {
		a.logger.Warn("stock price lookup failed",
			zap.String("ticker", ticker), zap.Error(err))
		return fmt.Sprintf("Error retrieving stock price information: %v", err)
	}
	return marshalIndent(price)
}

func marshalIndent(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
