// Package app wires the finrag components into a running application.
// Both the daemon and the CLI build on it.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finrag/internal/assistant"
	"github.com/fyrsmithlabs/finrag/internal/classify"
	"github.com/fyrsmithlabs/finrag/internal/compress"
	"github.com/fyrsmithlabs/finrag/internal/config"
	"github.com/fyrsmithlabs/finrag/internal/embeddings"
	"github.com/fyrsmithlabs/finrag/internal/index"
	"github.com/fyrsmithlabs/finrag/internal/llm"
	"github.com/fyrsmithlabs/finrag/internal/logging"
	"github.com/fyrsmithlabs/finrag/internal/marketdata"
	"github.com/fyrsmithlabs/finrag/internal/memory"
	"github.com/fyrsmithlabs/finrag/internal/retriever"
	"github.com/fyrsmithlabs/finrag/internal/secfilings"
	"github.com/fyrsmithlabs/finrag/internal/vectorstore"
)

// App holds the wired application components.
//
// Filings and Market are nil when their API credentials are not
// configured; the assistant degrades those data sources to inline
// unavailability notes.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Assistant *assistant.Assistant
	Memory    *memory.Memory
	Indexes   *index.Manager
	Filings   *secfilings.Client
	Market    *marketdata.Client
	Store     *vectorstore.Store
}

// New loads configuration and wires all components.
func New(configPath string) (*App, error) {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}

	embedSvc, err := embeddings.NewService(embeddings.Config{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
		APIKey:  cfg.Embeddings.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing embeddings: %w", err)
	}

	storePath, err := config.ExpandPath(cfg.VectorStore.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving vector store path: %w", err)
	}
	store, err := vectorstore.NewStore(vectorstore.Config{
		Path:     storePath,
		Compress: cfg.VectorStore.Compress,
	}, embedSvc, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing vector store: %w", err)
	}

	llmClient, err := llm.New(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing chat model client: %w", err)
	}

	memoryPath, err := config.ExpandPath(cfg.Memory.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving memory path: %w", err)
	}
	mem := memory.New(memoryPath, cfg.Memory.MaxHistory, logger)

	classifier := classify.NewClassifier(llmClient, logger)

	var (
		filings      *secfilings.Client
		indexes      *index.Manager
		secRetriever assistant.ContextRetriever
	)
	if cfg.SECAPI.APIKey != "" {
		filings, err = secfilings.NewClient(secfilings.Config{
			BaseURL:   cfg.SECAPI.BaseURL,
			APIKey:    cfg.SECAPI.APIKey,
			RateLimit: cfg.SECAPI.RateLimit,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing filings client: %w", err)
		}

		indexes = index.NewManager(store, filings, logger)
		extractor := compress.NewExtractor(llmClient, logger)
		secRetriever = retriever.New(indexes, store, extractor, llmClient, logger)
	} else {
		logger.Warn("secapi api_key not set, filing retrieval disabled")
	}

	var (
		market     *marketdata.Client
		marketData assistant.MarketData
	)
	if cfg.Alpaca.APIKey != "" && cfg.Alpaca.SecretKey != "" {
		market, err = marketdata.NewClient(marketdata.Config{
			APIKey:         cfg.Alpaca.APIKey,
			SecretKey:      cfg.Alpaca.SecretKey,
			TradingBaseURL: cfg.Alpaca.TradingBaseURL,
			DataBaseURL:    cfg.Alpaca.DataBaseURL,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("initializing market data client: %w", err)
		}
		marketData = market
	} else {
		logger.Warn("alpaca credentials not set, account and market data disabled")
	}

	asst := assistant.New(classifier, secRetriever, marketData, mem, llmClient, logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Assistant: asst,
		Memory:    mem,
		Indexes:   indexes,
		Filings:   filings,
		Market:    market,
		Store:     store,
	}, nil
}

// Close flushes the application's logger.
func (a *App) Close() {
	if a.Logger != nil {
		_ = logging.Sync(a.Logger)
	}
}
