// Package config provides configuration loading for finrag.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/finrag/internal/logging"
)

// Config is the root configuration, constructed once at process start
// and passed into each component constructor.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Logging     logging.Config    `koanf:"logging"`
	LLM         LLMConfig         `koanf:"llm"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	SECAPI      SECAPIConfig      `koanf:"secapi"`
	Alpaca      AlpacaConfig      `koanf:"alpaca"`
	Memory      MemoryConfig      `koanf:"memory"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LLMConfig holds the chat model configuration.
// Any OpenAI-compatible endpoint works (OpenAI, DeepSeek, vLLM, ...).
type LLMConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
}

// EmbeddingsConfig holds the embedding service configuration.
type EmbeddingsConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
}

// VectorStoreConfig holds the embedded vector database configuration.
type VectorStoreConfig struct {
	// Path is the directory for persisted filing indices.
	Path string `koanf:"path"`
	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`
}

// SECAPIConfig holds the SEC filings API configuration.
type SECAPIConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	// RateLimit is the request rate toward the filings API, in requests per second.
	RateLimit float64 `koanf:"rate_limit"`
}

// AlpacaConfig holds the brokerage/market-data API configuration.
type AlpacaConfig struct {
	APIKey         string `koanf:"api_key"`
	SecretKey      string `koanf:"secret_key"`
	TradingBaseURL string `koanf:"trading_base_url"`
	DataBaseURL    string `koanf:"data_base_url"`
}

// MemoryConfig holds conversation memory configuration.
type MemoryConfig struct {
	// Path is the JSON file the conversation history persists to.
	// Empty disables persistence.
	Path string `koanf:"path"`
	// MaxHistory bounds the number of retained conversation turns.
	MaxHistory int `koanf:"max_history"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be 1-65535, got %d", c.Server.Port)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.Embeddings.Model == "" {
		return fmt.Errorf("embeddings model is required")
	}
	if c.VectorStore.Path == "" {
		return fmt.Errorf("vectorstore path is required")
	}
	if c.Memory.MaxHistory <= 0 {
		return fmt.Errorf("memory max_history must be positive, got %d", c.Memory.MaxHistory)
	}
	if c.SECAPI.RateLimit <= 0 {
		return fmt.Errorf("secapi rate_limit must be positive, got %f", c.SECAPI.RateLimit)
	}
	return nil
}
