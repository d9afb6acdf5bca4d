package vectorstore

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// Config holds configuration for the chromem-go embedded vector database.
type Config struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidConfig)
	}
	return nil
}

// Store is a persisted vector store backed by chromem-go, an embedded
// pure-Go vector database that persists collections to disk.
type Store struct {
	db       *chromem.DB
	embedder Embedder
	config   Config
	logger   *zap.Logger
}

// NewStore creates a Store persisting to cfg.Path.
func NewStore(cfg Config, embedder Embedder, logger *zap.Logger) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", cfg.Path, err)
	}

	db, err := chromem.NewPersistentDB(cfg.Path, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger.Info("vector store initialized",
		zap.String("path", cfg.Path),
		zap.Bool("compress", cfg.Compress),
	)

	return &Store{
		db:       db,
		embedder: embedder,
		config:   cfg,
		logger:   logger,
	}, nil
}

// embeddingFunc adapts the Embedder to chromem's query embedding hook.
func (s *Store) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// AddDocuments embeds and stores documents in the named collection,
// creating it if needed. Returns the stored document IDs.
func (s *Store) AddDocuments(ctx context.Context, collection string, docs []Document) ([]string, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyDocuments
	}

	col, err := s.db.GetOrCreateCollection(collection, nil, s.embeddingFunc())
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", collection, err)
	}

	texts := make([]string, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
		if ids[i] == "" {
			ids[i] = uuid.NewString()
		}
		texts[i] = doc.Content
	}

	// Embed in batch; chromem gets pre-computed vectors.
	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        ids[i],
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: vectors[i],
		}
	}

	// Concurrency of 1 since the embeddings already exist.
	if err := col.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return nil, fmt.Errorf("adding documents to %s: %w", collection, err)
	}

	s.logger.Debug("added documents to collection",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)

	return ids, nil
}

// Query performs a top-k similarity search in the named collection.
func (s *Store) Query(ctx context.Context, collection, query string, k int) ([]SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	col := s.db.GetCollection(collection, s.embeddingFunc())
	if col == nil {
		return nil, ErrCollectionNotFound
	}

	// chromem requires nResults <= document count.
	count := col.Count()
	if count == 0 {
		return []SearchResult{}, nil
	}
	if k > count {
		k = count
	}

	results, err := col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", collection, err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		}
	}

	s.logger.Debug("searched collection",
		zap.String("collection", collection),
		zap.Int("k", k),
		zap.Int("results", len(out)),
	)

	return out, nil
}

// CollectionExists reports whether the named collection has been persisted.
func (s *Store) CollectionExists(name string) bool {
	return s.db.GetCollection(name, s.embeddingFunc()) != nil
}

// ListCollections returns all persisted collection names.
func (s *Store) ListCollections() []string {
	collections := s.db.ListCollections()
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	return names
}

// DeleteCollection removes a collection and all its documents.
func (s *Store) DeleteCollection(name string) error {
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}
	s.logger.Info("deleted collection", zap.String("collection", name))
	return nil
}
