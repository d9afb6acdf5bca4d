// Package vectorstore provides the persisted semantic index for filing text.
//
// Each indexed filing lives in its own chromem-go collection, persisted
// under the configured directory. The existence of a collection is the
// sole "already built" signal: once built for a (ticker, year) key, an
// index is reused and never rebuilt absent explicit deletion.
package vectorstore

import (
	"context"
	"errors"
)

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrCollectionNotFound indicates the collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrEmbeddingFailed indicates embedding generation failed.
	ErrEmbeddingFailed = errors.New("embedding generation failed")
)

// Document is a text chunk with its metadata, ready to be embedded.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// SearchResult is a similarity search hit.
type SearchResult struct {
	ID       string
	Content  string
	Score    float32
	Metadata map[string]string
}

// Embedder generates embedding vectors for text.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}
