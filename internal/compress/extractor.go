// Package compress filters retrieved passages down to the parts
// relevant to a query, using the chat model as an extractor.
package compress

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finrag/internal/llm"
)

// noOutput is the sentinel the model emits for an irrelevant passage.
const noOutput = "NO_OUTPUT"

const extractPrompt = `Given the following question and context, extract any part of the context AS IS that is relevant to answer the question. If none of the context is relevant return %s.

Remember, DO NOT edit the extracted parts of the context.

> Question: %s
> Context:
>>>
%s
>>>
Extracted relevant parts:`

// Extractor compresses passages against a query.
type Extractor struct {
	llm    llm.Client
	logger *zap.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(client llm.Client, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{llm: client, logger: logger}
}

// Extract returns the query-relevant parts of each passage, in order.
// Irrelevant passages are dropped. If extraction fails for a passage,
// the original passage is kept so retrieval never loses information to
// a transient model error.
func (e *Extractor) Extract(ctx context.Context, query string, passages []string) []string {
	var out []string
	for i, passage := range passages {
		extracted, err := e.llm.Complete(ctx, fmt.Sprintf(extractPrompt, noOutput, query, passage))
		if err != nil {
			e.logger.Warn("passage extraction failed, keeping original",
				zap.Int("passage", i), zap.Error(err))
			out = append(out, passage)
			continue
		}

		extracted = strings.TrimSpace(extracted)
		if extracted == "" || strings.Contains(extracted, noOutput) {
			continue
		}
		out = append(out, extracted)
	}
	return out
}
