package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/finrag/internal/llm"
)

// stubAssistant streams its answer word by word.
type stubAssistant struct {
	answer string
}

func (s *stubAssistant) AnswerStream(ctx context.Context, query string, fn llm.TokenFunc) string {
	for _, tok := range strings.SplitAfter(s.answer, " ") {
		if err := fn(tok); err != nil {
			return s.answer
		}
	}
	return s.answer
}

// finalOnlyAssistant never streams tokens, only returns a final answer.
type finalOnlyAssistant struct {
	answer string
}

func (s *finalOnlyAssistant) AnswerStream(ctx context.Context, query string, fn llm.TokenFunc) string {
	return s.answer
}

func newTestServer(t *testing.T, assistant Answerer) *Server {
	t.Helper()
	srv, err := NewServer(assistant, zap.NewNop(), nil)
	require.NoError(t, err)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubAssistant{answer: "hi"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubAssistant{answer: "hi"})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestQueryStreamsAnswer(t *testing.T) {
	srv := newTestServer(t, &stubAssistant{answer: "Apple reported strong revenue."})

	req := httptest.NewRequest(http.MethodPost, "/query",
		strings.NewReader(`{"query": "How did Apple do?"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Apple reported strong revenue.", rec.Body.String())
}

func TestQueryNonStreamedAnswerStillDelivered(t *testing.T) {
	srv := newTestServer(t, &finalOnlyAssistant{answer: "I apologize, something failed."})

	req := httptest.NewRequest(http.MethodPost, "/query",
		strings.NewReader(`{"query": "anything"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "I apologize, something failed.", rec.Body.String())
}

func TestQueryRejectsEmptyQuery(t *testing.T) {
	srv := newTestServer(t, &stubAssistant{answer: "hi"})

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query": ""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueryRejectsInvalidBody(t *testing.T) {
	srv := newTestServer(t, &stubAssistant{answer: "hi"})

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{not json`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
