package external

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-med-guard-server/internal/domain"
)

func testConfig(baseURL string) domain.TextGenConfig {
	return domain.TextGenConfig{
		BaseURL:         baseURL,
		APIKey:          "test-key",
		Model:           "text-model-1",
		Temperature:     0.4,
		MaxOutputTokens: 512,
		Timeout:         5 * time.Second,
		RateLimit:       100,
	}
}

func candidateResponse(text string) string {
	return `{"candidates":[{"content":{"parts":[{"text":` + mustJSON(text) + `}]}}]}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestGenerate_Success(t *testing.T) {
	var gotBody generateRequest
	var gotKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(candidateResponse("SUMMARY: all good")))
	}))
	defer server.Close()

	client := NewTextGenClient(testConfig(server.URL))

	text, err := client.Generate(context.Background(), "analyze this")
	require.NoError(t, err)

	assert.Equal(t, "SUMMARY: all good", text)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "analyze this", gotBody.Contents[0].Parts[0].Text)
	assert.Equal(t, 0.4, gotBody.GenerationConfig.Temperature)
	assert.Equal(t, 512, gotBody.GenerationConfig.MaxOutputTokens)
}

func TestGenerate_StructuredModeRequestsJSON(t *testing.T) {
	var gotBody generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(candidateResponse(`{"summary":"ok"}`)))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.StructuredMode = true
	client := NewTextGenClient(cfg)

	_, err := client.Generate(context.Background(), "analyze")
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotBody.GenerationConfig.ResponseMimeType)
}

func TestGenerate_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
	}))
	defer server.Close()

	client := NewTextGenClient(testConfig(server.URL))

	_, err := client.Generate(context.Background(), "analyze")
	require.Error(t, err)

	var invalid *domain.InvalidResponseError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, http.StatusTooManyRequests, invalid.StatusCode)
	assert.Contains(t, invalid.Message, "quota exceeded")
}

func TestGenerate_BodyPreviewTruncated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(strings.Repeat("e", 5000)))
	}))
	defer server.Close()

	client := NewTextGenClient(testConfig(server.URL))

	_, err := client.Generate(context.Background(), "analyze")

	var invalid *domain.InvalidResponseError
	require.ErrorAs(t, err, &invalid)
	assert.Len(t, invalid.Message, 300)
}

func TestGenerate_MalformedJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer server.Close()

	client := NewTextGenClient(testConfig(server.URL))

	_, err := client.Generate(context.Background(), "analyze")

	var invalid *domain.InvalidResponseError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, http.StatusOK, invalid.StatusCode)
}

func TestGenerate_EmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	client := NewTextGenClient(testConfig(server.URL))

	_, err := client.Generate(context.Background(), "analyze")

	var invalid *domain.InvalidResponseError
	assert.ErrorAs(t, err, &invalid)
}

func TestGenerate_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := NewTextGenClient(testConfig(server.URL))

	_, err := client.Generate(context.Background(), "analyze")
	require.Error(t, err)

	var tf *domain.TransportFailureError
	assert.ErrorAs(t, err, &tf)
}

func TestGenerate_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(candidateResponse("late")))
	}))
	defer server.Close()

	client := NewTextGenClient(testConfig(server.URL))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.Generate(ctx, "analyze")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestResilientTextClient_PassThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidateResponse("ok")))
	}))
	defer server.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	client := NewResilientTextClient(NewTextGenClient(testConfig(server.URL)), logger)

	text, err := client.Generate(context.Background(), "analyze")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
}

func TestResilientTextClient_OpensAfterConsecutiveFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	client := NewResilientTextClient(NewTextGenClient(testConfig(server.URL)), logger)

	for i := 0; i < 5; i++ {
		_, err := client.Generate(context.Background(), "analyze")
		require.Error(t, err)
	}

	// The breaker is now open; the next call fails without reaching the
	// server.
	_, err := client.Generate(context.Background(), "analyze")
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}
