package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hwpark/chatbot/backend/internal/config"
	"github.com/hwpark/chatbot/backend/internal/model/chat"
)

func testAIConfig(baseURL string) config.AIConfig {
	return config.AIConfig{
		APIKey:         "test-key",
		Model:          "test-model",
		BaseURL:        baseURL,
		ConnectTimeout: time.Second,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   time.Second,
		MaxAttempts:    3,
		BackoffBase:    time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
	}
}

func newTestClient(baseURL string) *GeminiClient {
	return NewGeminiClient(testAIConfig(baseURL), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func answerBody(text string) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, text)
}

func TestGenerateSuccess(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		payload, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(payload, &gotBody)
		fmt.Fprint(w, answerBody("the answer"))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	history := []chat.Exchange{{Question: "q1", Answer: "a1"}}
	answer, err := client.Generate(context.Background(), "q2", history, "", "")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)

	assert.Equal(t, "/models/test-model:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Contents, 3)
	assert.Equal(t, "user", gotBody.Contents[0].Role)
	assert.Equal(t, "q1", gotBody.Contents[0].Parts[0].Text)
	assert.Equal(t, "model", gotBody.Contents[1].Role)
	assert.Equal(t, "a1", gotBody.Contents[1].Parts[0].Text)
	assert.Equal(t, "q2", gotBody.Contents[2].Parts[0].Text)
}

func TestGenerateUsesRequestedModelOverDefault(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, answerBody("ok"))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Generate(context.Background(), "q", nil, "", "other-model")
	require.NoError(t, err)
	assert.Equal(t, "/models/other-model:generateContent", gotPath)
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, answerBody("recovered"))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	answer, err := client.Generate(context.Background(), "q", nil, "", "")
	require.NoError(t, err)
	assert.Equal(t, "recovered", answer)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGenerateGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Generate(context.Background(), "q", nil, "", "")
	require.Error(t, err)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusInternalServerError, svcErr.StatusCode)
	assert.True(t, svcErr.Retryable)
	assert.EqualValues(t, 3, calls.Load())
}

func TestGenerateNeverRetriesClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Generate(context.Background(), "q", nil, "", "")
	require.Error(t, err)

	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)
	assert.False(t, svcErr.Retryable)
	assert.EqualValues(t, 1, calls.Load())
}

func TestGenerateEmptyCandidatesIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Generate(context.Background(), "q", nil, "", "")
	assert.Error(t, err)
}

func TestGenerateStreamDeliversDeltas(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: %s\n\n", `{"candidates":[{"content":{"parts":[{"text":"Hel"}]}}]}`)
		fmt.Fprintf(w, ": keep-alive\n\n")
		fmt.Fprintf(w, "data: %s\n\n", `{"candidates":[{"content":{"parts":[{"text":"lo"}]}}]}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	stream, err := client.GenerateStream(context.Background(), "q", nil, "", "")
	require.NoError(t, err)
	defer stream.Close()

	var deltas []string
	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		deltas = append(deltas, delta)
	}

	assert.Equal(t, []string{"Hel", "lo"}, deltas)
	assert.Equal(t, "/models/test-model:streamGenerateContent", gotPath)
	assert.Equal(t, "alt=sse", gotQuery)
}

func TestGenerateStreamSkipsMalformedChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "data: %s\n\n", `{"candidates":[{"content":{"parts":[{"text":"good"}]}}]}`)
		fmt.Fprintf(w, "data: {broken\n\n")
		fmt.Fprintf(w, "data: %s\n\n", `{"candidates":[{"content":{"parts":[{"text":"tail"}]}}]}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	stream, err := client.GenerateStream(context.Background(), "q", nil, "", "")
	require.NoError(t, err)
	defer stream.Close()

	var deltas []string
	for {
		delta, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		deltas = append(deltas, delta)
	}
	assert.Equal(t, []string{"good", "tail"}, deltas)
}

func TestGenerateStreamRetriesFailedOpen(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	stream, err := client.GenerateStream(context.Background(), "q", nil, "", "")
	require.NoError(t, err)
	defer stream.Close()

	delta, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "ok", delta)
	assert.EqualValues(t, 2, calls.Load())
}

func TestGenerateStreamDoesNotRetryRejectedOpen(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.GenerateStream(context.Background(), "q", nil, "", "")
	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}
