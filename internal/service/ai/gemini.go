package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hwpark/chatbot/backend/internal/config"
	"github.com/hwpark/chatbot/backend/internal/model/chat"
)

const ragPromptHeader = "The following information was retrieved from related documents. " +
	"Use it to answer the user's question; fall back to general knowledge when the context does not cover the question.\n\n[Retrieved context]\n"

const ragAcknowledgement = "Understood. I will answer based on the provided context."

// GeminiClient talks to the Gemini REST API. Both call paths share the
// retry policy: up to MaxAttempts attempts with exponential backoff, only
// for connectivity failures and 5xx responses.
type GeminiClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	defaultModel string
	writeTimeout time.Duration
	readTimeout  time.Duration
	maxAttempts  int
	backoffBase  time.Duration
	backoffMax   time.Duration
	logger       *slog.Logger
}

// NewGeminiClient builds a client from configuration. Connect and read
// timeouts apply at the transport level so streaming responses are not cut
// off mid-generation.
func NewGeminiClient(cfg config.AIConfig, logger *slog.Logger) *GeminiClient {
	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.ReadTimeout,
	}
	return &GeminiClient{
		httpClient:   &http.Client{Transport: transport},
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		defaultModel: cfg.Model,
		writeTimeout: cfg.WriteTimeout,
		readTimeout:  cfg.ReadTimeout,
		maxAttempts:  cfg.MaxAttempts,
		backoffBase:  cfg.BackoffBase,
		backoffMax:   cfg.BackoffMax,
		logger:       logger,
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate performs the single-shot call and returns the complete answer.
func (c *GeminiClient) Generate(ctx context.Context, question string, history []chat.Exchange, ragContext, model string) (string, error) {
	body, err := json.Marshal(generateRequest{Contents: buildContents(question, history, ragContext)})
	if err != nil {
		return "", fmt.Errorf("ai: marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.resolveModel(model)))

	var answer string
	err = c.withRetry(ctx, "generateContent", func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.writeTimeout+c.readTimeout)
		defer cancel()

		resp, err := c.do(callCtx, endpoint, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return &ServiceError{Retryable: true, Err: err}
		}
		if resp.StatusCode != http.StatusOK {
			return statusError(resp.StatusCode, payload)
		}

		var parsed generateResponse
		if err := json.Unmarshal(payload, &parsed); err != nil {
			return &ServiceError{Err: fmt.Errorf("decode response: %w", err)}
		}
		if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
			return &ServiceError{Err: errors.New("response carried no candidates")}
		}
		answer = parsed.Candidates[0].Content.Parts[0].Text
		return nil
	})
	if err != nil {
		return "", err
	}
	return answer, nil
}

// GenerateStream opens the streaming call and returns a stream of text
// deltas. The retry policy covers establishing the stream; once deltas
// begin flowing, a mid-stream failure terminates the stream instead of
// restarting it.
func (c *GeminiClient) GenerateStream(ctx context.Context, question string, history []chat.Exchange, ragContext, model string) (ChunkStream, error) {
	body, err := json.Marshal(generateRequest{Contents: buildContents(question, history, ragContext)})
	if err != nil {
		return nil, fmt.Errorf("ai: marshal request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", c.baseURL, url.PathEscape(c.resolveModel(model)))

	var stream ChunkStream
	err = c.withRetry(ctx, "streamGenerateContent", func(ctx context.Context) error {
		resp, err := c.do(ctx, endpoint, body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			payload, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return statusError(resp.StatusCode, payload)
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		stream = &sseStream{body: resp.Body, scanner: scanner, logger: c.logger}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func (c *GeminiClient) resolveModel(model string) string {
	if model != "" {
		return model
	}
	return c.defaultModel
}

func (c *GeminiClient) do(ctx context.Context, endpoint string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ai: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Retryable: true, Err: err}
	}
	return resp, nil
}

// withRetry runs fn up to maxAttempts times, backing off exponentially
// between attempts. Non-retryable failures abort immediately.
func (c *GeminiClient) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	backoff := c.backoffBase
	var err error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}

		var svcErr *ServiceError
		if !errors.As(err, &svcErr) || !svcErr.Retryable {
			return err
		}
		if attempt == c.maxAttempts {
			break
		}

		c.logger.Warn("upstream call failed, retrying",
			"op", op, "attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > c.backoffMax {
			backoff = c.backoffMax
		}
	}
	return err
}

func statusError(code int, body []byte) *ServiceError {
	return &ServiceError{
		StatusCode: code,
		Retryable:  code >= http.StatusInternalServerError,
		Err:        errors.New(strings.TrimSpace(string(body))),
	}
}

// buildContents converts the optional RAG context, the conversation history
// and the new question into the provider's alternating-turn format.
func buildContents(question string, history []chat.Exchange, ragContext string) []content {
	contents := make([]content, 0, 2*len(history)+3)
	if strings.TrimSpace(ragContext) != "" {
		contents = append(contents,
			content{Role: "user", Parts: []part{{Text: ragPromptHeader + ragContext}}},
			content{Role: "model", Parts: []part{{Text: ragAcknowledgement}}},
		)
	}
	for _, exchange := range history {
		contents = append(contents,
			content{Role: "user", Parts: []part{{Text: exchange.Question}}},
			content{Role: "model", Parts: []part{{Text: exchange.Answer}}},
		)
	}
	return append(contents, content{Role: "user", Parts: []part{{Text: question}}})
}

// sseStream reads text deltas off the response body line by line. Lines
// that fail to decode are skipped so a malformed chunk cannot kill an
// otherwise healthy stream.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  *slog.Logger
}

func (s *sseStream) Recv() (string, error) {
	for s.scanner.Scan() {
		delta, err := decodeChunk(s.scanner.Bytes())
		switch {
		case errors.Is(err, errNoData):
			continue
		case errors.Is(err, errMalformedChunk):
			s.logger.Warn("skipping malformed upstream chunk")
			continue
		}
		if delta == "" {
			continue
		}
		return delta, nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
