package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/chatstream/internal/errors"
	"github.com/diogo/chatstream/internal/models"
)

// maxErrorBody caps how much of a failed response is kept for diagnostics
const maxErrorBody = 4096

// HTTPClient streams chat completions as server-sent events over tls-client
type HTTPClient struct {
	httpClient tls_client.HttpClient
	baseURL    string
	logger     zerolog.Logger
}

// NewHTTPClient creates a new HTTPClient
func NewHTTPClient(opts ...ClientOption) (*HTTPClient, error) {
	o := buildOptions(opts)

	httpClient := o.httpClient
	if httpClient == nil {
		options := []tls_client.HttpClientOption{
			tls_client.WithTimeoutSeconds(int(o.timeout.Seconds())),
			tls_client.WithClientProfile(profiles.Chrome_120),
			tls_client.WithNotFollowRedirects(),
		}

		var err error
		httpClient, err = tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
	}

	return &HTTPClient{
		httpClient: httpClient,
		baseURL:    o.baseURL,
		logger:     o.logger,
	}, nil
}

// chatRequest is the wire body of a streaming chat completion call
type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []models.Message `json:"messages"`
	Stream      bool             `json:"stream"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	TopP        *float64         `json:"top_p,omitempty"`
}

func newChatRequest(req Request) chatRequest {
	p := req.Params
	body := chatRequest{
		Model:     p.Model,
		Messages:  req.Messages,
		Stream:    true,
		MaxTokens: p.MaxTokens,
	}
	temperature := p.Temperature
	body.Temperature = &temperature
	if p.TopP > 0 {
		topP := p.TopP
		body.TopP = &topP
	}
	return body
}

// Stream opens a streaming completion call
func (c *HTTPClient) Stream(ctx context.Context, req Request) (TokenStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	endpoint := c.baseURL + models.EndpointChatCompletions

	payload, err := json.Marshal(newChatRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to build payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("model", req.Params.Model).
		Int("messages", len(req.Messages)).
		Msg("opening stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, transportError("stream", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() {
			_ = resp.Body.Close()
		}()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := parseErrorBody(resp.StatusCode, endpoint, body)
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("type", apiErr.Type).
			Str("code", apiErr.Code).
			Msg("endpoint rejected request")
		return nil, apiErr
	}

	return newSSEStream(ctx, resp.Body, endpoint), nil
}

// transportError classifies a failure below the HTTP layer
func transportError(operation, endpoint string, err error) error {
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return apierrors.NewTimeoutError(err.Error())
	}
	return apierrors.NewNetworkErrorWithEndpoint(operation, endpoint, err)
}

// parseErrorBody extracts {error:{message,type,code}} from a failed response
func parseErrorBody(status int, endpoint string, body []byte) *apierrors.APIError {
	apiErr := apierrors.NewAPIErrorWithBody(status, endpoint, "", string(body))
	if gjson.ValidBytes(body) {
		e := gjson.GetBytes(body, "error")
		apiErr.Message = e.Get("message").String()
		apiErr.Type = e.Get("type").String()
		apiErr.Code = e.Get("code").String()
	}
	return apiErr
}

// parseChunk returns the text carried by one streamed chunk.
// An error object inside the stream is returned as an APIError.
func parseChunk(data []byte, endpoint string) (string, error) {
	if !gjson.ValidBytes(data) {
		return "", apierrors.NewParseError(fmt.Sprintf("invalid chunk: %.80s", data), "")
	}

	if e := gjson.GetBytes(data, "error"); e.Exists() && e.Type != gjson.Null {
		return "", &apierrors.APIError{
			Endpoint: endpoint,
			Message:  e.Get("message").String(),
			Type:     e.Get("type").String(),
			Code:     e.Get("code").String(),
			Body:     string(data),
		}
	}

	return gjson.GetBytes(data, "choices.0.delta.content").String(), nil
}

// sseStream reads increments from an event-stream response body
type sseStream struct {
	ctx      context.Context
	body     io.ReadCloser
	dec      *sseDecoder
	endpoint string
	stop     func() bool
	done     bool
	once     sync.Once
}

func newSSEStream(ctx context.Context, body io.ReadCloser, endpoint string) *sseStream {
	s := &sseStream{
		ctx:      ctx,
		body:     body,
		dec:      newSSEDecoder(body),
		endpoint: endpoint,
	}
	// Unblock a pending read as soon as the exchange is cancelled
	s.stop = context.AfterFunc(ctx, func() {
		_ = s.closeBody()
	})
	return s
}

// Next returns the next non-empty increment
func (s *sseStream) Next() (string, error) {
	for {
		if s.done {
			return "", io.EOF
		}
		if err := s.ctx.Err(); err != nil {
			return "", err
		}

		data, err := s.dec.Next()
		if err != nil {
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			if errors.Is(err, io.EOF) {
				s.done = true
				return "", io.EOF
			}
			return "", transportError("read stream", s.endpoint, err)
		}

		if isDone(data) {
			s.done = true
			return "", io.EOF
		}

		text, err := parseChunk(data, s.endpoint)
		if err != nil {
			s.done = true
			return "", err
		}
		// role-only and finish chunks carry no text
		if text == "" {
			continue
		}
		return text, nil
	}
}

// Close releases the response body. Safe to call more than once.
func (s *sseStream) Close() error {
	s.stop()
	return s.closeBody()
}

func (s *sseStream) closeBody() error {
	var err error
	s.once.Do(func() {
		err = s.body.Close()
	})
	return err
}
