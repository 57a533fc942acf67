// Package api streams chat completions from an OpenAI-compatible endpoint.
package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/rs/zerolog"

	"github.com/diogo/chatstream/internal/config"
	"github.com/diogo/chatstream/internal/models"
)

// Request is one streaming call: the bearer key, the full outbound
// conversation and the sampling parameters
type Request struct {
	APIKey   string
	Messages []models.Message
	Params   models.GenerationParams
}

// TokenStream is a lazy, finite, non-restartable sequence of text increments.
// Next returns io.EOF once the endpoint signals the end of the stream.
type TokenStream interface {
	Next() (string, error)
	Close() error
}

// Client opens streaming completion calls
type Client interface {
	Stream(ctx context.Context, req Request) (TokenStream, error)
}

type clientOptions struct {
	baseURL    string
	timeout    time.Duration
	logger     zerolog.Logger
	httpClient tls_client.HttpClient
}

// ClientOption is a function that configures a client
type ClientOption func(*clientOptions)

// WithBaseURL sets the endpoint root, e.g. https://api.openai.com/v1
func WithBaseURL(baseURL string) ClientOption {
	return func(o *clientOptions) {
		o.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout bounds a whole request at the transport level. Zero disables it.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = timeout
	}
}

// WithLogger sets the logger for request lifecycle events
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithHTTPClient injects the tls-client used by the HTTP backend
func WithHTTPClient(httpClient tls_client.HttpClient) ClientOption {
	return func(o *clientOptions) {
		o.httpClient = httpClient
	}
}

func buildOptions(opts []ClientOption) clientOptions {
	o := clientOptions{
		baseURL: models.DefaultBaseURL,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewClient creates the backend selected by cfg.Backend.
// Extra options are applied after the ones derived from cfg.
func NewClient(cfg config.Config, opts ...ClientOption) (Client, error) {
	all := append([]ClientOption{
		WithBaseURL(cfg.BaseURL),
		WithTimeout(cfg.RequestTimeout()),
	}, opts...)

	switch cfg.Backend {
	case config.BackendHTTP, "":
		return NewHTTPClient(all...)
	case config.BackendSDK:
		return NewSDKClient(all...), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
