package api

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	apierrors "github.com/diogo/chatstream/internal/errors"
	"github.com/diogo/chatstream/internal/models"
)

// streamErrorPrefix is how the SDK reports an error object received mid-stream
const streamErrorPrefix = "received error while streaming: "

// SDKClient streams chat completions through the openai-go client
type SDKClient struct {
	client   openai.Client
	endpoint string
	logger   zerolog.Logger
}

// NewSDKClient creates a new SDKClient. The API key is supplied per request
// and never stored on the client.
func NewSDKClient(opts ...ClientOption) *SDKClient {
	o := buildOptions(opts)

	reqOpts := []option.RequestOption{
		option.WithBaseURL(o.baseURL + "/"),
		option.WithMaxRetries(0),
	}
	if o.timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(o.timeout))
	}

	return &SDKClient{
		client:   openai.NewClient(reqOpts...),
		endpoint: o.baseURL + models.EndpointChatCompletions,
		logger:   o.logger,
	}
}

func toSDKMessages(msgs []models.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case models.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func toSDKParams(req Request) openai.ChatCompletionNewParams {
	p := req.Params
	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.Model),
		Messages:    toSDKMessages(req.Messages),
		Temperature: openai.Float(p.Temperature),
	}
	if p.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.MaxTokens))
	}
	if p.TopP > 0 {
		params.TopP = openai.Float(p.TopP)
	}
	return params
}

// Stream opens a streaming completion call
func (c *SDKClient) Stream(ctx context.Context, req Request) (TokenStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("endpoint", c.endpoint).
		Str("model", req.Params.Model).
		Int("messages", len(req.Messages)).
		Msg("opening sdk stream")

	stream := c.client.Chat.Completions.NewStreaming(ctx, toSDKParams(req), option.WithAPIKey(req.APIKey))
	return &sdkStream{ctx: ctx, stream: stream, endpoint: c.endpoint}, nil
}

type sdkStream struct {
	ctx      context.Context
	stream   *ssestream.Stream[openai.ChatCompletionChunk]
	endpoint string
}

// Next returns the next non-empty increment
func (s *sdkStream) Next() (string, error) {
	for s.stream.Next() {
		if err := s.ctx.Err(); err != nil {
			return "", err
		}
		chunk := s.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		if text := chunk.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
	}
	if err := s.stream.Err(); err != nil {
		return "", s.mapError(err)
	}
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *sdkStream) Close() error {
	return s.stream.Close()
}

// mapError turns SDK failures into the errors package types
func (s *sdkStream) mapError(err error) error {
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var oe *openai.Error
	if errors.As(err, &oe) {
		raw := oe.RawJSON()
		apiErr := apierrors.NewAPIErrorWithBody(oe.StatusCode, s.endpoint, oe.Message, raw)
		apiErr.Type = oe.Type
		apiErr.Code = oe.Code
		if apiErr.Message == "" {
			apiErr.Message = gjson.Get(raw, "error.message").String()
		}
		if apiErr.Type == "" {
			apiErr.Type = gjson.Get(raw, "error.type").String()
		}
		if apiErr.Code == "" {
			apiErr.Code = gjson.Get(raw, "error.code").String()
		}
		return apiErr
	}

	if msg, ok := strings.CutPrefix(err.Error(), streamErrorPrefix); ok {
		e := gjson.Parse(msg)
		return &apierrors.APIError{
			Endpoint: s.endpoint,
			Message:  e.Get("message").String(),
			Type:     e.Get("type").String(),
			Code:     e.Get("code").String(),
			Body:     msg,
		}
	}

	return transportError("read stream", s.endpoint, err)
}
