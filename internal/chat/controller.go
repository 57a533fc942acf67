package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/diogo/chatstream/internal/api"
	apierrors "github.com/diogo/chatstream/internal/errors"
	"github.com/diogo/chatstream/internal/models"
)

// Controller owns at most one in-flight exchange and applies its stream to
// the store
type Controller struct {
	store  *Store
	client api.Client

	params       models.GenerationParams
	systemPrompt string
	remapErrors  bool
	logger       zerolog.Logger

	// submitMu serializes Submit so that a superseded exchange has fully
	// settled before the next one touches the store
	submitMu sync.Mutex

	mu      sync.Mutex
	current *Exchange
}

// ControllerOption is a function that configures the controller
type ControllerOption func(*Controller)

// WithGenerationParams sets the sampling parameters sent with every request
func WithGenerationParams(params models.GenerationParams) ControllerOption {
	return func(c *Controller) {
		c.params = params
	}
}

// WithSystemPrompt prepends a system message to every request
func WithSystemPrompt(prompt string) ControllerOption {
	return func(c *Controller) {
		c.systemPrompt = prompt
	}
}

// WithErrorTurnRemap controls whether error turns are sent back as
// assistant messages
func WithErrorTurnRemap(enabled bool) ControllerOption {
	return func(c *Controller) {
		c.remapErrors = enabled
	}
}

// WithLogger sets the logger for exchange lifecycle events
func WithLogger(logger zerolog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a new Controller
func NewController(store *Store, client api.Client, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:       store,
		client:      client,
		params:      models.DefaultGenerationParams(),
		remapErrors: true,
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the store the controller writes to
func (c *Controller) Store() *Store {
	return c.store
}

// Params returns the generation parameters in use
func (c *Controller) Params() models.GenerationParams {
	return c.params
}

// Submit starts a new exchange for text. A running exchange is cancelled
// and allowed to settle first. Validation failures return a
// *errors.ValidationError without touching the store or the network.
func (c *Controller) Submit(ctx context.Context, text string) (*Exchange, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apierrors.NewValidationError("prompt", apierrors.ErrEmptyPrompt.Error(), apierrors.ErrEmptyPrompt)
	}
	key := c.store.Credential()
	if key == "" {
		return nil, apierrors.NewValidationError("api_key", apierrors.ErrCredentialRequired.Error(), apierrors.ErrCredentialRequired)
	}

	c.submitMu.Lock()
	defer c.submitMu.Unlock()

	if prev := c.active(); prev != nil {
		c.logger.Debug().Str("exchange_id", prev.ID).Msg("superseding exchange")
		prev.cancel()
		<-prev.done
	}

	messages := BuildMessages(c.store.Turns(), text, c.systemPrompt, c.remapErrors)
	if err := c.store.AppendUserTurn(text); err != nil {
		return nil, err
	}

	exCtx, cancel := context.WithCancel(ctx)
	ex := newExchange(text, cancel)

	c.mu.Lock()
	c.current = ex
	c.mu.Unlock()

	c.logger.Info().
		Str("exchange_id", ex.ID).
		Str("model", c.params.Model).
		Int("messages", len(messages)).
		Msg("exchange started")

	go c.run(exCtx, ex, api.Request{
		APIKey:   key,
		Messages: messages,
		Params:   c.params,
	})

	return ex, nil
}

// Cancel cancels the in-flight exchange. It returns false when nothing is
// running. The store is unwound by the exchange goroutine.
func (c *Controller) Cancel() bool {
	ex := c.active()
	if ex == nil {
		return false
	}
	ex.cancel()
	return true
}

// Wait blocks until the latest exchange has settled
func (c *Controller) Wait() {
	c.mu.Lock()
	ex := c.current
	c.mu.Unlock()
	if ex != nil {
		<-ex.done
	}
}

// InFlight reports whether an exchange is sending or streaming
func (c *Controller) InFlight() bool {
	return c.active() != nil
}

// State returns the state of the in-flight exchange, or idle
func (c *Controller) State() models.ExchangeState {
	if ex := c.active(); ex != nil {
		return ex.State()
	}
	return models.ExchangeIdle
}

func (c *Controller) active() *Exchange {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil || c.current.State().Terminal() {
		return nil
	}
	return c.current
}

func (c *Controller) run(ctx context.Context, ex *Exchange, req api.Request) {
	defer ex.cancel()

	stream, err := c.client.Stream(ctx, req)
	if err != nil {
		c.settle(ctx, ex, err)
		return
	}

	c.store.AppendAssistantPlaceholder()
	ex.setState(models.ExchangeStreaming)

	err = c.consume(ctx, ex, stream)
	if cerr := stream.Close(); cerr != nil {
		c.logger.Debug().Err(cerr).Str("exchange_id", ex.ID).Msg("closing stream")
	}
	c.settle(ctx, ex, err)
}

// consume applies increments in order until the stream ends, fails or the
// exchange is cancelled. It returns nil on a clean end of stream.
func (c *Controller) consume(ctx context.Context, ex *Exchange, stream api.TokenStream) error {
	for {
		text, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return apierrors.ErrCancelled
		}
		c.store.ExtendLastAssistantTurn(text)
		ex.addReceived(len(text))
	}
}

// settle moves the exchange to its terminal state and updates the store
func (c *Controller) settle(ctx context.Context, ex *Exchange, err error) {
	log := c.logger.With().
		Str("exchange_id", ex.ID).
		Int("bytes", ex.Received()).
		Dur("duration", time.Since(ex.Started)).
		Logger()

	switch {
	// A cancel that lands after EOF but before this point still wins and
	// unwinds the finished reply.
	case errors.Is(ctx.Err(), context.Canceled) || apierrors.IsCancellation(err):
		c.store.AbortLastExchange()
		ex.finish(models.ExchangeCancelled, apierrors.ErrCancelled)
		log.Info().Str("state", models.ExchangeCancelled.String()).Msg("exchange settled")

	case err != nil:
		msg := apierrors.HumanMessage(err)
		c.store.dropEmptyPlaceholder()
		c.store.SetError(msg)
		ex.finish(models.ExchangeFailed, err)
		log.Warn().Err(err).
			Str("state", models.ExchangeFailed.String()).
			Int("status", apierrors.GetHTTPStatus(err)).
			Msg("exchange settled")

	default:
		c.store.CompleteRequest()
		ex.finish(models.ExchangeCompleted, nil)
		log.Info().Str("state", models.ExchangeCompleted.String()).Msg("exchange settled")
	}
}
