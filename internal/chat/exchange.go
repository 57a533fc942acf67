package chat

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diogo/chatstream/internal/models"
)

// Exchange is one submission through to its terminal outcome.
// Each exchange owns a fresh cancellation context that is never reused.
type Exchange struct {
	ID      string
	Prompt  string
	Started time.Time

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.RWMutex
	state    models.ExchangeState
	err      error
	received int
}

func newExchange(prompt string, cancel context.CancelFunc) *Exchange {
	return &Exchange{
		ID:      uuid.NewString(),
		Prompt:  prompt,
		Started: time.Now(),
		cancel:  cancel,
		done:    make(chan struct{}),
		state:   models.ExchangeSending,
	}
}

// Done is closed once the exchange has settled and the store reflects it
func (e *Exchange) Done() <-chan struct{} {
	return e.done
}

// State returns the current state
func (e *Exchange) State() models.ExchangeState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Err returns nil for a completed exchange, errors.ErrCancelled for a
// cancelled one and the transport or endpoint error for a failed one.
func (e *Exchange) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

// Received returns the number of bytes streamed so far
func (e *Exchange) Received() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.received
}

func (e *Exchange) setState(state models.ExchangeState) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

func (e *Exchange) addReceived(n int) {
	e.mu.Lock()
	e.received += n
	e.mu.Unlock()
}

func (e *Exchange) finish(state models.ExchangeState, err error) {
	e.mu.Lock()
	e.state = state
	e.err = err
	e.mu.Unlock()
	close(e.done)
}
