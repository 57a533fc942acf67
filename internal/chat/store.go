// Package chat holds the conversation state and drives streaming exchanges.
package chat

import (
	"fmt"
	"strings"
	"sync"

	apierrors "github.com/diogo/chatstream/internal/errors"
	"github.com/diogo/chatstream/internal/models"
)

// Store is the single source of truth for the conversation.
// All mutation goes through its methods; it is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	turns      []models.Turn
	isLoading  bool
	credential string
	lastError  string
	keyPrefix  string

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// NewStore creates an empty store. keyPrefix is the literal prefix every
// API key must start with; empty disables the prefix check.
func NewStore(keyPrefix string) *Store {
	return &Store{
		keyPrefix: keyPrefix,
		subs:      make(map[int]chan struct{}),
	}
}

// AppendUserTurn appends a user turn, clears the last error and marks the
// store as loading. It requires non-empty text and a held credential.
func (s *Store) AppendUserTurn(text string) error {
	if strings.TrimSpace(text) == "" {
		return apierrors.NewValidationError("prompt", apierrors.ErrEmptyPrompt.Error(), apierrors.ErrEmptyPrompt)
	}

	s.mu.Lock()
	if s.credential == "" {
		s.mu.Unlock()
		return apierrors.NewValidationError("api_key", apierrors.ErrCredentialRequired.Error(), apierrors.ErrCredentialRequired)
	}
	s.turns = append(s.turns, models.Turn{Role: models.RoleUser, Content: text})
	s.lastError = ""
	s.isLoading = true
	s.mu.Unlock()

	s.notify()
	return nil
}

// AppendAssistantPlaceholder appends an empty assistant turn to stream into
func (s *Store) AppendAssistantPlaceholder() {
	s.mu.Lock()
	s.turns = append(s.turns, models.Turn{Role: models.RoleAssistant})
	s.mu.Unlock()

	s.notify()
}

// ExtendLastAssistantTurn appends increment to the trailing assistant turn.
// It does nothing when the last turn is not an assistant turn.
func (s *Store) ExtendLastAssistantTurn(increment string) {
	s.mu.Lock()
	n := len(s.turns)
	if n == 0 || s.turns[n-1].Role != models.RoleAssistant {
		s.mu.Unlock()
		return
	}
	s.turns[n-1].Content += increment
	s.mu.Unlock()

	s.notify()
}

// CompleteRequest marks the current exchange as finished
func (s *Store) CompleteRequest() {
	s.mu.Lock()
	s.isLoading = false
	s.mu.Unlock()

	s.notify()
}

// AbortLastExchange removes the turns of a cancelled exchange and clears the
// loading flag. The placeholder may not exist yet if the cancel came early.
func (s *Store) AbortLastExchange() {
	s.mu.Lock()
	if n := len(s.turns); n > 0 && s.turns[n-1].Role == models.RoleAssistant {
		s.turns = s.turns[:n-1]
	}
	if n := len(s.turns); n > 0 && s.turns[n-1].Role == models.RoleUser {
		s.turns = s.turns[:n-1]
	}
	s.isLoading = false
	s.mu.Unlock()

	s.notify()
}

// dropEmptyPlaceholder removes a trailing assistant turn that never received text
func (s *Store) dropEmptyPlaceholder() {
	s.mu.Lock()
	n := len(s.turns)
	if n == 0 || s.turns[n-1].Role != models.RoleAssistant || s.turns[n-1].Content != "" {
		s.mu.Unlock()
		return
	}
	s.turns = s.turns[:n-1]
	s.mu.Unlock()

	s.notify()
}

// SetError appends an error turn and ends the exchange
func (s *Store) SetError(message string) {
	s.mu.Lock()
	s.turns = append(s.turns, models.Turn{Role: models.RoleError, Content: "Error: " + message})
	s.lastError = message
	s.isLoading = false
	s.mu.Unlock()

	s.notify()
}

// SetCredential validates and stores the API key. On failure the held key
// is left untouched and only the last error changes.
func (s *Store) SetCredential(text string) error {
	key := strings.TrimSpace(text)

	var verr *apierrors.ValidationError
	switch {
	case key == "":
		verr = apierrors.NewValidationError("api_key", apierrors.ErrCredentialRequired.Error(), apierrors.ErrCredentialRequired)
	case s.keyPrefix != "" && !strings.HasPrefix(key, s.keyPrefix):
		verr = apierrors.NewValidationError("api_key",
			fmt.Sprintf("API key must start with %q", s.keyPrefix), apierrors.ErrCredentialFormat)
	}

	s.mu.Lock()
	if verr != nil {
		s.lastError = verr.Message
	} else {
		s.credential = key
		s.lastError = ""
	}
	s.mu.Unlock()

	s.notify()
	if verr != nil {
		return verr
	}
	return nil
}

// ClearCredential forgets the API key
func (s *Store) ClearCredential() {
	s.mu.Lock()
	s.credential = ""
	s.mu.Unlock()

	s.notify()
}

// Reset drops every turn and the last error. The credential is kept.
func (s *Store) Reset() {
	s.mu.Lock()
	s.turns = nil
	s.lastError = ""
	s.isLoading = false
	s.mu.Unlock()

	s.notify()
}

// Credential returns the held API key
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// HasCredential reports whether an API key is held
func (s *Store) HasCredential() bool {
	return s.Credential() != ""
}

// IsLoading reports whether an exchange is running
func (s *Store) IsLoading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isLoading
}

// Turns returns a copy of the conversation turns
func (s *Store) Turns() []models.Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Snapshot returns a copy of the state for rendering
func (s *Store) Snapshot() models.ConversationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	turns := make([]models.Turn, len(s.turns))
	copy(turns, s.turns)
	return models.ConversationState{
		Turns:         turns,
		IsLoading:     s.isLoading,
		HasCredential: s.credential != "",
		LastError:     s.lastError,
	}
}

// Subscribe returns a channel that receives a value after state changes.
// Notifications coalesce, so readers should take a fresh Snapshot each time.
// The returned func unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
