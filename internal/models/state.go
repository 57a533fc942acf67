package models

// ConversationState is a point-in-time copy of the conversation used for rendering.
// The credential itself is never exposed, only whether one is held.
type ConversationState struct {
	Turns         []Turn
	IsLoading     bool
	HasCredential bool
	LastError     string
}

// LastTurn returns the trailing turn, or nil when the conversation is empty
func (s ConversationState) LastTurn() *Turn {
	if len(s.Turns) == 0 {
		return nil
	}
	return &s.Turns[len(s.Turns)-1]
}

// LastAssistantText returns the content of the most recent assistant turn
func (s ConversationState) LastAssistantText() string {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Role == RoleAssistant {
			return s.Turns[i].Content
		}
	}
	return ""
}

// ExchangeState tracks one submission from send to its terminal outcome
type ExchangeState int

const (
	ExchangeIdle ExchangeState = iota
	ExchangeSending
	ExchangeStreaming
	ExchangeCompleted
	ExchangeCancelled
	ExchangeFailed
)

// String returns a human-readable state name
func (s ExchangeState) String() string {
	switch s {
	case ExchangeIdle:
		return "idle"
	case ExchangeSending:
		return "sending"
	case ExchangeStreaming:
		return "streaming"
	case ExchangeCompleted:
		return "completed"
	case ExchangeCancelled:
		return "cancelled"
	case ExchangeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the exchange has reached an outcome
func (s ExchangeState) Terminal() bool {
	return s == ExchangeCompleted || s == ExchangeCancelled || s == ExchangeFailed
}
