package models

import (
	"testing"
)

func TestAllModels(t *testing.T) {
	models := AllModels()

	if len(models) == 0 {
		t.Error("Expected at least one model")
	}

	for _, model := range models {
		if model.Name == "" {
			t.Error("Model name should not be empty")
		}
		if model.Description == "" {
			t.Errorf("Model %s should have a description", model.Name)
		}
	}
}

func TestModelFromName(t *testing.T) {
	tests := []struct {
		name     string
		expected Model
	}{
		{"gpt-4o-mini", ModelGPT4oMini},
		{"gpt-4o", ModelGPT4o},
		{"  gpt-4.1  ", ModelGPT41},
		{"", DefaultModel},
		{"llama3:8b", Model{Name: "llama3:8b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ModelFromName(tt.name)
			if got != tt.expected {
				t.Errorf("ModelFromName(%q) = %+v, want %+v", tt.name, got, tt.expected)
			}
		})
	}
}

func TestDefaultGenerationParams(t *testing.T) {
	p := DefaultGenerationParams()
	if p.Model != DefaultModel.Name {
		t.Errorf("Model = %s, want %s", p.Model, DefaultModel.Name)
	}
	if p.MaxTokens != DefaultMaxTokens {
		t.Errorf("MaxTokens = %d, want %d", p.MaxTokens, DefaultMaxTokens)
	}
	if p.Temperature != DefaultTemperature || p.TopP != DefaultTopP {
		t.Errorf("unexpected sampling params: %+v", p)
	}
}

func TestExchangeStateString(t *testing.T) {
	tests := []struct {
		state    ExchangeState
		expected string
		terminal bool
	}{
		{ExchangeIdle, "idle", false},
		{ExchangeSending, "sending", false},
		{ExchangeStreaming, "streaming", false},
		{ExchangeCompleted, "completed", true},
		{ExchangeCancelled, "cancelled", true},
		{ExchangeFailed, "failed", true},
		{ExchangeState(42), "unknown", false},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.expected {
			t.Errorf("String() = %s, want %s", got, tt.expected)
		}
		if got := tt.state.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.expected, got, tt.terminal)
		}
	}
}

func TestConversationStateHelpers(t *testing.T) {
	var empty ConversationState
	if empty.LastTurn() != nil {
		t.Error("LastTurn on empty state should be nil")
	}
	if empty.LastAssistantText() != "" {
		t.Error("LastAssistantText on empty state should be empty")
	}

	s := ConversationState{Turns: []Turn{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "Hi!"},
		{Role: RoleError, Content: "Error: boom"},
	}}
	if last := s.LastTurn(); last == nil || last.Role != RoleError {
		t.Errorf("LastTurn = %+v, want error turn", last)
	}
	if got := s.LastAssistantText(); got != "Hi!" {
		t.Errorf("LastAssistantText = %q, want %q", got, "Hi!")
	}
}
