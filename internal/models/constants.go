// Package models contains data types and constants for chat completion endpoints.
package models

import "strings"

// Endpoints for OpenAI-compatible APIs
const (
	DefaultBaseURL          = "https://api.openai.com/v1"
	EndpointChatCompletions = "/chat/completions"
)

// DefaultKeyPrefix is the literal prefix every API key must carry
const DefaultKeyPrefix = "sk-"

// Generation defaults applied to every request
const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.7
	DefaultTopP        = 1.0
)

// Model describes a chat model the client knows about
type Model struct {
	Name        string
	Description string
}

// Known models
var (
	ModelGPT4oMini = Model{
		Name:        "gpt-4o-mini",
		Description: "Small, fast and cheap",
	}

	ModelGPT4o = Model{
		Name:        "gpt-4o",
		Description: "Flagship multimodal model",
	}

	ModelGPT41 = Model{
		Name:        "gpt-4.1",
		Description: "Long context, strong instruction following",
	}

	ModelGPT35Turbo = Model{
		Name:        "gpt-3.5-turbo",
		Description: "Legacy chat model",
	}

	// DefaultModel is the recommended default
	DefaultModel = ModelGPT4oMini
)

// AllModels returns the list of known models
func AllModels() []Model {
	return []Model{ModelGPT4oMini, ModelGPT4o, ModelGPT41, ModelGPT35Turbo}
}

// ModelFromName returns the known model with the given name.
// Unknown names are passed through unchanged so that any model served by a
// compatible endpoint can be used.
func ModelFromName(name string) Model {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultModel
	}
	for _, m := range AllModels() {
		if m.Name == name {
			return m
		}
	}
	return Model{Name: name}
}
