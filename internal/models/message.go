package models

// Role tags the origin of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"

	// RoleSystem only appears in outbound messages, never in stored turns.
	RoleSystem Role = "system"
)

// Turn is one message in the conversation as shown to the user
type Turn struct {
	Role    Role
	Content string
}

// Message is one outbound message in the shape the endpoint accepts
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// GenerationParams are the sampling parameters sent with every request
type GenerationParams struct {
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// DefaultGenerationParams returns the parameters used when nothing is configured
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		Model:       DefaultModel.Name,
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
		TopP:        DefaultTopP,
	}
}
