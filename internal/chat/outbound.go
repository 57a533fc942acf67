package chat

import (
	"strings"

	"github.com/diogo/chatstream/internal/models"
)

// BuildMessages maps stored turns to the outbound message sequence: an
// optional system prompt, the turns in order, then text as the last user
// message.
//
// With remapErrors, error turns are sent as assistant messages so the model
// sees earlier failures as its own replies. This mirrors long-standing
// behaviour but is likely a latent defect; without it error turns are dropped.
func BuildMessages(turns []models.Turn, text, systemPrompt string, remapErrors bool) []models.Message {
	msgs := make([]models.Message, 0, len(turns)+2)

	if p := strings.TrimSpace(systemPrompt); p != "" {
		msgs = append(msgs, models.Message{Role: models.RoleSystem, Content: p})
	}

	for _, t := range turns {
		switch t.Role {
		case models.RoleUser, models.RoleAssistant:
			msgs = append(msgs, models.Message{Role: t.Role, Content: t.Content})
		case models.RoleError:
			if remapErrors {
				msgs = append(msgs, models.Message{Role: models.RoleAssistant, Content: t.Content})
			}
		}
	}

	return append(msgs, models.Message{Role: models.RoleUser, Content: text})
}
