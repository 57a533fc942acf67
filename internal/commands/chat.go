package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/diogo/chatstream/internal/render"
	"github.com/diogo/chatstream/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session.

The chat keeps the conversation in memory and sends it with every message.
Replies stream in as they are generated; press Esc to cancel one.
Type 'exit', 'quit', or press Ctrl+C to end the session.

The API key is taken from --api-key, $CHATSTREAM_API_KEY or $OPENAI_API_KEY.
Without one you are asked for it when the chat opens.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		deps, err := NewDependencies(cfg)
		if err != nil {
			return err
		}
		defer deps.Close()

		return runChat(cmd.Context(), deps, lookupAPIKey(apiKeyFlag))
	},
}

func runChat(ctx context.Context, deps *Dependencies, apiKey string) error {
	if apiKey != "" {
		// A bad key leaves the credential form up with the message shown
		if err := deps.Store.SetCredential(apiKey); err != nil {
			deps.Logger.Warn().Err(err).Msg("ignoring API key from flag or environment")
		}
	}

	opts := tui.Options{
		ModelName: deps.Controller.Params().Model,
		Markdown:  render.OptionsFromConfig(deps.Config.Markdown),
	}
	if err := deps.TUI.RunChat(ctx, deps.Controller, opts); err != nil {
		return fmt.Errorf("chat session failed: %w", err)
	}
	return nil
}
