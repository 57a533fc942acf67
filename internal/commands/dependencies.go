package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/diogo/chatstream/internal/api"
	"github.com/diogo/chatstream/internal/chat"
	"github.com/diogo/chatstream/internal/config"
	"github.com/diogo/chatstream/internal/logging"
	"github.com/diogo/chatstream/internal/render"
	"github.com/diogo/chatstream/internal/tui"
)

// Environment variables consulted for the API key, in order
var apiKeyEnvVars = []string{config.EnvPrefix + "_API_KEY", "OPENAI_API_KEY"}

// TUIInterface defines the methods required from the TUI package.
type TUIInterface interface {
	RunChat(ctx context.Context, ctrl *chat.Controller, opts tui.Options) error
}

// DefaultTUI is the production implementation of TUIInterface.
type DefaultTUI struct{}

func (d *DefaultTUI) RunChat(ctx context.Context, ctrl *chat.Controller, opts tui.Options) error {
	return tui.RunChat(ctx, ctrl, opts)
}

// Dependencies holds the external dependencies for the commands.
// This allows for dependency injection and easier testing.
type Dependencies struct {
	Config config.Config
	Logger *logging.Logger

	// Client is the streaming inference client.
	Client api.Client

	Store      *chat.Store
	Controller *chat.Controller

	// TUI is the terminal user interface.
	TUI TUIInterface
}

// newAPIClient is swapped in tests
var newAPIClient = func(cfg config.Config, logger *logging.Logger) (api.Client, error) {
	return api.NewClient(cfg, api.WithLogger(logger.With().Str("component", "api").Logger()))
}

// NewDependencies wires the logger, client, store and controller for cfg.
// Close must be called to release the log file.
func NewDependencies(cfg config.Config) (*Dependencies, error) {
	logger, err := logging.New(cfg.DebugLog, cfg.Verbose)
	if err != nil {
		return nil, err
	}

	client, err := newAPIClient(cfg, logger)
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if cfg.TUITheme != "" && !render.SetTUITheme(cfg.TUITheme) {
		logger.Warn().Str("theme", cfg.TUITheme).Msg("unknown tui theme, using default")
	}
	tui.UpdateTheme()

	store := chat.NewStore(cfg.KeyPrefix)
	ctrl := chat.NewController(store, client,
		chat.WithGenerationParams(cfg.GenerationParams()),
		chat.WithSystemPrompt(cfg.SystemPrompt),
		chat.WithErrorTurnRemap(cfg.RemapErrorTurns),
		chat.WithLogger(logger.With().Str("component", "chat").Logger()),
	)

	logger.Debug().
		Str("backend", cfg.Backend).
		Str("base_url", cfg.BaseURL).
		Str("model", cfg.GenerationParams().Model).
		Msg("dependencies ready")

	return &Dependencies{
		Config:     cfg,
		Logger:     logger,
		Client:     client,
		Store:      store,
		Controller: ctrl,
		TUI:        &DefaultTUI{},
	}, nil
}

// Close cancels any running exchange and closes the log file
func (d *Dependencies) Close() error {
	if d == nil {
		return nil
	}
	if d.Controller != nil {
		d.Controller.Cancel()
		d.Controller.Wait()
	}
	return d.Logger.Close()
}

// lookupAPIKey returns the key from the flag or the environment
func lookupAPIKey(flag string) string {
	if key := strings.TrimSpace(flag); key != "" {
		return key
	}
	for _, name := range apiKeyEnvVars {
		if key := strings.TrimSpace(os.Getenv(name)); key != "" {
			return key
		}
	}
	return ""
}
