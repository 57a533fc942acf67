package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	apierrors "github.com/diogo/chatstream/internal/errors"
	"github.com/diogo/chatstream/internal/models"
	"github.com/diogo/chatstream/internal/render"
)

// Gradient colors for animation
var gradientColors = []lipgloss.Color{
	lipgloss.Color("#ff6b6b"), // Red
	lipgloss.Color("#feca57"), // Yellow
	lipgloss.Color("#48dbfb"), // Cyan
	lipgloss.Color("#ff9ff3"), // Pink
	lipgloss.Color("#54a0ff"), // Blue
	lipgloss.Color("#5f27cd"), // Purple
	lipgloss.Color("#00d2d3"), // Teal
	lipgloss.Color("#1dd1a1"), // Green
}

var (
	colorText     = lipgloss.Color("#c0caf5")
	colorTextDim  = lipgloss.Color("#565f89")
	colorTextMute = lipgloss.Color("#3b4261")
	colorSuccess  = lipgloss.Color("#9ece6a")
	colorPrimary  = lipgloss.Color("#7aa2f7")
	colorError    = lipgloss.Color("#f7768e")
)

// Styles matching the chat TUI
var (
	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(colorPrimary).
				Bold(true).
				MarginBottom(0)

	assistantBubbleStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(colorPrimary).
				Foreground(colorText).
				Padding(0, 1).
				MarginTop(1).
				MarginBottom(1)
)

// writeClipboard is swapped in tests
var writeClipboard = clipboard.WriteAll

// spinner handles the animated loading indicator
type spinner struct {
	message string
	out     io.Writer
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	frame   int
	stopped bool // Flag to prevent double-close
}

// newSpinner creates a new animated spinner drawing on stderr
func newSpinner(message string) *spinner {
	return &spinner{
		message: message,
		out:     os.Stderr,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// start begins the animation
func (s *spinner) start() {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		// Hide cursor
		fmt.Fprint(s.out, "\033[?25l")

		for {
			select {
			case <-s.stop:
				// Clear line and show cursor
				fmt.Fprint(s.out, "\r\033[K\033[?25h")
				return
			case <-ticker.C:
				s.mu.Lock()
				s.render()
				s.frame++
				s.mu.Unlock()
			}
		}
	}()
}

// render draws the current animation frame
func (s *spinner) render() {
	chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}
	barChars := []string{"█", "█", "█", "█", "█", "█", "▓", "▒", "░"}

	spinIdx := s.frame % len(chars)
	spinColor := gradientColors[s.frame%len(gradientColors)]
	spinnerChar := lipgloss.NewStyle().Foreground(spinColor).Bold(true).Render(chars[spinIdx])

	barWidth := 16
	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		colorIdx := (i + s.frame) % len(gradientColors)
		charIdx := (i + s.frame/2) % len(barChars)
		style := lipgloss.NewStyle().Foreground(gradientColors[colorIdx])
		bar.WriteString(style.Render(barChars[charIdx]))
	}

	var dots strings.Builder
	numDots := (s.frame / 3) % 4
	for i := 0; i < 3; i++ {
		if i < numDots {
			dotColor := gradientColors[(s.frame+i)%len(gradientColors)]
			dots.WriteString(lipgloss.NewStyle().Foreground(dotColor).Render("●"))
		} else {
			dots.WriteString(lipgloss.NewStyle().Foreground(colorTextMute).Render("○"))
		}
	}

	msg := lipgloss.NewStyle().Foreground(colorText).Render(s.message)

	fmt.Fprintf(s.out, "\r\033[K%s %s %s %s", spinnerChar, bar.String(), msg, dots.String())
}

// stopOnce safely closes the stop channel only once
func (s *spinner) stopOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		close(s.stop)
		s.stopped = true
	}
}

// stopWithSuccess stops the spinner and shows success message
func (s *spinner) stopWithSuccess(message string) {
	s.stopOnce()
	<-s.done

	checkmark := lipgloss.NewStyle().Foreground(colorSuccess).Bold(true).Render("✓")
	msg := lipgloss.NewStyle().Foreground(colorSuccess).Render(message)
	fmt.Fprintf(s.out, "%s %s\n", checkmark, msg)
}

// stopWithError stops the spinner and clears its line
func (s *spinner) stopWithError() {
	s.stopOnce()
	<-s.done
}

// queryOptions describes one one-shot exchange
type queryOptions struct {
	Prompt string
	APIKey string

	// Raw prints only the reply text as it streams
	Raw        bool
	OutputFile string
	// Width is the terminal width used for the decorated reply
	Width int
	// Height is the terminal height; zero means unknown
	Height int

	Out    io.Writer
	ErrOut io.Writer
}

// runQueryCommand is the one-shot entry point behind the root command
func runQueryCommand(parent context.Context, prompt string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	deps, err := NewDependencies(cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	apiKey := lookupAPIKey(apiKeyFlag)
	if apiKey == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		apiKey, err = readAPIKey(os.Stderr, int(os.Stdin.Fd()))
		if err != nil {
			return err
		}
	}

	width, height := getTerminalSize()
	return runQuery(ctx, deps, queryOptions{
		Prompt:     prompt,
		APIKey:     apiKey,
		Raw:        rawFlag || !isStdoutTTY(),
		OutputFile: outputFlag,
		Width:      width,
		Height:     height,
		Out:        os.Stdout,
		ErrOut:     os.Stderr,
	})
}

// readAPIKey prompts for the key without echoing it
func readAPIKey(w io.Writer, fd int) (string, error) {
	fmt.Fprint(w, "API key: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// runQuery sends one prompt through the controller and writes the reply as
// it streams in
func runQuery(ctx context.Context, deps *Dependencies, opts queryOptions) error {
	prompt := strings.TrimSpace(opts.Prompt)
	if prompt == "" {
		return fmt.Errorf("prompt cannot be empty")
	}
	if err := deps.Store.SetCredential(opts.APIKey); err != nil {
		return err
	}

	// Stream to stdout unless the reply goes to a file
	live := opts.OutputFile == ""
	verbose := deps.Config.Verbose && !opts.Raw
	if verbose {
		fmt.Fprintf(opts.ErrOut, "[verbose] Model: %s (%s backend)\n", deps.Controller.Params().Model, deps.Config.Backend)
	}

	updates, unsubscribe := deps.Store.Subscribe()
	defer unsubscribe()

	var spin *spinner
	if !opts.Raw {
		spin = newSpinner("Waiting for reply")
		spin.out = opts.ErrOut
		spin.start()
	}
	stopSpinner := func() {
		if spin != nil {
			spin.stopWithError()
			spin = nil
		}
	}
	defer stopSpinner()

	startTime := time.Now()
	ex, err := deps.Controller.Submit(ctx, prompt)
	if err != nil {
		return err
	}

	streamed := ""
	flush := func() {
		text := deps.Store.Snapshot().LastAssistantText()
		if !live || len(text) <= len(streamed) || !strings.HasPrefix(text, streamed) {
			return
		}
		if streamed == "" && !opts.Raw {
			stopSpinner()
			fmt.Fprintln(opts.Out, assistantLabelStyle.Render("✦ Assistant"))
		}
		fmt.Fprint(opts.Out, text[len(streamed):])
		streamed = text
	}

	for waiting := true; waiting; {
		select {
		case <-updates:
			flush()
		case <-ex.Done():
			flush()
			waiting = false
		}
	}
	stopSpinner()

	if verbose {
		fmt.Fprintf(opts.ErrOut, "\n[verbose] Request took %s, %d bytes\n",
			time.Since(startTime).Round(time.Millisecond), ex.Received())
	}

	switch ex.State() {
	case models.ExchangeCancelled:
		if streamed != "" {
			fmt.Fprintln(opts.Out)
		}
		if !opts.Raw {
			fmt.Fprintln(opts.ErrOut, lipgloss.NewStyle().Foreground(colorError).Render("✗ Request cancelled"))
		}
		return apierrors.ErrCancelled

	case models.ExchangeFailed:
		if streamed != "" {
			fmt.Fprintln(opts.Out)
		}
		if !opts.Raw {
			fmt.Fprintln(opts.ErrOut, formatErrorMessage(ex.Err(), "Request failed"))
		}
		return fmt.Errorf("request failed: %w", ex.Err())
	}

	text := deps.Store.Snapshot().LastAssistantText()

	if opts.Raw {
		if opts.OutputFile != "" {
			return writeOutputFile(opts.OutputFile, text)
		}
		return nil
	}

	if deps.Config.CopyToClipboard {
		if err := writeClipboard(text); err != nil {
			warnMsg := lipgloss.NewStyle().Foreground(colorError).Render(
				fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err),
			)
			fmt.Fprintln(opts.ErrOut, warnMsg)
		} else {
			clipMsg := lipgloss.NewStyle().Foreground(colorSuccess).Render("✓ Copied to clipboard")
			fmt.Fprintln(opts.ErrOut, clipMsg)
		}
	}

	if opts.OutputFile != "" {
		if err := writeOutputFile(opts.OutputFile, text); err != nil {
			return err
		}
		successMsg := lipgloss.NewStyle().Foreground(colorSuccess).Render(
			fmt.Sprintf("✓ Response saved to %s", opts.OutputFile),
		)
		fmt.Fprintln(opts.ErrOut, successMsg)
		return nil
	}

	bubbleWidth := opts.Width - 4
	if bubbleWidth < 40 {
		bubbleWidth = 40
	}
	if bubbleWidth > 120 {
		bubbleWidth = 120
	}
	contentWidth := bubbleWidth - 4

	// Replace the plain streamed text (and its label) with the rendered reply
	if streamed != "" {
		rows := countLines(streamed, opts.Width) + 1
		if opts.Height > 0 && rows > opts.Height {
			// rows scrolled past the top of the screen cannot be erased
			fmt.Fprintln(opts.Out)
			return nil
		}
		clearLines(opts.Out, rows)
	}

	renderOpts := render.OptionsFromConfig(deps.Config.Markdown).WithWidth(contentWidth)
	rendered := render.MarkdownOrPlain(text, renderOpts)

	fmt.Fprintln(opts.Out, assistantLabelStyle.Render("✦ Assistant"))
	fmt.Fprintln(opts.Out, assistantBubbleStyle.Width(bubbleWidth).Render(rendered))
	return nil
}

func writeOutputFile(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

// countLines returns how many terminal rows text occupies at width
func countLines(text string, width int) int {
	if width <= 0 {
		width = 80
	}
	n := 0
	for _, line := range strings.Split(text, "\n") {
		w := lipgloss.Width(line)
		if w == 0 {
			n++
			continue
		}
		n += (w + width - 1) / width
	}
	return n
}

// clearLines erases the current row and the n-1 rows above it
func clearLines(w io.Writer, n int) {
	if n <= 0 {
		return
	}
	fmt.Fprint(w, "\r\033[K")
	for i := 1; i < n; i++ {
		fmt.Fprint(w, "\033[1A\033[K")
	}
}

// getTerminalSize returns the terminal width and height.
// The width falls back to 80 and the height to 0 (unknown).
func getTerminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return 80, 0
	}
	if height < 0 {
		height = 0
	}
	return width, height
}

// isStdoutTTY returns true if stdout is connected to a terminal
func isStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// formatErrorMessage formats an error with additional context from structured errors
func formatErrorMessage(err error, prefix string) string {
	if err == nil {
		return ""
	}

	errorStyle := lipgloss.NewStyle().Foreground(colorError)
	dimStyle := lipgloss.NewStyle().Foreground(colorTextDim)

	var sb strings.Builder
	sb.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s: %s", prefix, apierrors.HumanMessage(err))))

	if status := apierrors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  HTTP Status: %d", status)))
	}

	if endpoint := apierrors.GetEndpoint(err); endpoint != "" {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n  Endpoint: %s", endpoint)))
	}

	if body := apierrors.GetResponseBody(err); body != "" {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("\n\n  %s", strings.ReplaceAll(body, "\n", "\n  "))))
	} else {
		switch {
		case apierrors.IsAuthError(err):
			sb.WriteString(dimStyle.Render("\n  Hint: Check the key passed with --api-key or $CHATSTREAM_API_KEY"))
		case apierrors.IsRateLimitError(err):
			sb.WriteString(dimStyle.Render("\n  Hint: You've hit the rate limit. Try again later or use a different model"))
		case apierrors.IsNetworkError(err):
			sb.WriteString(dimStyle.Render("\n  Hint: Check your internet connection and the --base-url"))
		case apierrors.IsTimeoutError(err):
			sb.WriteString(dimStyle.Render("\n  Hint: Request timed out. Try again or raise request_timeout_seconds"))
		}
	}

	return sb.String()
}
