package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/chatstream/internal/chat"
	"github.com/diogo/chatstream/internal/models"
	"github.com/diogo/chatstream/internal/render"
)

// Animation tick message
type animationTickMsg time.Time

// Message types for the TUI
type (
	// storeChangedMsg is sent whenever the store notifies its subscribers
	storeChangedMsg struct{}

	errMsg struct {
		err error
	}
	copiedMsg struct {
		err error
	}
)

// writeClipboard is swapped in tests
var writeClipboard = clipboard.WriteAll

// Options configures the chat TUI
type Options struct {
	ModelName string
	Markdown  render.Options
}

// Model represents the TUI state
type Model struct {
	ctx     context.Context
	ctrl    *chat.Controller
	store   *chat.Store
	updates <-chan struct{}

	modelName string
	mdOpts    render.Options

	// UI components
	viewport viewport.Model
	textarea textarea.Model
	keyInput textinput.Model
	spinner  spinner.Model

	// State
	state          models.ConversationState
	ready          bool
	animating      bool
	err            error
	flash          string
	animationFrame int

	// Dimensions
	width  int
	height int
}

// NewChatModel creates a chat model bound to ctrl. updates must come from
// ctrl.Store().Subscribe().
func NewChatModel(ctx context.Context, ctrl *chat.Controller, updates <-chan struct{}, opts Options) Model {
	ta := textarea.New()
	ta.Placeholder = "Type your message here..."
	ta.CharLimit = 4000
	ta.ShowLineNumbers = false
	ta.SetHeight(2)

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Base = lipgloss.NewStyle().Foreground(colorText)
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(colorTextDim)
	ta.BlurredStyle = ta.FocusedStyle

	ki := textinput.New()
	ki.Placeholder = "sk-..."
	ki.EchoMode = textinput.EchoPassword
	ki.EchoCharacter = '•'
	ki.Prompt = "API key: "
	ki.PromptStyle = inputLabelStyle
	ki.TextStyle = lipgloss.NewStyle().Foreground(colorText)

	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = loadingStyle

	if opts.Markdown == (render.Options{}) {
		opts.Markdown = render.DefaultOptions()
	}

	m := Model{
		ctx:       ctx,
		ctrl:      ctrl,
		store:     ctrl.Store(),
		updates:   updates,
		modelName: opts.ModelName,
		mdOpts:    opts.Markdown,
		textarea:  ta,
		keyInput:  ki,
		spinner:   s,
		state:     ctrl.Store().Snapshot(),
	}
	m.focusInput()
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		waitForChange(m.updates),
	)
}

// animationTick returns a command that sends animation tick messages
func animationTick() tea.Cmd {
	return tea.Tick(time.Millisecond*80, func(t time.Time) tea.Msg {
		return animationTickMsg(t)
	})
}

// waitForChange blocks until the store reports a change. A closed channel
// ends the loop.
func waitForChange(updates <-chan struct{}) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 4 // Header panel with border
		inputHeight := 6  // Input panel with border
		statusHeight := 1 // Status bar
		padding := 2      // Extra spacing

		vpHeight := m.height - headerHeight - inputHeight - statusHeight - padding
		if vpHeight < 5 {
			vpHeight = 5
		}

		contentWidth := m.width - 4

		if !m.ready {
			m.viewport = viewport.New(contentWidth, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = contentWidth
			m.viewport.Height = vpHeight
		}
		m.textarea.SetWidth(contentWidth - 4)
		m.keyInput.Width = contentWidth - 16
		m.updateViewport()

	case storeChangedMsg:
		m.state = m.store.Snapshot()
		m.updateViewport()
		m.viewport.GotoBottom()
		m.focusInput()
		if m.state.IsLoading && !m.animating {
			m.animating = true
			m.animationFrame = 0
			cmds = append(cmds, animationTick(), m.spinner.Tick)
		}
		cmds = append(cmds, waitForChange(m.updates))

	case tea.KeyMsg:
		if !m.state.HasCredential {
			return m.updateCredential(msg)
		}

		switch msg.String() {
		case "ctrl+c":
			m.ctrl.Cancel()
			return m, tea.Quit

		case "esc":
			if m.ctrl.Cancel() {
				m.flash = "Request cancelled"
				return m, nil
			}
			return m, tea.Quit

		case "ctrl+y":
			text := m.state.LastAssistantText()
			if text == "" {
				m.flash = "Nothing to copy yet"
				return m, nil
			}
			return m, copyToClipboard(text)

		case "enter":
			input := strings.TrimSpace(m.textarea.Value())
			if m.state.IsLoading || input == "" {
				return m, nil
			}
			m.err = nil
			m.flash = ""

			switch input {
			case "exit", "quit", "/exit", "/quit":
				return m, tea.Quit
			case "/clear":
				m.textarea.Reset()
				m.store.Reset()
				return m, nil
			case "/key":
				m.textarea.Reset()
				m.store.ClearCredential()
				m.state = m.store.Snapshot()
				m.focusInput()
				return m, nil
			}

			m.textarea.Reset()
			return m, m.submit(input)
		}

	case errMsg:
		m.err = msg.err

	case copiedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.flash = "Copied last reply to clipboard"
		}

	case spinner.TickMsg:
		if m.state.IsLoading {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case animationTickMsg:
		if m.state.IsLoading {
			m.animationFrame++
			cmds = append(cmds, animationTick())
		} else {
			m.animating = false
		}
	}

	// Only pass KeyMsg to textarea to prevent escape sequence leaks
	if !m.state.IsLoading {
		if _, ok := msg.(tea.KeyMsg); ok {
			m.textarea, cmd = m.textarea.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// updateCredential handles keys while the credential form is shown
func (m Model) updateCredential(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit

	case "enter":
		if err := m.store.SetCredential(m.keyInput.Value()); err != nil {
			m.err = err
			m.state = m.store.Snapshot()
			return m, nil
		}
		m.err = nil
		m.keyInput.Reset()
		m.state = m.store.Snapshot()
		m.focusInput()
		m.updateViewport()
		return m, nil
	}

	var cmd tea.Cmd
	m.keyInput, cmd = m.keyInput.Update(msg)
	return m, cmd
}

// focusInput focuses the credential form or the prompt, whichever is shown
func (m *Model) focusInput() {
	if m.state.HasCredential {
		m.keyInput.Blur()
		m.textarea.Focus()
		return
	}
	m.textarea.Blur()
	m.keyInput.Focus()
}

// submit runs Controller.Submit off the UI goroutine. Submit may wait for a
// superseded exchange to settle.
func (m Model) submit(text string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		if _, err := ctrl.Submit(ctx, text); err != nil {
			return errMsg{err: err}
		}
		return nil
	}
}

func copyToClipboard(text string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{err: writeClipboard(text)}
	}
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return loadingStyle.Render("  Initializing...")
	}

	var sections []string
	contentWidth := m.width - 4

	// HEADER
	headerContent := lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render("✦ chatstream"),
		hintStyle.Render("  •  "),
		subtitleStyle.Render(m.modelName),
	)
	sections = append(sections, headerStyle.Width(contentWidth).Render(headerContent))

	if !m.state.HasCredential {
		sections = append(sections, m.renderCredentialForm(contentWidth))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	// MESSAGES AREA
	var messagesContent string
	if len(m.state.Turns) == 0 {
		messagesContent = m.renderWelcome()
	} else {
		messagesContent = m.viewport.View()
	}
	sections = append(sections, messagesAreaStyle.
		Width(contentWidth).
		Height(m.viewport.Height).
		Render(messagesContent))

	// INPUT AREA
	var inputContent string
	if m.state.IsLoading {
		inputContent = m.renderLoadingAnimation()
	} else {
		inputContent = lipgloss.JoinVertical(
			lipgloss.Left,
			inputLabelStyle.Render("You"),
			m.textarea.View(),
		)
	}
	sections = append(sections, inputPanelStyle.Width(contentWidth).Render(inputContent))

	// STATUS BAR
	sections = append(sections, m.renderStatusBar(contentWidth))

	if m.err != nil {
		sections = append(sections, FormatError(m.err))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderCredentialForm renders the API key prompt
func (m Model) renderCredentialForm(width int) string {
	var content strings.Builder
	content.WriteString(credentialTitleStyle.Render("🔑 Enter your API key"))
	content.WriteString("\n")
	content.WriteString(m.keyInput.View())

	if m.state.LastError != "" {
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render("⚠ " + m.state.LastError))
	}

	content.WriteString("\n")
	content.WriteString(credentialNoteStyle.Render("The key is kept in memory for this session only."))
	content.WriteString("\n")
	content.WriteString(hintStyle.Render("Enter to confirm  •  Esc to quit"))

	return credentialPanelStyle.Width(width).Render(content.String())
}

// renderWelcome renders the welcome screen when no turns exist
func (m Model) renderWelcome() string {
	width := m.viewport.Width - 4
	height := m.viewport.Height

	icon := welcomeIconStyle.Width(width).Render("✦")
	title := welcomeTitleStyle.Width(width).Render("Start a conversation")
	subtitle := welcomeStyle.Width(width).Render("Type a message below. /clear resets, /key changes the API key")

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		"",
		icon,
		"",
		title,
		"",
		subtitle,
		"",
	)

	contentHeight := lipgloss.Height(content)
	topPadding := (height - contentHeight) / 2
	if topPadding < 0 {
		topPadding = 0
	}

	return strings.Repeat("\n", topPadding) + content
}

// renderLoadingAnimation renders a colorful animated loading indicator
func (m Model) renderLoadingAnimation() string {
	chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}
	barChars := []string{"█", "█", "█", "█", "█", "█", "█", "█", "▓", "▒", "░"}

	frame := m.animationFrame

	spinIdx := frame % len(chars)
	spinColor := gradientColors[frame%len(gradientColors)]
	spin := lipgloss.NewStyle().Foreground(spinColor).Bold(true).Render(chars[spinIdx])

	barWidth := 20
	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		colorIdx := (i + frame) % len(gradientColors)
		charIdx := (i + frame/2) % len(barChars)

		style := lipgloss.NewStyle().Foreground(gradientColors[colorIdx])
		bar.WriteString(style.Render(barChars[charIdx]))
	}

	dots := ""
	numDots := (frame / 3) % 4
	for i := 0; i < numDots; i++ {
		dotColor := gradientColors[(frame+i)%len(gradientColors)]
		dots += lipgloss.NewStyle().Foreground(dotColor).Render("●")
	}
	for i := numDots; i < 3; i++ {
		dots += lipgloss.NewStyle().Foreground(colorTextMute).Render("○")
	}

	label := " Waiting for reply "
	if m.ctrl.State() == models.ExchangeStreaming {
		label = " Streaming "
	}
	text := lipgloss.NewStyle().Foreground(colorText).Render(label)

	return fmt.Sprintf("%s %s %s %s", spin, bar.String(), text, dots)
}

// renderStatusBar renders the bottom status bar with shortcuts
func (m Model) renderStatusBar(width int) string {
	escDesc := "Quit"
	if m.state.IsLoading {
		escDesc = "Cancel"
	}

	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send"},
		{"Esc", escDesc},
		{"Ctrl+Y", "Copy"},
		{"↑↓", "Scroll"},
	}

	var items []string
	for _, s := range shortcuts {
		item := lipgloss.JoinHorizontal(
			lipgloss.Center,
			statusKeyStyle.Render(s.key),
			statusDescStyle.Render(" "+s.desc),
		)
		items = append(items, item)
	}

	bar := strings.Join(items, "  │  ")
	if m.flash != "" {
		bar += "  │  " + flashStyle.Render(m.flash)
	}
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(bar)
}

// updateViewport refreshes the viewport content with styled turns
func (m *Model) updateViewport() {
	if !m.ready {
		return
	}

	var content strings.Builder
	bubbleWidth := m.viewport.Width - 6
	opts := m.mdOpts.WithWidth(bubbleWidth - 4)

	for i, turn := range m.state.Turns {
		if i > 0 {
			content.WriteString("\n")
		}

		switch turn.Role {
		case models.RoleUser:
			label := userLabelStyle.Render("● You")
			bubble := userBubbleStyle.Width(bubbleWidth).Render(turn.Content)
			content.WriteString(label + "\n" + bubble)

		case models.RoleError:
			label := errorLabelStyle.Render("⚠ Error")
			bubble := errorBubbleStyle.Width(bubbleWidth).Render(turn.Content)
			content.WriteString(label + "\n" + bubble)

		default:
			label := assistantLabelStyle.Render("✦ Assistant")
			body := hintStyle.Render("…")
			if turn.Content != "" {
				body = render.MarkdownOrPlain(turn.Content, opts)
			}
			bubble := assistantBubbleStyle.Width(bubbleWidth).Render(body)
			content.WriteString(label + "\n" + bubble)
		}
		content.WriteString("\n")
	}

	m.viewport.SetContent(content.String())
}

// RunChat starts the interactive chat. Exchanges still running when the
// program exits are cancelled.
func RunChat(ctx context.Context, ctrl *chat.Controller, opts Options) error {
	updates, unsubscribe := ctrl.Store().Subscribe()
	defer unsubscribe()

	m := NewChatModel(ctx, ctrl, updates, opts)

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	_, err := p.Run()

	ctrl.Cancel()
	ctrl.Wait()
	return err
}
