package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/diogo/chatstream/internal/api"
	"github.com/diogo/chatstream/internal/chat"
	apierrors "github.com/diogo/chatstream/internal/errors"
	"github.com/diogo/chatstream/internal/models"
)

func newTestModel(t *testing.T, client api.Client, key string) (Model, *chat.Controller) {
	t.Helper()
	store := chat.NewStore("sk-")
	if key != "" {
		if err := store.SetCredential(key); err != nil {
			t.Fatalf("SetCredential: %v", err)
		}
	}
	ctrl := chat.NewController(store, client)
	updates, unsubscribe := store.Subscribe()
	t.Cleanup(func() {
		ctrl.Cancel()
		ctrl.Wait()
		unsubscribe()
	})

	m := NewChatModel(context.Background(), ctrl, updates, Options{ModelName: "gpt-4o-mini"})
	m, _ = update(m, tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, ctrl
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(m Model, text string) Model {
	m, _ = update(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func pressEnter(m Model) (Model, tea.Cmd) {
	return update(m, tea.KeyMsg{Type: tea.KeyEnter})
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

// send submits text and runs the resulting command like the runtime would
func send(t *testing.T, m Model, text string) Model {
	t.Helper()
	m.textarea.SetValue(text)
	m, cmd := pressEnter(m)
	if cmd == nil {
		t.Fatalf("enter with %q produced no command", text)
	}
	if msg := cmd(); msg != nil {
		m, _ = update(m, msg)
	}
	m, _ = update(m, storeChangedMsg{})
	return m
}

func TestCredentialViewShownWithoutKey(t *testing.T) {
	m, _ := newTestModel(t, api.NewMockClient(), "")

	if m.state.HasCredential {
		t.Fatal("expected no credential")
	}
	if !m.keyInput.Focused() {
		t.Error("credential input should be focused")
	}
	view := m.View()
	if !strings.Contains(view, "Enter your API key") {
		t.Errorf("view missing credential prompt:\n%s", view)
	}
	if strings.Contains(view, "Start a conversation") {
		t.Error("conversation view should be hidden until a key is set")
	}
}

func TestCredentialValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey bool
		wantErr string
	}{
		{"empty", "", false, "API key is required"},
		{"wrong prefix", "pk-123", false, `API key must start with "sk-"`},
		{"valid", "sk-123", true, ""},
		{"valid with spaces", "  sk-123  ", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ctrl := newTestModel(t, api.NewMockClient(), "")
			m = typeText(m, tt.input)
			m, _ = pressEnter(m)

			if m.state.HasCredential != tt.wantKey {
				t.Errorf("HasCredential = %v, want %v", m.state.HasCredential, tt.wantKey)
			}
			if m.state.LastError != tt.wantErr {
				t.Errorf("LastError = %q, want %q", m.state.LastError, tt.wantErr)
			}
			if len(ctrl.Store().Turns()) != 0 {
				t.Error("credential changes must not add turns")
			}
			if tt.wantKey {
				if !m.textarea.Focused() {
					t.Error("prompt should be focused once a key is set")
				}
				if m.keyInput.Value() != "" {
					t.Error("key input should be cleared")
				}
			} else if !strings.Contains(m.View(), tt.wantErr) {
				t.Errorf("view should show %q inline", tt.wantErr)
			}
		})
	}
}

func TestCredentialEscQuits(t *testing.T) {
	m, _ := newTestModel(t, api.NewMockClient(), "")
	_, cmd := update(m, tea.KeyMsg{Type: tea.KeyEsc})
	if !isQuit(cmd) {
		t.Error("esc on the credential form should quit")
	}
}

func TestEnterIgnoredWhenEmpty(t *testing.T) {
	client := api.NewMockClient()
	m, _ := newTestModel(t, client, "sk-test")

	m.textarea.SetValue("   ")
	m, cmd := pressEnter(m)
	if cmd != nil {
		t.Error("enter on blank input should do nothing")
	}
	if client.CallCount() != 0 {
		t.Error("no request expected")
	}
}

func TestSubmitStreamsIntoViewport(t *testing.T) {
	m, ctrl := newTestModel(t, api.NewMockClient(api.NewMockStream("H", "i", "!")), "sk-test")

	m = send(t, m, "hi")
	ctrl.Wait()
	m, _ = update(m, storeChangedMsg{})

	want := []models.Turn{
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "Hi!"},
	}
	if len(m.state.Turns) != len(want) {
		t.Fatalf("turns = %+v", m.state.Turns)
	}
	for i := range want {
		if m.state.Turns[i] != want[i] {
			t.Errorf("turn %d = %+v, want %+v", i, m.state.Turns[i], want[i])
		}
	}
	if m.state.IsLoading {
		t.Error("should not be loading after completion")
	}
	if m.textarea.Value() != "" {
		t.Error("input should be cleared after send")
	}

	content := ansi.Strip(m.viewport.View())
	for _, marker := range []string{"You", "Assistant", "Hi!"} {
		if !strings.Contains(content, marker) {
			t.Errorf("viewport missing %q", marker)
		}
	}
}

func TestErrorTurnRendered(t *testing.T) {
	failing := api.NewMockStream().WithError(&apierrors.APIError{StatusCode: 429, Message: "slow down"})
	m, ctrl := newTestModel(t, api.NewMockClient(failing), "sk-test")

	m = send(t, m, "hi")
	ctrl.Wait()
	m, _ = update(m, storeChangedMsg{})

	last := m.state.LastTurn()
	if last == nil || last.Role != models.RoleError {
		t.Fatalf("last turn = %+v, want error turn", last)
	}
	if !strings.Contains(ansi.Strip(m.viewport.View()), "Error: slow down") {
		t.Errorf("viewport missing error turn:\n%s", m.viewport.View())
	}
}

func TestLoadingBlocksInputAndEscCancels(t *testing.T) {
	stream := api.NewMockStream("partial").Gated()
	client := api.NewMockClient(stream)
	m, ctrl := newTestModel(t, client, "sk-test")

	m = send(t, m, "hi")
	if !m.state.IsLoading {
		t.Fatal("expected loading state")
	}
	if !strings.Contains(m.View(), "Esc") {
		t.Error("status bar should list Esc")
	}

	m.textarea.SetValue("second")
	m, cmd := pressEnter(m)
	if cmd != nil {
		t.Error("enter while loading should do nothing")
	}

	m, cmd = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	if isQuit(cmd) {
		t.Fatal("esc while loading should cancel, not quit")
	}
	if m.flash != "Request cancelled" {
		t.Errorf("flash = %q", m.flash)
	}

	ctrl.Wait()
	m, _ = update(m, storeChangedMsg{})
	if len(m.state.Turns) != 0 || m.state.IsLoading {
		t.Errorf("cancel should restore the prior state, got %+v", m.state)
	}
	if client.CallCount() != 1 {
		t.Errorf("CallCount = %d, want 1", client.CallCount())
	}

	_, cmd = update(m, tea.KeyMsg{Type: tea.KeyEsc})
	if !isQuit(cmd) {
		t.Error("esc when idle should quit")
	}
}

func TestSlashCommands(t *testing.T) {
	m, ctrl := newTestModel(t, api.NewMockClient(api.NewMockStream("ok")), "sk-test")

	m = send(t, m, "hi")
	ctrl.Wait()
	m, _ = update(m, storeChangedMsg{})
	if len(m.state.Turns) != 2 {
		t.Fatalf("turns = %d, want 2", len(m.state.Turns))
	}

	m.textarea.SetValue("/clear")
	m, _ = pressEnter(m)
	m, _ = update(m, storeChangedMsg{})
	if len(m.state.Turns) != 0 {
		t.Error("/clear should drop all turns")
	}
	if !m.state.HasCredential {
		t.Error("/clear keeps the key")
	}

	m.textarea.SetValue("/key")
	m, _ = pressEnter(m)
	if m.state.HasCredential {
		t.Error("/key should forget the key")
	}
	if !strings.Contains(m.View(), "Enter your API key") {
		t.Error("/key should show the credential form")
	}

	for _, word := range []string{"exit", "quit", "/quit"} {
		m2, _ := newTestModel(t, api.NewMockClient(), "sk-test")
		m2.textarea.SetValue(word)
		if _, cmd := pressEnter(m2); !isQuit(cmd) {
			t.Errorf("%q should quit", word)
		}
	}
}

func TestCopyLastReply(t *testing.T) {
	var copied string
	orig := writeClipboard
	writeClipboard = func(text string) error {
		copied = text
		return nil
	}
	t.Cleanup(func() { writeClipboard = orig })

	m, ctrl := newTestModel(t, api.NewMockClient(api.NewMockStream("the ", "answer")), "sk-test")

	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyCtrlY})
	if cmd != nil {
		t.Error("nothing to copy yet")
	}
	if m.flash != "Nothing to copy yet" {
		t.Errorf("flash = %q", m.flash)
	}

	m = send(t, m, "question")
	ctrl.Wait()
	m, _ = update(m, storeChangedMsg{})

	m, cmd = update(m, tea.KeyMsg{Type: tea.KeyCtrlY})
	if cmd == nil {
		t.Fatal("expected copy command")
	}
	m, _ = update(m, cmd())
	if copied != "the answer" {
		t.Errorf("copied %q", copied)
	}
	if m.flash != "Copied last reply to clipboard" {
		t.Errorf("flash = %q", m.flash)
	}

	writeClipboard = func(string) error { return errors.New("no clipboard") }
	m, cmd = update(m, tea.KeyMsg{Type: tea.KeyCtrlY})
	m, _ = update(m, cmd())
	if m.err == nil {
		t.Error("copy failure should surface")
	}
}

func TestWaitForChange(t *testing.T) {
	if waitForChange(nil) != nil {
		t.Error("nil channel should give nil command")
	}

	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	if _, ok := waitForChange(ch)().(storeChangedMsg); !ok {
		t.Error("expected storeChangedMsg")
	}

	close(ch)
	if msg := waitForChange(ch)(); msg != nil {
		t.Errorf("closed channel should end the loop, got %T", msg)
	}
}

func TestStoreChangeStartsAnimation(t *testing.T) {
	m, _ := newTestModel(t, api.NewMockClient(api.NewMockStream("x").Gated()), "sk-test")

	m = send(t, m, "hi")
	if !m.animating {
		t.Error("animation should run while loading")
	}
	for i := 0; i < 12; i++ {
		m.animationFrame = i
		if m.renderLoadingAnimation() == "" {
			t.Fatalf("empty animation at frame %d", i)
		}
	}
}

func TestViewBeforeResize(t *testing.T) {
	store := chat.NewStore("sk-")
	ctrl := chat.NewController(store, api.NewMockClient())
	m := NewChatModel(context.Background(), ctrl, nil, Options{})
	if !strings.Contains(m.View(), "Initializing") {
		t.Error("expected initializing view")
	}
	if m.mdOpts.Width == 0 {
		t.Error("markdown options should default")
	}
}

func TestFormatError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want []string
	}{
		{"nil", nil, nil},
		{"auth", apierrors.NewAPIError(401, "https://x/chat/completions", "bad key"), []string{"bad key", "HTTP Status: 401", "Endpoint: https://x/chat/completions", "/key"}},
		{"rate limit", apierrors.NewAPIError(429, "", ""), []string{"Too Many Requests", "rate limit"}},
		{"network", apierrors.NewNetworkErrorWithEndpoint("stream", "https://x", errors.New("refused")), []string{"internet connection"}},
		{"timeout", apierrors.NewTimeoutError("slow"), []string{"timed out"}},
		{"validation", apierrors.NewValidationError("prompt", "prompt cannot be empty", apierrors.ErrEmptyPrompt), []string{"prompt cannot be empty"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatError(tt.err)
			if tt.err == nil {
				if got != "" {
					t.Errorf("FormatError(nil) = %q", got)
				}
				return
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("FormatError() = %q, missing %q", got, w)
				}
			}
		})
	}
}
