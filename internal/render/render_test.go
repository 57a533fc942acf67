package render

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/diogo/chatstream/internal/config"
)

func TestDefaultOptions(t *testing.T) {
	t.Setenv("GLAMOUR_STYLE", "")
	opts := DefaultOptions()

	if opts.Width != 80 {
		t.Errorf("expected Width=80, got %d", opts.Width)
	}
	if opts.Style != "dark" {
		t.Errorf("expected Style='dark', got %s", opts.Style)
	}
	if !opts.EnableEmoji || !opts.PreserveNewLines || !opts.TableWrap {
		t.Errorf("unexpected defaults: %+v", opts)
	}
	if opts.InlineTableLinks {
		t.Error("expected InlineTableLinks=false")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	t.Setenv("GLAMOUR_STYLE", "")

	md := config.MarkdownConfig{Style: "light", EnableEmoji: false, TableWrap: true}
	opts := OptionsFromConfig(md)
	if opts.Style != "light" || opts.EnableEmoji || !opts.TableWrap {
		t.Errorf("config not applied: %+v", opts)
	}

	opts = OptionsFromConfig(config.MarkdownConfig{})
	if opts.Style != StyleDark {
		t.Errorf("empty style should fall back to dark, got %s", opts.Style)
	}

	t.Setenv("GLAMOUR_STYLE", "notty")
	opts = OptionsFromConfig(md)
	if opts.Style != "notty" {
		t.Errorf("GLAMOUR_STYLE should win, got %s", opts.Style)
	}
}

func TestOptionsChaining(t *testing.T) {
	opts := DefaultOptions().WithWidth(100).WithStyle("light")
	if opts.Width != 100 || opts.Style != "light" {
		t.Errorf("unexpected options: %+v", opts)
	}
}

func TestMarkdown(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
	}{
		{"heading", "# Hello", []string{"Hello"}},
		{"code", "```go\nfmt.Println(1)\n```", []string{"Println"}},
		{"list", "- one\n- two", []string{"one", "two"}},
	}

	opts := DefaultOptions().WithStyle("notty")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Markdown(tt.input, opts)
			if err != nil {
				t.Fatalf("Markdown() error: %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(out, want) {
					t.Errorf("output %q missing %q", out, want)
				}
			}
		})
	}
}

func TestMarkdownWithWidth(t *testing.T) {
	out, err := MarkdownWithWidth("plain words", 40)
	if err != nil {
		t.Fatalf("MarkdownWithWidth() error: %v", err)
	}
	if !strings.Contains(ansi.Strip(out), "plain words") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestMarkdownOrPlain(t *testing.T) {
	out := MarkdownOrPlain("**partial", DefaultOptions().WithStyle("ascii"))
	if !strings.Contains(out, "partial") {
		t.Errorf("unexpected output %q", out)
	}
	if strings.HasSuffix(out, "\n") {
		t.Error("trailing newlines should be trimmed")
	}

	missing := filepath.Join(t.TempDir(), "nope.json")
	if got := MarkdownOrPlain("raw *text*", DefaultOptions().WithStyle(missing)); got != "raw *text*" {
		t.Errorf("expected raw fallback, got %q", got)
	}
}

func TestPoolReuse(t *testing.T) {
	ClearCache()
	defer ClearCache()

	opts := DefaultOptions()
	r1, err := globalPool.get(opts)
	if err != nil || r1 == nil {
		t.Fatalf("get() = %v, %v", r1, err)
	}
	globalPool.put(opts, r1)

	if _, err := globalPool.get(opts.WithWidth(120)); err != nil {
		t.Fatal(err)
	}
	if CacheSize() != 2 {
		t.Errorf("expected 2 pools, got %d", CacheSize())
	}

	globalPool.put(opts, nil)
}

func TestPoolConcurrency(t *testing.T) {
	ClearCache()
	defer ClearCache()

	opts := DefaultOptions().WithStyle("notty")
	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := Markdown("**bold**", opts); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent render failed: %v", err)
	}
}

func TestResolveStyle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"dark", "dark"},
		{"Light", "light"},
		{"tokyonight", "tokyo-night"},
		{"tokyo-night", "tokyo-night"},
		{"plain", "notty"},
		{"/tmp/custom.json", "/tmp/custom.json"},
	}
	for _, tt := range tests {
		if got := ResolveStyle(tt.in); got != tt.want {
			t.Errorf("ResolveStyle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateStyle(t *testing.T) {
	if err := ValidateStyle("dracula"); err != nil {
		t.Errorf("dracula should be valid: %v", err)
	}
	if err := ValidateStyle("no-such-style"); err == nil {
		t.Error("expected error for unknown style")
	}

	path := filepath.Join(t.TempDir(), "style.json")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ValidateStyle(path); err != nil {
		t.Errorf("existing file should be valid: %v", err)
	}

	for _, info := range AvailableThemes() {
		if !IsBuiltinStyle(info.Name) {
			t.Errorf("listed theme %q is not a glamour style", info.Name)
		}
	}
}

func TestTUIThemes(t *testing.T) {
	defer SetTUITheme(DefaultTUITheme)

	if GetTUITheme().Name != DefaultTUITheme {
		t.Errorf("default theme = %s", GetTUITheme().Name)
	}
	if !SetTUITheme("nord") {
		t.Fatal("nord should exist")
	}
	if GetTUITheme().Name != "nord" {
		t.Error("SetTUITheme did not switch")
	}
	if SetTUITheme("neon") {
		t.Error("unknown theme should be rejected")
	}
	if GetTUITheme().Name != "nord" {
		t.Error("rejected theme must not change the current one")
	}

	names := TUIThemeNames()
	if len(names) != 3 {
		t.Errorf("expected 3 themes, got %v", names)
	}
	for _, n := range names {
		theme, ok := GetTUIThemeByName(n)
		if !ok || theme.Primary == "" || theme.Error == "" {
			t.Errorf("theme %s incomplete", n)
		}
	}
}
