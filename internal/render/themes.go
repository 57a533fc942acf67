package render

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
)

// Glamour built-in style names
const (
	StyleDark       = styles.DarkStyle
	StyleLight      = styles.LightStyle
	StyleDracula    = styles.DraculaStyle
	StyleTokyoNight = styles.TokyoNightStyle
	StyleNoTTY      = styles.NoTTYStyle
	StyleASCII      = styles.AsciiStyle
)

// styleAliases maps friendly spellings onto glamour style names
var styleAliases = map[string]string{
	"tokyonight":  StyleTokyoNight,
	"tokyo_night": StyleTokyoNight,
	"plain":       StyleNoTTY,
}

// ResolveStyle normalizes a style name. Unknown names are treated as paths.
func ResolveStyle(style string) string {
	s := strings.ToLower(strings.TrimSpace(style))
	if alias, ok := styleAliases[s]; ok {
		return alias
	}
	if IsBuiltinStyle(s) {
		return s
	}
	return style
}

// IsBuiltinStyle reports whether style names a glamour built-in style
func IsBuiltinStyle(style string) bool {
	_, ok := styles.DefaultStyles[style]
	return ok
}

// ValidateStyle checks that style is a built-in or a readable JSON file
func ValidateStyle(style string) error {
	resolved := ResolveStyle(style)
	if IsBuiltinStyle(resolved) {
		return nil
	}
	if _, err := os.Stat(resolved); err != nil {
		return fmt.Errorf("unknown markdown style %q: not a built-in style or readable file", style)
	}
	return nil
}

func styleOption(style string) glamour.TermRendererOption {
	resolved := ResolveStyle(style)
	if IsBuiltinStyle(resolved) {
		return glamour.WithStandardStyle(resolved)
	}
	return glamour.WithStylePath(resolved)
}

// ThemeInfo describes a markdown style for display.
type ThemeInfo struct {
	Name        string
	Description string
}

// AvailableThemes lists the built-in markdown styles.
func AvailableThemes() []ThemeInfo {
	return []ThemeInfo{
		{Name: StyleDark, Description: "Dark theme (default)"},
		{Name: StyleLight, Description: "Light theme for bright terminals"},
		{Name: StyleTokyoNight, Description: "Tokyo Night color scheme"},
		{Name: StyleDracula, Description: "Dracula color scheme"},
		{Name: StyleNoTTY, Description: "Plain text (no styling)"},
		{Name: StyleASCII, Description: "ASCII-only output"},
	}
}
