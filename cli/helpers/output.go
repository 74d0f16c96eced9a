package helpers

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/common-nighthawk/go-figure"
	"github.com/mattn/go-isatty"
)

var (
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F2C94C"))
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func render(w io.Writer, style lipgloss.Style, s string) string {
	if !IsTerminal(w) {
		return s
	}
	return style.Render(s)
}

// Banner prints the ASCII logo. Nothing is printed to pipes or files.
func Banner(w io.Writer) {
	if !IsTerminal(w) {
		return
	}
	logo := figure.NewFigure("SIGAUTH", "standard", true)
	fmt.Fprintln(w, bannerStyle.Render(logo.String()))
}

// Success prints a highlighted confirmation line.
func Success(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, render(w, successStyle, fmt.Sprintf(format, args...)))
}

// Warn prints a highlighted warning line.
func Warn(w io.Writer, format string, args ...any) {
	fmt.Fprintln(w, render(w, warnStyle, fmt.Sprintf(format, args...)))
}

// Field prints a "label: value" pair.
func Field(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", render(w, labelStyle, label+":"), value)
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
