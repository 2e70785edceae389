// Package ui prints pinmark's terminal output.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"pinmark/pkg/bookmarklet"
)

// ASCIILogo is printed before interactive commands
const ASCIILogo = `
 ┏━┓╻┏┓╻┏┳┓┏━┓┏━┓╻┏ 
 ┣━┛┃┃┗┫┃┃┃┣━┫┣┳┛┣┻┓
 ╹  ╹╹ ╹╹ ╹╹ ╹╹┗╸╹ ╹
  bookmark any image
`

var (
	cyan    = lipgloss.Color("#00FFFF")
	magenta = lipgloss.Color("#FF00FF")
	green   = lipgloss.Color("#39FF14")
	yellow  = lipgloss.Color("#FFFF00")
	red     = lipgloss.Color("#FF3131")
	dim     = lipgloss.Color("#B0B0B0")

	logoStyle      = lipgloss.NewStyle().Foreground(cyan).Bold(true)
	labelStyle     = lipgloss.NewStyle().Foreground(cyan)
	valueStyle     = lipgloss.NewStyle().Foreground(yellow)
	errorStyle     = lipgloss.NewStyle().Foreground(red).Bold(true)
	successStyle   = lipgloss.NewStyle().Foreground(green).Bold(true)
	warningStyle   = lipgloss.NewStyle().Foreground(yellow)
	highlightStyle = lipgloss.NewStyle().Foreground(magenta).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(dim).Faint(true)
)

var (
	mu    sync.Mutex
	out   io.Writer = os.Stdout
	quiet bool
)

// SetOutput redirects everything printed by this package
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// IsQuiet reports whether quiet mode is on
func IsQuiet() bool {
	mu.Lock()
	defer mu.Unlock()
	return quiet
}

func emit(always bool, s string) {
	mu.Lock()
	defer mu.Unlock()
	if quiet && !always {
		return
	}
	fmt.Fprintln(out, s)
}

func withDetail(msg string, args []interface{}) string {
	if len(args) > 0 && fmt.Sprint(args[0]) != "" {
		return msg + ": " + fmt.Sprint(args[0])
	}
	return msg
}

// PrintLogo prints the logo
func PrintLogo() {
	emit(false, logoStyle.Render(ASCIILogo))
}

// PrintError prints an error message; it is shown even in quiet mode
func PrintError(msg string, args ...interface{}) {
	emit(true, errorStyle.Render(withDetail(msg, args)))
}

// PrintSuccess prints a success message
func PrintSuccess(msg string) {
	emit(false, successStyle.Render(msg))
}

// PrintInfo prints a label and its value
func PrintInfo(label string, value string) {
	emit(false, labelStyle.Render(label)+": "+valueStyle.Render(value))
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	emit(false, warningStyle.Render(withDetail(msg, args)))
}

// PrintHighlight prints a highlighted message
func PrintHighlight(msg string) {
	emit(false, highlightStyle.Render(msg))
}

// PrintResult prints a command's main output. It is shown in quiet mode so
// scripts can consume it.
func PrintResult(s string) {
	emit(true, s)
}

// PrintCandidates lists overlay candidates, numbered from 1
func PrintCandidates(candidates []bookmarklet.Candidate) {
	if len(candidates) == 0 {
		PrintWarning("No images large enough to bookmark")
		return
	}

	var b strings.Builder
	for i, c := range candidates {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s  %s",
			labelStyle.Render(fmt.Sprintf("%3d.", i+1)),
			valueStyle.Render(fmt.Sprintf("%5dx%-5d", c.NaturalWidth, c.NaturalHeight)),
			c.SourceURL)
	}
	emit(true, b.String())
	emit(false, dimStyle.Render(fmt.Sprintf("%d candidate(s)", len(candidates))))
}
