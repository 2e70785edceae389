// Package picker is a terminal list for choosing one overlay candidate.
package picker

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"pinmark/pkg/bookmarklet"
)

// ErrCancelled is returned when the user leaves without choosing
var ErrCancelled = errors.New("no image chosen")

// Run shows candidates and returns the index the user picked
func Run(title string, candidates []bookmarklet.Candidate, opts ...tea.ProgramOption) (int, error) {
	if len(candidates) == 0 {
		return -1, ErrCancelled
	}

	final, err := tea.NewProgram(New(title, candidates), opts...).Run()
	if err != nil {
		return -1, fmt.Errorf("picker failed: %w", err)
	}
	m, ok := final.(Model)
	if !ok || m.Chosen() < 0 {
		return -1, ErrCancelled
	}
	return m.Chosen(), nil
}
