package picker

import (
	"bytes"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pinmark/pkg/bookmarklet"
)

var candidates = []bookmarklet.Candidate{
	{SourceURL: "http://host.test/media/big.jpg", NaturalWidth: 640, NaturalHeight: 480},
	{SourceURL: "https://cdn.test/wide.jpeg?x=1", NaturalWidth: 300, NaturalHeight: 250},
	{SourceURL: "http://host.test/media/square.png", NaturalWidth: 500, NaturalHeight: 500},
}

func send(m tea.Model, msgs ...tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, msg := range msgs {
		m, cmd = m.Update(msg)
	}
	return m, cmd
}

func TestEnterChoosesHighlighted(t *testing.T) {
	m, cmd := send(New("Pick", candidates),
		tea.KeyMsg{Type: tea.KeyDown},
		tea.KeyMsg{Type: tea.KeyDown},
		tea.KeyMsg{Type: tea.KeyEnter},
	)

	assert.Equal(t, 2, m.(Model).Chosen())
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestEscapeCancels(t *testing.T) {
	m, cmd := send(New("Pick", candidates),
		tea.KeyMsg{Type: tea.KeyDown},
		tea.KeyMsg{Type: tea.KeyEsc},
	)

	assert.Equal(t, -1, m.(Model).Chosen())
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestViewListsCandidates(t *testing.T) {
	m, _ := send(New("Select an image", candidates), tea.WindowSizeMsg{Width: 120, Height: 40})
	view := m.View()

	assert.Contains(t, view, "Select an image")
	assert.Contains(t, view, "1. big.jpg")
	assert.Contains(t, view, "640x480")
	assert.Contains(t, view, "2. wide.jpeg")
}

func TestItemText(t *testing.T) {
	it := item{index: 0, candidate: candidates[1]}
	assert.Equal(t, "1. wide.jpeg", it.Title())
	assert.Equal(t, candidates[1].SourceURL, it.FilterValue())
	assert.Contains(t, it.Description(), "300x250")
}

func TestRunWithScriptedInput(t *testing.T) {
	var out bytes.Buffer
	in := strings.NewReader("j\r")

	chosen, err := Run("Pick", candidates, tea.WithInput(in), tea.WithOutput(&out))
	require.NoError(t, err)
	assert.Equal(t, 1, chosen)
}

func TestRunWithNothingToPick(t *testing.T) {
	_, err := Run("Pick", nil)
	assert.ErrorIs(t, err, ErrCancelled)
}
