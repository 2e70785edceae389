package picker

import (
	"fmt"
	"net/url"
	"path"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"pinmark/pkg/bookmarklet"
)

// item is one candidate in the list
type item struct {
	index     int
	candidate bookmarklet.Candidate
}

func (i item) Title() string {
	name := i.candidate.SourceURL
	if u, err := url.Parse(name); err == nil && u.Path != "" {
		name = path.Base(u.Path)
	}
	return fmt.Sprintf("%d. %s", i.index+1, name)
}

func (i item) Description() string {
	return sizeStyle.Render(fmt.Sprintf("%dx%d", i.candidate.NaturalWidth, i.candidate.NaturalHeight)) +
		"  " + hintStyle.Render(i.candidate.SourceURL)
}

func (i item) FilterValue() string {
	return i.candidate.SourceURL
}

// Model lists candidates and records the one chosen
type Model struct {
	list     list.Model
	chosen   int
	quitting bool
}

// New creates a picker model titled title
func New(title string, candidates []bookmarklet.Candidate) Model {
	items := make([]list.Item, len(candidates))
	for i, c := range candidates {
		items[i] = item{index: i, candidate: c}
	}

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = selectedBorder
	delegate.Styles.SelectedDesc = selectedBorder

	l := list.New(items, delegate, 80, 20)
	l.Title = title
	l.Styles.Title = titleStyle
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{
			key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "bookmark")),
		}
	}

	return Model{list: l, chosen: -1}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v)
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "enter":
			if it, ok := m.list.SelectedItem().(item); ok {
				m.chosen = it.index
			}
			m.quitting = true
			return m, tea.Quit
		case "q", "esc", "ctrl+c":
			m.chosen = -1
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return docStyle.Render(m.list.View())
}

// Chosen is the index of the picked candidate, -1 when none was picked
func (m Model) Chosen() int {
	return m.chosen
}
