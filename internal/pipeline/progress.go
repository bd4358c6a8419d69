package pipeline

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ProgressUpdate reports how far a long-running step has advanced. total
// of 0 means the step has no known total (indeterminate).
type ProgressUpdate struct {
	Label string
	Done  int
	Total int
}

type progressTickMsg struct{}

type progressModel struct {
	label    string
	done     int
	total    int
	updates  <-chan ProgressUpdate
	finished bool
}

var (
	progressLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	progressBarStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

func (m progressModel) Init() tea.Cmd {
	return m.waitForUpdate()
}

func (m progressModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		update, ok := <-m.updates
		if !ok {
			return progressTickMsg{}
		}
		return update
	}
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case ProgressUpdate:
		m.label = v.Label
		m.done = v.Done
		m.total = v.Total
		return m, m.waitForUpdate()
	case progressTickMsg:
		m.finished = true
		return m, tea.Quit
	case tea.KeyMsg:
		if v.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.finished {
		return ""
	}
	if m.total <= 0 {
		return fmt.Sprintf("%s %s %d\n", progressLabelStyle.Render(m.label), progressBarStyle.Render("…"), m.done)
	}
	pct := float64(m.done) / float64(m.total)
	width := 30
	filled := int(pct * float64(width))
	bar := progressBarStyle.Render(repeat("█", filled)) + repeat("░", width-filled)
	return fmt.Sprintf("%s [%s] %d/%d\n", progressLabelStyle.Render(m.label), bar, m.done, m.total)
}

func repeat(s string, n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

// RunProgress drives a minimal terminal progress display fed by updates,
// for the long-running embedding-encode phase. The caller closes updates
// when the step completes.
func RunProgress(label string, updates <-chan ProgressUpdate) error {
	p := tea.NewProgram(progressModel{label: label, updates: updates})
	_, err := p.Run()
	if err != nil {
		return IndexError("run progress display: " + err.Error())
	}
	return nil
}
