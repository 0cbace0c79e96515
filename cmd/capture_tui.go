package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/smazurov/framereactor/internal/pipeline"
)

const statsInterval = 250 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Width(12).Foreground(lipgloss.Color("8"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type statsTickMsg time.Time

type captureDoneMsg struct {
	err error
}

// captureModel is the bubbletea model behind capture --tui.
type captureModel struct {
	device string
	limit  uint64
	poll   func() pipeline.Stats

	stats    pipeline.Stats
	fps      float64
	lastN    uint64
	lastAt   time.Time
	started  time.Time
	finished bool
	err      error
}

func newCaptureModel(device string, limit uint64, poll func() pipeline.Stats) captureModel {
	now := time.Now()
	return captureModel{device: device, limit: limit, poll: poll, lastAt: now, started: now}
}

func statsTick() tea.Cmd {
	return tea.Tick(statsInterval, func(t time.Time) tea.Msg { return statsTickMsg(t) })
}

func (m captureModel) Init() tea.Cmd {
	return statsTick()
}

func (m captureModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case statsTickMsg:
		now := time.Time(msg)
		m.stats = m.poll()
		if dt := now.Sub(m.lastAt).Seconds(); dt > 0 {
			m.fps = float64(m.stats.Written-m.lastN) / dt
		}
		m.lastN, m.lastAt = m.stats.Written, now
		return m, statsTick()

	case captureDoneMsg:
		m.stats = m.poll()
		m.finished = true
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m captureModel) View() string {
	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}

	b.WriteString(titleStyle.Render("framereactor capture "+m.device) + "\n\n")
	if m.stats.Format.Width > 0 {
		row("format", fmt.Sprintf("%s -> %s", m.stats.Format, m.stats.Output))
	}
	written := fmt.Sprintf("%d", m.stats.Written)
	if m.limit > 0 {
		written = fmt.Sprintf("%d / %d", min(m.stats.Written, m.limit), m.limit)
	}
	row("written", written)
	row("rate", fmt.Sprintf("%.1f fps", m.fps))
	row("dropped", fmt.Sprintf("%d", m.stats.Dropped))
	row("queue", fmt.Sprintf("%d", m.stats.QueueDepth))
	row("ring", fmt.Sprintf("%d queued, %d held of %d", m.stats.Ring.Queued, m.stats.Ring.Filled, m.stats.Ring.Slots))
	row("recovered", fmt.Sprintf("%d", m.stats.Ring.Recovered))
	row("elapsed", time.Since(m.started).Round(time.Second).String())

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	if !m.finished {
		b.WriteString("\nq to stop")
	}
	return boxStyle.Render(b.String()) + "\n"
}
