package tui

import (
	"fmt"
	"strconv"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jsphweid/dsmidiplayer/widget"
)

var (
	buttonStyle  = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder())
	activeStyle  = buttonStyle.BorderForeground(lipgloss.Color("#fff")).Bold(true)
	editingStyle = buttonStyle.BorderForeground(lipgloss.Color("#7cf"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#f55"))
)

const tempoStep = 5

// Controls is the part of the widget the terminal UI drives.
type Controls interface {
	TogglePlayPause() error
	Stop() error
	SetTempo(bpm float64) (float64, error)
	Snapshot() widget.Snapshot
}

type Model struct {
	player   Controls
	snap     widget.Snapshot
	tempo    string
	editing  bool
	err      error
	quitting bool
}

type refreshMsg time.Time

func NewModel(player Controls) Model {
	snap := player.Snapshot()
	return Model{
		player: player,
		snap:   snap,
		tempo:  formatTempo(snap.BPM),
	}
}

func refresh() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return refresh()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m = m.handleKey(msg.String())
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil

	case refreshMsg:
		m.snap = m.player.Snapshot()
		if !m.editing {
			m.tempo = formatTempo(m.snap.BPM)
		}
		return m, refresh()
	}
	return m, nil
}

func (m Model) handleKey(key string) Model {
	switch key {
	case "q", "ctrl+c":
		m.quitting = true
		return m

	case " ", "p":
		m.err = m.player.TogglePlayPause()

	case "s":
		m.err = m.player.Stop()

	case "+", "=":
		m = m.applyTempo(m.snap.BPM + tempoStep)

	case "-", "_":
		m = m.applyTempo(m.snap.BPM - tempoStep)

	case "backspace":
		if m.editing && len(m.tempo) > 0 {
			m.tempo = m.tempo[:len(m.tempo)-1]
		}

	case "esc":
		m.editing = false
		m.tempo = formatTempo(m.snap.BPM)

	case "enter":
		if !m.editing {
			break
		}
		bpm, err := strconv.ParseFloat(m.tempo, 64)
		if err != nil {
			m.err = fmt.Errorf("tempo %q is not a number", m.tempo)
			m.editing = false
			m.tempo = formatTempo(m.snap.BPM)
			break
		}
		m = m.applyTempo(bpm)

	default:
		if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
			if !m.editing {
				m.editing = true
				m.tempo = ""
			}
			if len(m.tempo) < 3 {
				m.tempo += key
			}
		}
	}

	m.snap = m.player.Snapshot()
	return m
}

func (m Model) applyTempo(bpm float64) Model {
	m.editing = false
	applied, err := m.player.SetTempo(bpm)
	m.err = err
	if err == nil {
		m.tempo = formatTempo(applied)
	} else {
		m.tempo = formatTempo(m.snap.BPM)
	}
	return m
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	tempoBox := buttonStyle
	if m.editing {
		tempoBox = editingStyle
	}
	playBox := buttonStyle
	if m.snap.State == widget.Playing {
		playBox = activeStyle
	}

	controls := lipgloss.JoinHorizontal(lipgloss.Top,
		tempoBox.Render(fmt.Sprintf("%3s bpm", m.tempo)),
		playBox.Render(m.snap.PlayPauseLabel),
		buttonStyle.Render("Reset"),
	)

	status := statusStyle.Render(fmt.Sprintf("%s  %s  %d events (%d duplicates dropped)",
		m.snap.State, m.snap.Src, m.snap.Entries, m.snap.Removed))

	var errLine string
	if m.err != nil {
		errLine = errStyle.Render(m.err.Error())
	} else if m.snap.Err != nil {
		errLine = errStyle.Render(m.snap.Err.Error())
	}

	help := dimStyle.Render("space/p:play-pause  s:reset  0-9+enter:tempo  +/-:nudge  q:quit")
	return fmt.Sprintf("\n%s\n%s\n%s\n\n%s\n", controls, status, errLine, help)
}

func formatTempo(bpm float64) string {
	return strconv.FormatFloat(bpm, 'f', -1, 64)
}
