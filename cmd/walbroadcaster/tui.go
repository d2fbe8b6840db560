package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pgdisagg/walbroadcaster/internal/config"
	"github.com/pgdisagg/walbroadcaster/internal/logging"
)

type keyMap struct {
	Quit key.Binding
}

func (k keyMap) ShortHelp() []key.Binding  { return []key.Binding{k.Quit} }
func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{{k.Quit}} }

var keys = keyMap{
	Quit: key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF")).
			MarginLeft(2).
			MarginTop(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	statsBoxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FF00")).
			Padding(1, 2).
			MarginLeft(2)

	peerIdleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	peerPendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	peerOfflineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1).
			MarginLeft(2)
)

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// operatorModel renders live broadcaster state pulled from the status feed;
// it never talks to the broadcaster directly, matching the observability
// boundary internal/statusfeed enforces.
type operatorModel struct {
	sess      *session
	addrs     []string
	committed uint64
	quitting  bool
	help      help.Model
	keys      keyMap
}

func newOperatorModel(sess *session) operatorModel {
	return operatorModel{sess: sess, addrs: sess.cfg.Safekeepers, help: help.New(), keys: keys}
}

func (m operatorModel) Init() tea.Cmd {
	return tickCmd()
}

func (m operatorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			m.sess.cancel()
			return m, tea.Quit
		}
	case tickMsg:
		if v, ok := m.sess.feed.Last("commit.lsn"); ok {
			if lsn, ok := v.(uint64); ok {
				m.committed = lsn
			}
		}
		return m, tickCmd()
	}
	return m, nil
}

func (m operatorModel) View() string {
	var s strings.Builder
	s.WriteString(titleStyle.Render("walbroadcaster"))
	s.WriteString("\n\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("committed LSN: %X", m.committed)))
	s.WriteString("\n\n")

	rows := make([]string, 0, len(m.addrs))
	for _, addr := range m.addrs {
		state := "unknown"
		if v, ok := m.sess.feed.Last("peer." + addr); ok {
			if str, ok := v.(string); ok {
				state = str
			}
		}
		rows = append(rows, fmt.Sprintf("%-22s %s", addr, styleForState(state)))
	}
	sort.Strings(rows)
	s.WriteString(statsBoxStyle.Render(strings.Join(rows, "\n")))

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render(m.help.ShortHelpView(m.keys.ShortHelp())))
	return s.String()
}

func styleForState(state string) string {
	switch state {
	case "Idle", "SendWal":
		return peerIdleStyle.Render(state)
	case "Offline":
		return peerOfflineStyle.Render(state)
	default:
		return peerPendingStyle.Render(state)
	}
}

func runTUIMode(cfg config.Config, log logging.Logger) int {
	sess, err := newSession(cfg, log)
	if err != nil {
		fmt.Println("walbroadcaster:", err)
		return 1
	}
	defer sess.close()

	sess.start()

	p := tea.NewProgram(newOperatorModel(sess), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Error("tui exited with error", logging.Error(err))
		return 1
	}

	select {
	case err := <-sess.runErr:
		if err != nil {
			log.Error("broadcaster terminated with error", logging.Error(err))
			return 1
		}
	default:
	}
	return 0
}
