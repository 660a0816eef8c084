package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"sipbacktest/internal/config"
	"sipbacktest/internal/domain"
	"sipbacktest/internal/report"
	"sipbacktest/internal/store"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type model struct {
	labels    []string
	timelines map[string][]domain.PortfolioPoint
	idx       int
	monthly   bool

	viewport      viewport.Model
	ready         bool
	width, height int
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "right", "l", "tab":
			m.idx = (m.idx + 1) % len(m.labels)
			m.refresh()
			return m, nil
		case "left", "h", "shift+tab":
			m.idx = (m.idx - 1 + len(m.labels)) % len(m.labels)
			m.refresh()
			return m, nil
		case "d":
			m.monthly = !m.monthly
			m.refresh()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		vpHeight := max(m.height-2, 1)
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
			m.viewport.SetContent(m.content())
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
	}

	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.content())
	m.viewport.GotoTop()
}

func (m model) content() string {
	label := m.labels[m.idx]
	return report.RenderTimeline(label, m.timelines[label], m.monthly)
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}
	mode := "daily"
	if m.monthly {
		mode = "month-end"
	}
	header := fmt.Sprintf(" %s  [%d/%d]  %s ", m.labels[m.idx], m.idx+1, len(m.labels), mode)
	footer := "←/→ strategy   d daily/month-end   ↑/↓ scroll   q quit"
	return strings.Join([]string{
		headerStyle.Render(padOrTrunc(header, m.width)),
		m.viewport.View(),
		footerStyle.Render(padOrTrunc(footer, m.width)),
	}, "\n")
}

func padOrTrunc(s string, w int) string {
	r := []rune(s)
	if len(r) >= w {
		return string(r[:w])
	}
	return s + strings.Repeat(" ", w-len(r))
}

func main() {
	path := flag.String("timeline", "", "timeline parquet file (defaults to backtest.timeline_path)")
	daily := flag.Bool("daily", false, "start with every trading day instead of month-end rows")
	flag.Parse()

	if *path == "" {
		cfg, err := config.Load(config.Path())
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		*path = cfg.Backtest.TimelinePath
	}
	if *path == "" {
		log.Fatal("no timeline file: pass -timeline or set backtest.timeline_path")
	}

	timelines, err := store.ReadTimeline(*path)
	if err != nil {
		log.Fatalf("failed to read timeline: %v", err)
	}
	if len(timelines) == 0 {
		log.Fatalf("timeline %s is empty", *path)
	}
	labels := make([]string, 0, len(timelines))
	for label := range timelines {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	m := model{labels: labels, timelines: timelines, monthly: !*daily}
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
