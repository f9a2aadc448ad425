// Package tui renders live assignment countdowns in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"deadlinemaster/internal/countdown"
	"deadlinemaster/internal/domain"
)

const fetchTimeout = 5 * time.Second

type tickMsg time.Time

type reloadMsg time.Time

type loadedMsg struct {
	items []domain.Assignment
	err   error
}

type Model struct {
	fetch   Fetcher
	now     func() time.Time
	refresh time.Duration
	reload  time.Duration

	items    []domain.Assignment
	err      error
	loaded   bool
	lastLoad time.Time
	width    int
}

func New(f Fetcher, refresh, reload time.Duration, now func() time.Time) Model {
	if now == nil {
		now = time.Now
	}
	return Model{fetch: f, now: now, refresh: refresh, reload: reload}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.load(), m.tick(), m.scheduleReload())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) scheduleReload() tea.Cmd {
	return tea.Tick(m.reload, func(t time.Time) tea.Msg { return reloadMsg(t) })
}

func (m Model) load() tea.Cmd {
	f := m.fetch
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		items, err := f.Fetch(ctx)
		return loadedMsg{items: items, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.load()
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		return m, m.tick()
	case reloadMsg:
		return m, tea.Batch(m.load(), m.scheduleReload())
	case loadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.items = msg.items
			m.loaded = true
			m.lastLoad = m.now()
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	now := m.now()

	b.WriteString(headerStyle.Render("⏰ Deadline Master"))
	b.WriteString("\n\n")

	switch {
	case !m.loaded && m.err == nil:
		b.WriteString(helpStyle.Render("loading…"))
		b.WriteString("\n")
	case m.loaded && len(m.items) == 0:
		b.WriteString(helpStyle.Render("no assignments"))
		b.WriteString("\n")
	}

	titleW := 0
	for _, a := range m.items {
		titleW = max(titleW, lipgloss.Width(a.Title))
	}
	for _, a := range m.items {
		b.WriteString(m.row(a, now, titleW))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	status := fmt.Sprintf("%d assignments", len(m.items))
	if !m.lastLoad.IsZero() {
		status += " · synced " + m.lastLoad.Format("15:04:05")
	}
	b.WriteString("\n")
	b.WriteString(statusBarStyle.Render(status))
	b.WriteString("  ")
	b.WriteString(helpStyle.Render("r reload · q quit"))
	return b.String()
}

func (m Model) row(a domain.Assignment, now time.Time, titleW int) string {
	tr := countdown.Classify(a.DueDate, now, a.Completed)

	title := a.Title + strings.Repeat(" ", titleW-lipgloss.Width(a.Title))
	if a.Completed {
		title = doneTitleStyle.Render(title)
	}
	clock := countdown.Format(tr)
	if tr.Completed || tr.IsOverdue {
		clock = "--"
	}
	return fmt.Sprintf("%s  %s  %s  %s  %s",
		title,
		priorityStyle(a.Priority).Render(fmt.Sprintf("%-6s", a.Priority)),
		tierStyle(tr).Render(fmt.Sprintf("%-15s", clock)),
		tierStyle(tr).Render(countdown.StatusMessage(tr)),
		helpStyle.Render(a.Subject),
	)
}
