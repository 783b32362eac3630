package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5E6472")).
			Padding(0, 1)
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D7A85")).
			Padding(0, 1)
	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFB454"))
	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			BorderForeground(lipgloss.Color("#FFB454"))
	paletteSelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)
)

func (m *Model) View() string {
	banner := bannerStyle.Width(maxInt(40, m.width)).Render(fmt.Sprintf(">_ loom · %s", m.url))
	chat := m.viewport.View()
	composer := paneStyle.Width(maxInt(20, m.width)).Render(m.textarea.View())
	status := m.statusLine()
	hints := mutedStyle.Width(maxInt(20, m.width)).
		Render("Enter 发送 • Alt+Enter 换行 • Ctrl+E 展开工具块 • Ctrl+Y 复制回复 • PgUp/PgDn 滚动 • Ctrl+C 退出")

	content := lipgloss.JoinVertical(lipgloss.Left, banner, chat, composer, status, hints)

	if m.palette.open {
		return lipgloss.JoinVertical(lipgloss.Left, content, modalStyle.Render(m.paletteView()))
	}
	if m.showHelp {
		help := strings.Join([]string{
			"斜杠命令",
			"/help 帮助 • /expand 展开工具块 • /reload 重新拉取历史",
			"/copy 复制最近回复 • /quit 退出",
		}, "\n")
		return lipgloss.JoinVertical(lipgloss.Left, content, modalStyle.Render(help))
	}
	return content
}

func (m *Model) statusLine() string {
	var parts []string
	switch m.phase {
	case phaseAwaitingFirst:
		parts = append(parts, m.spin.View()+" Waiting for reply…")
	case phaseStreaming:
		parts = append(parts, m.spin.View()+" Streaming…")
	}
	if m.expanded {
		parts = append(parts, "expanded")
	}
	if m.notice != "" {
		parts = append(parts, noticeStyle.Render(m.notice))
	}
	if len(parts) == 0 {
		parts = append(parts, "Ready")
	}
	return mutedStyle.Width(maxInt(20, m.width)).Render(strings.Join(parts, " • "))
}

func (m *Model) paletteView() string {
	lines := make([]string, 0, len(m.palette.items))
	for i, item := range m.palette.items {
		line := fmt.Sprintf("/%s  %s", item.name, item.desc)
		if i == m.palette.cursor {
			line = paletteSelStyle.Render("▸ " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
