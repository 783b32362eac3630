package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"loom/internal/chat"
	"loom/internal/transcript"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const collapsedPayloadWidth = 60

var (
	userPrefixStyle = lipgloss.NewStyle().Faint(true).Bold(true)
	userTextStyle   = lipgloss.NewStyle().Faint(true)
	systemStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#CC0000"))
	partHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	partBodyStyle   = lipgloss.NewStyle().Faint(true)
)

// Entry maps one transcript entry to its display string. The text block
// always comes first (full cumulative re-render, see Markdown), followed
// by each structured part in arrival order. expanded selects between the
// one-line summary and the full payload for structured parts.
func Entry(e *transcript.Entry, width int, expanded bool) string {
	if e == nil {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	var blocks []string
	if e.RawText != "" {
		blocks = append(blocks, textBlock(e, width))
	}
	for _, p := range e.NonText {
		if block := PartBlock(p, width, expanded); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n")
}

func textBlock(e *transcript.Entry, width int) string {
	switch e.Role {
	case chat.RoleUser:
		// 用户输入原样展示，不走 markdown：输入的字面量不该被二次解释。
		lines := strings.Split(strings.TrimRight(Sanitize(e.RawText), "\n"), "\n")
		for i, line := range lines {
			if i == 0 {
				lines[i] = userPrefixStyle.Render("› ") + userTextStyle.Render(line)
				continue
			}
			lines[i] = "  " + userTextStyle.Render(line)
		}
		return strings.Join(lines, "\n")
	case chat.RoleSystem:
		return systemStyle.Render(Sanitize(strings.TrimRight(e.RawText, "\n")))
	default:
		return Markdown(e.RawText, width)
	}
}

// PartBlock renders one structured part as a labeled block: a kind+name
// header plus its payload. It never fails; whatever the backend sent is
// shown in some serialized form.
func PartBlock(p chat.Part, width int, expanded bool) string {
	if p.IsZero() || p.IsText() {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	var header string
	switch p.Type {
	case chat.KindFunctionCall:
		header = "⚙ call " + Sanitize(p.Name)
	case chat.KindFunctionResponse:
		header = "↳ result " + Sanitize(p.Name)
	default:
		header = "• " + Sanitize(p.Type)
	}

	payload := payloadJSON(p)
	if !expanded {
		summary := compactLine(payload, collapsedPayloadWidth)
		return partHeaderStyle.Render(header) + " " + partBodyStyle.Render(summary)
	}

	out := []string{partHeaderStyle.Render(header)}
	for _, line := range strings.Split(payload, "\n") {
		out = append(out, partBodyStyle.Render("  "+truncateLine(line, width-2)))
	}
	return strings.Join(out, "\n")
}

// payloadJSON pretty-prints the part's structured payload. Marshal
// failures fall back to fmt so malformed payloads still render.
func payloadJSON(p chat.Part) string {
	var (
		data []byte
		err  error
	)
	switch p.Type {
	case chat.KindFunctionCall:
		data, err = json.MarshalIndent(p.Args, "", "  ")
	case chat.KindFunctionResponse:
		data, err = json.MarshalIndent(p.Response, "", "  ")
	default:
		raw := p.Raw()
		var v any
		if uerr := json.Unmarshal(raw, &v); uerr == nil {
			data, err = json.MarshalIndent(v, "", "  ")
		} else {
			data = raw
		}
	}
	if err != nil {
		return Sanitize(fmt.Sprintf("%v", p))
	}
	return Sanitize(string(data))
}

// Sanitize strips control characters from literal (non-markdown) text so
// untrusted model or tool output cannot inject terminal escape
// sequences. Newlines and tabs survive.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// compactLine 把多行 JSON 折成一行：只去掉行首行尾的缩进，字符串值
// 内部的空白保持原样。
func compactLine(payload string, max int) string {
	lines := strings.Split(payload, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return truncateLine(strings.Join(lines, " "), max)
}

func truncateLine(line string, max int) string {
	if max <= 0 || runewidth.StringWidth(line) <= max {
		return line
	}
	return runewidth.Truncate(line, max-1, "…")
}
