package render

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// rendererCache keeps one glamour renderer per width. Building a
// renderer is expensive; every transcript refresh would otherwise pay
// that cost per entry.
var rendererCache sync.Map // map[int]*glamour.TermRenderer

func getRenderer(width int) (*glamour.TermRenderer, error) {
	if cached, ok := rendererCache.Load(width); ok {
		return cached.(*glamour.TermRenderer), nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	rendererCache.Store(width, r)
	return r, nil
}

// Markdown 每次都对整段累计文本做完整重渲染。流式截断点上的 markdown
// 往往不完整（未闭合的代码块、强调符号），增量拼接渲染结果会产生错误
// 标记；整段重渲染保证输出始终是“某个前缀”的正确渲染。
// On any renderer failure the raw text is returned unchanged.
func Markdown(text string, width int) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}
	r, err := getRenderer(width)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}
