package tui

import (
	"strings"

	"github.com/sahilm/fuzzy"
)

// slashCommand 是内置斜杠命令的一行条目。
type slashCommand struct {
	name string
	desc string
}

var slashCommands = []slashCommand{
	{"help", "toggle the key binding help"},
	{"expand", "toggle expanded tool call blocks"},
	{"reload", "re-fetch the full history from the server"},
	{"copy", "copy the last model reply to the clipboard"},
	{"quit", "leave loom"},
	{"exit", "leave loom"},
}

// filterSlash 按输入前缀模糊过滤命令。query 不含前导斜杠；空 query
// 返回全部。
func filterSlash(query string) []slashCommand {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" {
		out := make([]slashCommand, len(slashCommands))
		copy(out, slashCommands)
		return out
	}
	keys := make([]string, len(slashCommands))
	for i, c := range slashCommands {
		keys[i] = c.name
	}
	results := fuzzy.Find(query, keys)
	out := make([]slashCommand, 0, len(results))
	for _, res := range results {
		out = append(out, slashCommands[res.Index])
	}
	return out
}

// palette 维护斜杠弹窗的候选与光标。
type palette struct {
	open    bool
	items   []slashCommand
	cursor  int
	lastRaw string
}

// Sync 根据当前输入框内容开合弹窗并刷新候选。
func (p *palette) Sync(input string) {
	if !strings.HasPrefix(input, "/") || strings.ContainsAny(input, " \n") {
		p.Close()
		return
	}
	if input == p.lastRaw && p.open {
		return
	}
	p.lastRaw = input
	p.items = filterSlash(strings.TrimPrefix(input, "/"))
	p.open = len(p.items) > 0
	if p.cursor >= len(p.items) {
		p.cursor = 0
	}
}

func (p *palette) Close() {
	p.open = false
	p.items = nil
	p.cursor = 0
	p.lastRaw = ""
}

func (p *palette) Move(delta int) {
	if len(p.items) == 0 {
		return
	}
	p.cursor = (p.cursor + delta + len(p.items)) % len(p.items)
}

// Selected 返回当前选中的命令。
func (p *palette) Selected() (slashCommand, bool) {
	if !p.open || p.cursor >= len(p.items) {
		return slashCommand{}, false
	}
	return p.items[p.cursor], true
}
