// Package tui 实现 loom 的交互界面：上方会话视图 + 下方输入框。
// 会话内容由 transcript 包维护，这里只负责事件驱动与重绘。
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"loom/internal/chat"
	"loom/internal/history"
	"loom/internal/logger"
	"loom/internal/render"
	"loom/internal/stream"
	"loom/internal/transcript"
)

// Options 汇总 TUI 的外部依赖。
type Options struct {
	Client  *stream.Client
	URL     string
	Prompts *history.Store
}

// phase 是回合状态机：一次只允许一个进行中的回合。
type phase int

const (
	phaseIdle phase = iota
	// phaseAwaitingFirst 已发送、第一帧还没到。
	phaseAwaitingFirst
	phaseStreaming
)

type historyMsg struct {
	msgs []chat.Message
	err  error
}

type turnOpenedMsg struct {
	turn *stream.Turn
	err  error
}

type turnEventMsg struct {
	ev stream.TurnEvent
	ok bool
}

type clipboardMsg struct {
	err error
}

type Model struct {
	textarea textarea.Model
	viewport viewport.Model
	spin     spinner.Model

	client     *stream.Client
	transcript *transcript.Transcript
	turn       *stream.Turn
	phase      phase
	expanded   bool
	showHelp   bool

	prompts    *history.Store
	promptHist promptHistory
	palette    palette

	url    string
	width  int
	height int

	transcriptDirty bool
	followBottom    bool
	notice          string

	log *logger.LogEntry
}

func New(opts Options) *Model {
	ti := textarea.New()
	ti.Placeholder = "Ask anything…"
	ti.Prompt = "› "
	ti.CharLimit = 0
	ti.SetWidth(90)
	ti.SetHeight(1) // 默认单行，按需扩展
	ti.ShowLineNumbers = false
	ti.Focus()

	vp := viewport.New(90, 16)
	vp.SetContent("Connecting…")

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	m := Model{
		textarea:        ti,
		viewport:        vp,
		spin:            spin,
		client:          opts.Client,
		transcript:      transcript.New(),
		prompts:         opts.Prompts,
		url:             opts.URL,
		width:           90,
		height:          24,
		transcriptDirty: true,
		followBottom:    true,
		log:             logger.Named("tui"),
	}
	if opts.Prompts != nil {
		if texts, err := opts.Prompts.Recent(200); err == nil {
			m.promptHist.Set(texts)
		} else {
			m.log.Warnf("load prompt history: %v", err)
		}
	}
	return &m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, textarea.Blink, m.fetchHistory())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m.finish(cmds...)

	case historyMsg:
		if msg.err != nil {
			// 历史加载失败不清空已有内容，只追加一条系统说明。
			m.log.Warnf("history load failed: %v", msg.err)
			m.transcript.AppendSystem(fmt.Sprintf("history load failed: %v", msg.err))
		} else {
			m.transcript.Reset(msg.msgs)
		}
		m.refreshTranscript()
		return m.finish(cmds...)

	case turnOpenedMsg:
		if msg.err != nil {
			m.transcript.AppendSystem(fmt.Sprintf("send failed: %v", msg.err))
			m.endTurn()
			return m.finish(cmds...)
		}
		m.turn = msg.turn
		cmds = append(cmds, m.listenTurn())
		return m.finish(cmds...)

	case turnEventMsg:
		cmds = append(cmds, m.handleTurnEvent(msg)...)
		return m.finish(cmds...)

	case clipboardMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("copy failed: %v", msg.err)
		} else {
			m.notice = "copied last reply"
		}
		return m.finish(cmds...)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
		return m.finish(cmds...)

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			if cmd != nil {
				cmds = append(cmds, cmd)
			}
			return m.finish(cmds...)
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	m.palette.Sync(m.textarea.Value())
	m.setComposerHeight()
	cmds = append(cmds, cmd)
	return m.finish(cmds...)
}

func (m *Model) finish(cmds ...tea.Cmd) (tea.Model, tea.Cmd) {
	if m.transcriptDirty {
		m.flushTranscript()
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if m.palette.open {
		switch msg.String() {
		case "up", "ctrl+p":
			m.palette.Move(-1)
			return nil, true
		case "down", "ctrl+n":
			m.palette.Move(1)
			return nil, true
		case "tab":
			if sel, ok := m.palette.Selected(); ok {
				m.textarea.SetValue("/" + sel.name)
				m.textarea.CursorEnd()
			}
			return nil, true
		case "enter":
			if sel, ok := m.palette.Selected(); ok {
				m.palette.Close()
				m.textarea.Reset()
				m.setComposerHeight()
				return m.runSlash(sel.name), true
			}
		case "esc":
			m.palette.Close()
			return nil, true
		}
	}

	switch msg.String() {
	case "ctrl+c":
		return tea.Quit, true
	case "ctrl+e":
		m.expanded = !m.expanded
		m.refreshTranscript()
		return nil, true
	case "ctrl+y":
		return m.copyLastReply(), true
	case "pgup":
		m.viewport.PageUp()
		m.followBottom = m.viewport.AtBottom()
		return nil, true
	case "pgdown":
		m.viewport.PageDown()
		m.followBottom = m.viewport.AtBottom()
		return nil, true
	case "home":
		m.viewport.GotoTop()
		m.followBottom = false
		return nil, true
	case "end":
		m.viewport.GotoBottom()
		m.followBottom = true
		return nil, true
	case "alt+up":
		m.viewport.ScrollUp(1)
		m.followBottom = m.viewport.AtBottom()
		return nil, true
	case "alt+down":
		m.viewport.ScrollDown(1)
		m.followBottom = m.viewport.AtBottom()
		return nil, true
	case "up":
		if m.textarea.LineCount() <= 1 || m.promptHist.Browsing() {
			if text, ok := m.promptHist.Prev(m.textarea.Value()); ok {
				m.textarea.SetValue(text)
				m.textarea.CursorEnd()
				m.setComposerHeight()
			}
			return nil, true
		}
	case "down":
		if m.promptHist.Browsing() {
			if text, ok := m.promptHist.Next(); ok {
				m.textarea.SetValue(text)
				m.textarea.CursorEnd()
				m.setComposerHeight()
			}
			return nil, true
		}
	case "alt+enter":
		m.textarea.InsertString("\n")
		m.setComposerHeight()
		return nil, true
	case "enter":
		input := strings.TrimSpace(m.textarea.Value())
		if input == "" {
			return nil, true
		}
		if strings.HasPrefix(input, "/") {
			m.palette.Close()
			m.textarea.Reset()
			m.setComposerHeight()
			return m.runSlash(strings.TrimPrefix(strings.Fields(input)[0], "/")), true
		}
		return m.submit(input), true
	}
	return nil, false
}

// submit 开启一个新回合。回合互斥：进行中时丢弃输入并提示。
func (m *Model) submit(input string) tea.Cmd {
	if m.phase != phaseIdle {
		m.notice = "a turn is already in progress"
		return nil
	}
	m.notice = ""
	m.transcript.ApplyLive(chat.UserMessage(input))
	m.refreshTranscript()
	m.followBottom = true

	m.promptHist.Add(input)
	if m.prompts != nil {
		if err := m.prompts.Append(input); err != nil {
			m.log.Warnf("persist prompt: %v", err)
		}
	}

	m.textarea.Reset()
	m.setComposerHeight()
	m.phase = phaseAwaitingFirst

	client := m.client
	return func() tea.Msg {
		turn, err := client.OpenTurn(context.Background(), chat.UserMessage(input))
		return turnOpenedMsg{turn: turn, err: err}
	}
}

// listenTurn 等下一帧。bubbletea 的 Cmd 一次只能递一个消息，收到后由
// handleTurnEvent 续上。
func (m *Model) listenTurn() tea.Cmd {
	turn := m.turn
	if turn == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-turn.Events()
		return turnEventMsg{ev: ev, ok: ok}
	}
}

func (m *Model) handleTurnEvent(msg turnEventMsg) []tea.Cmd {
	if !msg.ok {
		// 通道关闭，回合正常结束。
		m.endTurn()
		m.refreshTranscript()
		return nil
	}
	if msg.ev.Err != nil {
		m.transcript.AppendSystem(fmt.Sprintf("stream failed: %v", msg.ev.Err))
		m.endTurn()
		m.refreshTranscript()
		return nil
	}
	m.phase = phaseStreaming
	m.transcript.ApplyLive(msg.ev.Message)
	// 每次合并后都跟到底部，新内容始终可见。
	m.followBottom = true
	m.refreshTranscript()
	return []tea.Cmd{m.listenTurn()}
}

// endTurn 无条件回到可输入状态。出错的回合也必须解除互斥。
func (m *Model) endTurn() {
	if m.turn != nil {
		m.turn.Close()
		m.turn = nil
	}
	m.phase = phaseIdle
	m.textarea.Focus()
}

func (m *Model) fetchHistory() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		msgs, err := client.History(context.Background())
		return historyMsg{msgs: msgs, err: err}
	}
}

func (m *Model) runSlash(name string) tea.Cmd {
	switch name {
	case "quit", "exit":
		return tea.Quit
	case "help":
		m.showHelp = !m.showHelp
	case "expand":
		m.expanded = !m.expanded
		m.refreshTranscript()
	case "reload":
		if m.phase != phaseIdle {
			m.notice = "cannot reload during a turn"
			return nil
		}
		return m.fetchHistory()
	case "copy":
		return m.copyLastReply()
	default:
		m.notice = fmt.Sprintf("unknown command: /%s", name)
	}
	return nil
}

// copyLastReply 把最近一条 model 发言的累计文本写入剪贴板。
func (m *Model) copyLastReply() tea.Cmd {
	var text string
	entries := m.transcript.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Role == chat.RoleModel && entries[i].RawText != "" {
			text = entries[i].RawText
			break
		}
	}
	if text == "" {
		m.notice = "nothing to copy"
		return nil
	}
	return func() tea.Msg {
		return clipboardMsg{err: clipboard.WriteAll(text)}
	}
}

func (m *Model) refreshTranscript() {
	m.transcriptDirty = true
}

// flushTranscript 重建视口内容。渲染总是从 entry 的累计原文出发整段
// 重做，不在旧渲染结果上追加。
func (m *Model) flushTranscript() {
	m.transcriptDirty = false
	m.viewport.SetContent(m.renderTranscript())
	if m.followBottom {
		m.viewport.GotoBottom()
	}
}

func (m *Model) renderTranscript() string {
	entries := m.transcript.Entries()
	if len(entries) == 0 {
		return "No messages yet. Type below to start."
	}
	width := m.viewport.Width
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		if block := render.Entry(e, width, m.expanded); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	composerHeight := m.textarea.Height() + 2 // border
	bannerHeight := 3
	statusHeight := 1
	hintsHeight := 1
	vpHeight := height - composerHeight - bannerHeight - statusHeight - hintsHeight
	if vpHeight < 4 {
		vpHeight = 4
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight
	m.textarea.SetWidth(width - 2)
	m.refreshTranscript()
}

func (m *Model) setComposerHeight() {
	lines := strings.Count(m.textarea.Value(), "\n") + 1
	if lines < 1 {
		lines = 1
	}
	if lines > 6 {
		lines = 6
	}
	if m.textarea.Height() != lines {
		m.textarea.SetHeight(lines)
		if m.width > 0 && m.height > 0 {
			m.resize(m.width, m.height)
		}
	}
}
