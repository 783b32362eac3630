// Package transcript 承载会话装配的核心规则：一条到来的消息是开启新的
// 发言块，还是并入上一块。历史加载与实时流共用同一套折叠逻辑，因此两条
// 路径产出的结构完全一致。
package transcript

import "loom/internal/chat"

// Entry is one logical turn bubble: the cumulative free text of the
// turn plus its structured (non-text) parts, both in arrival order.
//
// Invariants:
//   - RawText is exactly the in-order concatenation of every text part
//     folded into the entry since it was created.
//   - NonText only grows; it is never reordered or rewritten.
//   - A user entry is never extended after creation.
type Entry struct {
	Role    chat.Role
	RawText string
	NonText []chat.Part
}

func newEntry(msg chat.Message) *Entry {
	e := &Entry{Role: msg.Role}
	e.fold(msg.Parts)
	return e
}

// fold classifies parts into raw text and structured content. Parts are
// cloned so the entry never aliases the caller's message.
func (e *Entry) fold(parts []chat.Part) {
	for _, p := range parts {
		switch {
		case p.IsText():
			e.RawText += p.TextOf()
		case p.IsNonText():
			e.NonText = append(e.NonText, p.Clone())
		}
		// Zero parts (JSON null) contribute nothing.
	}
}

// mergeable reports whether msg extends the given last entry instead of
// starting a new one. User turns never merge, with anything.
func mergeable(last *Entry, msg chat.Message) bool {
	return last != nil && last.Role == msg.Role && msg.Role != chat.RoleUser
}

// MergeHistory 将一次性拉取的历史消息折叠为与实时路径同构的 entry 序列。
// 不修改调用方传入的 messages。
func MergeHistory(messages []chat.Message) []*Entry {
	var out []*Entry
	for _, msg := range messages {
		var last *Entry
		if len(out) > 0 {
			last = out[len(out)-1]
		}
		if mergeable(last, msg) {
			last.fold(msg.Parts)
			continue
		}
		out = append(out, newEntry(msg))
	}
	return out
}

// Transcript is the ordered store of entries currently shown. It has a
// single writer; concurrency is handled by the caller's event loop.
type Transcript struct {
	entries []*Entry
}

// New returns an empty transcript.
func New() *Transcript {
	return &Transcript{}
}

// Reset replaces the whole store from a fresh history load.
func (t *Transcript) Reset(messages []chat.Message) {
	t.entries = MergeHistory(messages)
}

// Entries returns the live entry slice. Callers treat entries as
// read-only; only ApplyLive mutates them.
func (t *Transcript) Entries() []*Entry {
	return t.entries
}

// Len returns the number of entries.
func (t *Transcript) Len() int { return len(t.entries) }

// Last returns the newest entry, or nil.
func (t *Transcript) Last() *Entry {
	if len(t.entries) == 0 {
		return nil
	}
	return t.entries[len(t.entries)-1]
}

// ApplyLive 是唯一的实时写入口：按角色邻接规则决定追加还是原地扩展，
// 返回受影响的 entry 以及是否为扩展。无论消息是一次完整送达还是拆成
// 多个 chunk 逐次送达，最终 entry 完全相同。
func (t *Transcript) ApplyLive(msg chat.Message) (entry *Entry, extended bool) {
	if last := t.Last(); mergeable(last, msg) {
		last.fold(msg.Parts)
		return last, true
	}
	e := newEntry(msg)
	t.entries = append(t.entries, e)
	return e, false
}

// AppendSystem always appends a fresh system entry, bypassing the merge
// rule. Stream failures surface as their own block even right after an
// earlier system entry.
func (t *Transcript) AppendSystem(text string) *Entry {
	e := newEntry(chat.SystemMessage(text))
	t.entries = append(t.entries, e)
	return e
}
