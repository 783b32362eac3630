package transcript

import (
	"encoding/json"
	"testing"

	"loom/internal/chat"
)

func textMsg(role chat.Role, texts ...string) chat.Message {
	parts := make([]chat.Part, 0, len(texts))
	for _, s := range texts {
		parts = append(parts, chat.TextPart(s))
	}
	return chat.Message{Role: role, Parts: parts}
}

func TestMergeHistoryAdjacency(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		msgs      []chat.Message
		wantRoles []chat.Role
		wantTexts []string
	}{
		{
			name: "adjacent model messages fold",
			msgs: []chat.Message{
				textMsg(chat.RoleUser, "hi"),
				textMsg(chat.RoleModel, "Hel"),
				textMsg(chat.RoleModel, "lo!"),
			},
			wantRoles: []chat.Role{chat.RoleUser, chat.RoleModel},
			wantTexts: []string{"hi", "Hello!"},
		},
		{
			name: "user messages never fold",
			msgs: []chat.Message{
				textMsg(chat.RoleUser, "one"),
				textMsg(chat.RoleUser, "two"),
			},
			wantRoles: []chat.Role{chat.RoleUser, chat.RoleUser},
			wantTexts: []string{"one", "two"},
		},
		{
			name: "role change splits",
			msgs: []chat.Message{
				textMsg(chat.RoleModel, "a"),
				textMsg(chat.RoleTool, "b"),
				textMsg(chat.RoleModel, "c"),
			},
			wantRoles: []chat.Role{chat.RoleModel, chat.RoleTool, chat.RoleModel},
			wantTexts: []string{"a", "b", "c"},
		},
		{
			name:      "empty history",
			msgs:      nil,
			wantRoles: nil,
			wantTexts: nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := MergeHistory(tc.msgs)
			if len(got) != len(tc.wantRoles) {
				t.Fatalf("entries=%d want=%d", len(got), len(tc.wantRoles))
			}
			for i, e := range got {
				if e.Role != tc.wantRoles[i] || e.RawText != tc.wantTexts[i] {
					t.Fatalf("entry[%d]={%s %q} want={%s %q}", i, e.Role, e.RawText, tc.wantRoles[i], tc.wantTexts[i])
				}
			}
		})
	}
}

func TestMergeHistoryDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	call := chat.FunctionCallPart("id", "calc", map[string]any{"x": 1.0})
	msgs := []chat.Message{
		{Role: chat.RoleModel, Parts: []chat.Part{chat.TextPart("a"), call}},
		{Role: chat.RoleModel, Parts: []chat.Part{chat.TextPart("b")}},
	}
	entries := MergeHistory(msgs)

	entries[0].NonText[0].Args["x"] = 2.0
	if msgs[0].Parts[1].Args["x"] != 1.0 {
		t.Fatalf("MergeHistory aliased caller args: %#v", msgs[0].Parts[1].Args)
	}
	if len(msgs[0].Parts) != 2 || len(msgs[1].Parts) != 1 {
		t.Fatalf("input messages mutated: %#v", msgs)
	}
}

// Chunk-wise ApplyLive must be indistinguishable from applying the whole
// message at once, for any split of the parts list.
func TestApplyLiveChunkEquivalence(t *testing.T) {
	t.Parallel()

	parts := []chat.Part{
		chat.TextPart("The answer is "),
		chat.FunctionCallPart("c1", "calc", map[string]any{"x": 1.0}),
		chat.TextPart("42"),
		chat.FunctionResponsePart("c1", "calc", map[string]any{"result": 42.0}),
		chat.TextPart("."),
	}

	whole := New()
	whole.ApplyLive(chat.Message{Role: chat.RoleModel, Parts: parts})
	want := whole.Last()

	// Every contiguous two-way split point, plus one-part-per-chunk.
	var splits [][][]chat.Part
	for cut := 1; cut < len(parts); cut++ {
		splits = append(splits, [][]chat.Part{parts[:cut], parts[cut:]})
	}
	var single [][]chat.Part
	for _, p := range parts {
		single = append(single, []chat.Part{p})
	}
	splits = append(splits, single)

	for i, chunks := range splits {
		tr := New()
		for _, chunk := range chunks {
			tr.ApplyLive(chat.Message{Role: chat.RoleModel, Parts: chunk})
		}
		if tr.Len() != 1 {
			t.Fatalf("split %d: entries=%d want=1", i, tr.Len())
		}
		got := tr.Last()
		if got.RawText != want.RawText {
			t.Fatalf("split %d: rawText=%q want=%q", i, got.RawText, want.RawText)
		}
		if len(got.NonText) != len(want.NonText) {
			t.Fatalf("split %d: nonText=%d want=%d", i, len(got.NonText), len(want.NonText))
		}
		for j := range got.NonText {
			a, _ := json.Marshal(got.NonText[j])
			b, _ := json.Marshal(want.NonText[j])
			if string(a) != string(b) {
				t.Fatalf("split %d: nonText[%d]=%s want=%s", i, j, a, b)
			}
		}
	}
}

func TestApplyLiveScenario(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.ApplyLive(chat.Message{Role: chat.RoleModel, Parts: []chat.Part{chat.TextPart("The answer is ")}})
	tr.ApplyLive(chat.Message{Role: chat.RoleModel, Parts: []chat.Part{chat.FunctionCallPart("", "calc", map[string]any{"x": 1.0})}})
	entry, extended := tr.ApplyLive(chat.Message{Role: chat.RoleModel, Parts: []chat.Part{chat.TextPart("42")}})

	if !extended || tr.Len() != 1 {
		t.Fatalf("extended=%v len=%d want extend of single entry", extended, tr.Len())
	}
	if entry.RawText != "The answer is 42" {
		t.Fatalf("rawText=%q", entry.RawText)
	}
	if len(entry.NonText) != 1 || entry.NonText[0].Name != "calc" {
		t.Fatalf("nonText=%#v", entry.NonText)
	}
}

func TestApplyLiveUserAlwaysAppends(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.ApplyLive(chat.UserMessage("one"))
	_, extended := tr.ApplyLive(chat.UserMessage("two"))
	if extended || tr.Len() != 2 {
		t.Fatalf("user turn merged: extended=%v len=%d", extended, tr.Len())
	}
}

func TestApplyLiveRoleChangeAppends(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.ApplyLive(chat.Message{Role: chat.RoleModel, Parts: []chat.Part{chat.TextPart("thinking")}})
	_, extended := tr.ApplyLive(chat.ToolMessage([]chat.Part{
		chat.FunctionResponsePart("", "read_fs", map[string]any{"result": "ok"}),
	}))
	if extended || tr.Len() != 2 {
		t.Fatalf("role change should append: extended=%v len=%d", extended, tr.Len())
	}
	if got := tr.Last(); got.RawText != "" || len(got.NonText) != 1 {
		t.Fatalf("tool entry=%#v", got)
	}
}

func TestRawTextIgnoresNonTextParts(t *testing.T) {
	t.Parallel()

	tr := New()
	entry, _ := tr.ApplyLive(chat.Message{Role: chat.RoleModel, Parts: []chat.Part{
		chat.TextPart("a"),
		chat.FunctionCallPart("", "calc", nil),
		chat.TextPart("b"),
	}})
	if entry.RawText != "ab" {
		t.Fatalf("rawText=%q want=%q", entry.RawText, "ab")
	}
}

func TestAppendSystemBypassesMerge(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.AppendSystem("first failure")
	tr.AppendSystem("second failure")
	if tr.Len() != 2 {
		t.Fatalf("system entries merged: len=%d", tr.Len())
	}
}

func TestResetReplacesStore(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.ApplyLive(chat.UserMessage("old"))
	tr.Reset([]chat.Message{textMsg(chat.RoleModel, "fresh")})
	if tr.Len() != 1 || tr.Last().RawText != "fresh" {
		t.Fatalf("Reset kept stale state: %#v", tr.Entries())
	}
}
