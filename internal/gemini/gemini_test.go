package gemini

import (
	"testing"

	"google.golang.org/genai"

	"loom/internal/chat"
)

func TestToContentsRoleMapping(t *testing.T) {
	t.Parallel()

	history := []chat.Message{
		chat.UserMessage("list my files"),
		{Role: chat.RoleModel, Parts: []chat.Part{
			chat.TextPart("Sure. "),
			chat.FunctionCallPart("c1", "search_fs", map[string]any{"pattern": "*"}),
		}},
		chat.ToolMessage([]chat.Part{
			chat.FunctionResponsePart("c1", "search_fs", map[string]any{"results": []any{}}),
		}),
	}

	contents := toContents(history)
	if len(contents) != 3 {
		t.Fatalf("contents=%d want=3", len(contents))
	}
	if contents[0].Role != "user" || contents[1].Role != "model" {
		t.Fatalf("roles=%s,%s", contents[0].Role, contents[1].Role)
	}
	// Tool results ride on the user role.
	if contents[2].Role != "user" {
		t.Fatalf("tool role=%s want=user", contents[2].Role)
	}
	if contents[2].Parts[0].FunctionResponse == nil {
		t.Fatalf("tool content lost response part: %#v", contents[2].Parts[0])
	}
	if contents[1].Parts[1].FunctionCall == nil || contents[1].Parts[1].FunctionCall.Name != "search_fs" {
		t.Fatalf("model call part=%#v", contents[1].Parts[1])
	}
}

func TestToContentsSkipsEmptyAndUnknown(t *testing.T) {
	t.Parallel()

	history := []chat.Message{
		{Role: chat.RoleModel, Parts: []chat.Part{chat.TextPart("")}},
		{Role: "critic", Parts: []chat.Part{chat.TextPart("opaque")}},
	}
	if got := toContents(history); len(got) != 0 {
		t.Fatalf("contents=%#v want empty", got)
	}
}

func TestChunkMessageSkipsThoughts(t *testing.T) {
	t.Parallel()

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "internal reasoning", Thought: true},
				{Text: "The answer"},
				{FunctionCall: &genai.FunctionCall{Name: "calc", Args: map[string]any{"x": 1.0}}},
			}},
		}},
	}

	msg, ok := chunkMessage(resp)
	if !ok {
		t.Fatal("chunk dropped")
	}
	if msg.Role != chat.RoleModel || len(msg.Parts) != 2 {
		t.Fatalf("msg=%#v", msg)
	}
	if msg.Parts[0].TextOf() != "The answer" {
		t.Fatalf("text=%q", msg.Parts[0].TextOf())
	}
	if msg.Parts[1].ID == "" {
		t.Fatal("missing call ID was not filled in")
	}
}

func TestAbnormalFinish(t *testing.T) {
	t.Parallel()

	mk := func(reason genai.FinishReason) *genai.GenerateContentResponse {
		return &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: reason}},
		}
	}

	if _, abnormal := abnormalFinish(mk(genai.FinishReasonStop)); abnormal {
		t.Fatal("STOP flagged as abnormal")
	}
	if _, abnormal := abnormalFinish(mk("")); abnormal {
		t.Fatal("in-flight chunk flagged as abnormal")
	}
	reason, abnormal := abnormalFinish(mk(genai.FinishReasonSafety))
	if !abnormal || reason != genai.FinishReasonSafety {
		t.Fatalf("SAFETY not flagged: %v %v", reason, abnormal)
	}
}

func TestChunkMessageEmpty(t *testing.T) {
	t.Parallel()

	if _, ok := chunkMessage(nil); ok {
		t.Fatal("nil response produced a message")
	}
	if _, ok := chunkMessage(&genai.GenerateContentResponse{}); ok {
		t.Fatal("empty response produced a message")
	}
}
