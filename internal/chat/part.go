package chat

import (
	"bytes"
	"encoding/json"
)

// Wire tags for the recognized part kinds. Anything else is carried as-is.
const (
	KindText             = "text"
	KindFunctionCall     = "function_call"
	KindFunctionResponse = "function_response"
)

// Part is the atomic unit of message content: plain text, a tool
// invocation, a tool result, or an unrecognized payload. Unrecognized
// parts keep their raw JSON so nothing the backend sends is ever lost.
type Part struct {
	Type string

	// Text is set for KindText.
	Text string

	// ID/Name/Args/Response are set for function_call / function_response.
	ID       string
	Name     string
	Args     map[string]any
	Response map[string]any

	// raw is the original JSON object for unrecognized types.
	raw json.RawMessage
}

// TextPart 构造文本 part。
func TextPart(text string) Part {
	return Part{Type: KindText, Text: text}
}

// FunctionCallPart 构造工具调用 part。
func FunctionCallPart(id, name string, args map[string]any) Part {
	return Part{Type: KindFunctionCall, ID: id, Name: name, Args: args}
}

// FunctionResponsePart 构造工具结果 part。
func FunctionResponsePart(id, name string, response map[string]any) Part {
	return Part{Type: KindFunctionResponse, ID: id, Name: name, Response: response}
}

// IsText reports whether the part carries free text.
func (p Part) IsText() bool { return p.Type == KindText }

// TextOf returns the text content, or "" for non-text parts.
func (p Part) TextOf() string {
	if !p.IsText() {
		return ""
	}
	return p.Text
}

// IsZero reports whether the part is empty (e.g. decoded from JSON null).
func (p Part) IsZero() bool { return p.Type == "" && len(p.raw) == 0 }

// IsNonText reports whether the part is structured (tool call/result or
// unrecognized) content. Zero parts are neither.
func (p Part) IsNonText() bool { return !p.IsText() && !p.IsZero() }

// Raw returns the original JSON for an unrecognized part, nil otherwise.
func (p Part) Raw() json.RawMessage { return p.raw }

// Clone returns a copy that shares no mutable state with p. Folding a
// message into the transcript must not alias the caller's data.
func (p Part) Clone() Part {
	out := p
	out.Args = cloneMap(p.Args)
	out.Response = cloneMap(p.Response)
	if len(p.raw) > 0 {
		out.raw = append(json.RawMessage(nil), p.raw...)
	}
	return out
}

// cloneMap 深拷贝 JSON 形状的载荷：嵌套的 map 与 slice 一并复制。
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneMap(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

type textPartJSON struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type callPartJSON struct {
	Type string         `json:"type"`
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type responsePartJSON struct {
	Type     string         `json:"type"`
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

// MarshalJSON implements the wire shape: {type: "...", ...}.
func (p Part) MarshalJSON() ([]byte, error) {
	switch p.Type {
	case KindText:
		return json.Marshal(textPartJSON{Type: KindText, Text: p.Text})
	case KindFunctionCall:
		return json.Marshal(callPartJSON{Type: KindFunctionCall, ID: p.ID, Name: p.Name, Args: p.Args})
	case KindFunctionResponse:
		return json.Marshal(responsePartJSON{Type: KindFunctionResponse, ID: p.ID, Name: p.Name, Response: p.Response})
	default:
		if len(p.raw) > 0 {
			return append(json.RawMessage(nil), p.raw...), nil
		}
		if p.Type == "" {
			return []byte("null"), nil
		}
		return json.Marshal(map[string]string{"type": p.Type})
	}
}

// UnmarshalJSON decodes a tagged part. Unrecognized tags keep the whole
// raw object; a JSON null decodes to the zero Part.
func (p *Part) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = Part{}
		return nil
	}
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch probe.Type {
	case KindText:
		var v textPartJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*p = Part{Type: KindText, Text: v.Text}
	case KindFunctionCall:
		var v callPartJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*p = Part{Type: KindFunctionCall, ID: v.ID, Name: v.Name, Args: v.Args}
	case KindFunctionResponse:
		var v responsePartJSON
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*p = Part{Type: KindFunctionResponse, ID: v.ID, Name: v.Name, Response: v.Response}
	default:
		*p = Part{Type: probe.Type, raw: append(json.RawMessage(nil), data...)}
	}
	return nil
}
