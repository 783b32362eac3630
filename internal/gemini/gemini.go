// Package gemini 将服务端的回合流对接到 Gemini 后端：历史消息转换为
// genai 内容，流式响应逐分片转换回 chat.Message。
package gemini

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"loom/internal/chat"
	"loom/internal/logger"
)

// Backend implements the server's Generator against the Gemini API.
type Backend struct {
	client *genai.Client
	model  string
	decls  []*genai.FunctionDeclaration

	llmLog  logger.LLMLogger
	attempt int
}

// New 构造后端。decls 为空则不向模型暴露工具。
func New(ctx context.Context, apiKey, model string, decls []*genai.FunctionDeclaration) (*Backend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Backend{
		client: client,
		model:  model,
		decls:  decls,
		llmLog: logger.NewLLMLogger(nil),
	}, nil
}

// SetLLMLogger 覆盖流量日志器，nil 恢复为静默。
func (b *Backend) SetLLMLogger(l logger.LLMLogger) {
	if l == nil {
		l = logger.NoopLLMLogger{}
	}
	b.llmLog = l
}

// Generate 调一次 Gemini 流式接口，把每个响应分片转换为 chat.Message
// 交给 emit。调用方（server）保证 Generate 不会并发执行。
func (b *Backend) Generate(ctx context.Context, history []chat.Message, emit func(chat.Message) error) error {
	b.attempt++
	contents := toContents(history)

	config := &genai.GenerateContentConfig{}
	if len(b.decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: b.decls}}
	}

	b.llmLog.Request(b.model, len(contents), b.attempt)

	seq := 0
	for resp, err := range b.client.Models.GenerateContentStream(ctx, b.model, contents, config) {
		if err != nil {
			b.llmLog.Error(b.model, err, b.attempt)
			return fmt.Errorf("gemini stream: %w", err)
		}
		if reason, abnormal := abnormalFinish(resp); abnormal {
			err := fmt.Errorf("generation stopped: %s", reason)
			b.llmLog.Error(b.model, err, b.attempt)
			return err
		}
		msg, ok := chunkMessage(resp)
		if !ok {
			continue
		}
		b.llmLog.StreamChunk(b.model, chunkText(msg), seq)
		seq++
		if err := emit(msg); err != nil {
			return err
		}
	}

	b.llmLog.StreamComplete(b.model, b.attempt)
	return nil
}

// toContents 把持久历史映射为 genai 的对话内容。工具消息按 Gemini 的
// 约定挂在 user 角色下；system 消息不会出现在持久历史里。
func toContents(history []chat.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		var role genai.Role
		switch msg.Role {
		case chat.RoleModel:
			role = genai.RoleModel
		case chat.RoleUser, chat.RoleTool:
			role = genai.RoleUser
		default:
			continue
		}

		var parts []*genai.Part
		for _, p := range msg.Parts {
			switch p.Type {
			case chat.KindText:
				if p.Text != "" {
					parts = append(parts, genai.NewPartFromText(p.Text))
				}
			case chat.KindFunctionCall:
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   p.ID,
					Name: p.Name,
					Args: p.Args,
				}})
			case chat.KindFunctionResponse:
				parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
					ID:       p.ID,
					Name:     p.Name,
					Response: p.Response,
				}})
			}
			// 未知 part 不回传给后端。
		}
		if len(parts) == 0 {
			continue
		}
		out = append(out, &genai.Content{Role: string(role), Parts: parts})
	}
	return out
}

// abnormalFinish 识别非正常收尾（安全拦截、复述拦截等）。正常的 STOP
// 与尚未收尾的分片都不算。
func abnormalFinish(resp *genai.GenerateContentResponse) (genai.FinishReason, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false
	}
	switch reason := resp.Candidates[0].FinishReason; reason {
	case "", genai.FinishReasonStop, genai.FinishReasonMaxTokens:
		return "", false
	default:
		return reason, true
	}
}

// chunkMessage 把一个流式响应分片转换为 model 角色的 chat.Message。
// 思考片段被跳过；没有可见内容的分片返回 ok=false。
func chunkMessage(resp *genai.GenerateContentResponse) (chat.Message, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return chat.Message{}, false
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return chat.Message{}, false
	}

	var parts []chat.Part
	for _, p := range cand.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		switch {
		case p.Text != "":
			parts = append(parts, chat.TextPart(p.Text))
		case p.FunctionCall != nil:
			id := p.FunctionCall.ID
			if id == "" {
				// 有些后端不带调用 ID，本地补一个以便配对响应。
				id = uuid.NewString()
			}
			parts = append(parts, chat.FunctionCallPart(id, p.FunctionCall.Name, p.FunctionCall.Args))
		}
	}
	if len(parts) == 0 {
		return chat.Message{}, false
	}
	return chat.Message{Role: chat.RoleModel, Parts: parts}, true
}

func chunkText(msg chat.Message) string {
	out := ""
	for _, p := range msg.Parts {
		if p.IsText() {
			out += p.TextOf()
		} else {
			out += fmt.Sprintf("[%s %s]", p.Type, p.Name)
		}
	}
	return out
}
