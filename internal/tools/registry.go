// Package tools 提供 serve 模式暴露给模型的函数调用实现。每个工具把
// 执行结果（包括失败）编码进 response 负载里返回，Go 层错误只用于
// 基础设施故障。
package tools

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"loom/internal/chat"
	"loom/internal/logger"
)

// Handler 定义具体工具的执行入口。
type Handler interface {
	Name() string
	Declaration() *genai.FunctionDeclaration
	Call(ctx context.Context, args map[string]any) map[string]any
}

// Registry 按名字分发函数调用。
type Registry struct {
	handlers map[string]Handler
	order    []string
	log      *logger.LogEntry
}

// NewRegistry 注册给定工具。nil handler 被忽略。
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{
		handlers: make(map[string]Handler, len(handlers)),
		log:      logger.Named("tools"),
	}
	for _, h := range handlers {
		if h == nil {
			continue
		}
		r.handlers[h.Name()] = h
		r.order = append(r.order, h.Name())
	}
	return r
}

// DefaultRegistry 返回标准工具集。
func DefaultRegistry() *Registry {
	return NewRegistry(&SearchFS{}, &ReadFS{})
}

// Declarations 返回注册顺序下的全部函数声明，用于模型请求配置。
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	out := make([]*genai.FunctionDeclaration, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.handlers[name].Declaration())
	}
	return out
}

// Run 执行一个 function_call part，返回对应的 function_response part。
// 未知工具名同样以 response 负载报告，不中断回合。
func (r *Registry) Run(ctx context.Context, call chat.Part) chat.Part {
	h, ok := r.handlers[call.Name]
	if !ok {
		r.log.Warnf("model requested unknown tool %q", call.Name)
		return chat.FunctionResponsePart(call.ID, call.Name, map[string]any{
			"error": fmt.Sprintf("unknown tool: %s", call.Name),
		})
	}
	r.log.Infof("run tool %s args=%v", call.Name, call.Args)
	resp := h.Call(ctx, call.Args)
	return chat.FunctionResponsePart(call.ID, call.Name, resp)
}

// stringArg 校验并取出一个必填字符串参数，失败时返回给模型看的错误文案。
func stringArg(args map[string]any, key string) (string, string) {
	if args == nil {
		return "", "Argument is none"
	}
	raw, ok := args[key]
	if !ok {
		return "", fmt.Sprintf("Required argument '%s' is missing", key)
	}
	if raw == nil {
		return "", fmt.Sprintf("Argument '%s' is null", key)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Sprintf("Argument '%s' is not a string", key)
	}
	return s, ""
}
