// Package server 实现会话服务端：GET /chat 返回全量历史，POST /chat
// 追加一条用户消息并以 SSE 流式返回本回合产生的全部消息（模型分片、
// 工具结果）。回合内的错误以 system 帧下发，但不进入持久历史。
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"loom/internal/chat"
	"loom/internal/logger"
)

// maxToolRounds 限制单回合内 模型→工具→模型 的往返次数，防止模型
// 无限请求工具。
const maxToolRounds = 8

// Generator streams one model response over the given history. Each
// chunk arriving from the backend is passed to emit in order; emit
// errors abort the stream.
type Generator interface {
	Generate(ctx context.Context, history []chat.Message, emit func(chat.Message) error) error
}

// ToolRunner executes one function call part and returns the matching
// function response part. Execution failures are encoded inside the
// response payload, not returned as Go errors.
type ToolRunner interface {
	Run(ctx context.Context, call chat.Part) chat.Part
}

// Server 持有历史存储与模型后端，并保证同一时刻只有一个回合在写历史。
type Server struct {
	store *Store
	gen   Generator
	tools ToolRunner
	log   *logger.LogEntry

	turnMu sync.Mutex
}

// New 构造服务端。tools 可为 nil，表示不提供工具。
func New(gen Generator, tools ToolRunner) *Server {
	return &Server{
		store: NewStore(),
		gen:   gen,
		tools: tools,
		log:   logger.Named("server"),
	}
}

// Store 暴露历史存储，测试与诊断用。
func (s *Server) Store() *Store {
	return s.store
}

// Handler 返回挂载了 /chat 的 http.Handler。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /chat", s.handleHistory)
	mux.HandleFunc("POST /chat", s.handleTurn)
	return mux
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(s.store.Snapshot()); err != nil {
		s.log.Warnf("write history response: %v", err)
	}
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4*1024*1024))
	if err != nil {
		http.Error(w, "read request body", http.StatusBadRequest)
		return
	}
	msg, err := chat.ParseMessage(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid message: %v", err), http.StatusBadRequest)
		return
	}

	// 整个回合串行化：历史追加与模型调用不允许交错。
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	s.store.Append(msg)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusCreated)
	flusher.Flush()

	s.runTurn(r.Context(), w, flusher)
}

// runTurn 驱动 模型→工具→模型 循环，直到一轮响应不再包含工具调用。
func (s *Server) runTurn(ctx context.Context, w io.Writer, flusher http.Flusher) {
	for round := 0; round < maxToolRounds; round++ {
		var calls []chat.Part
		emit := func(m chat.Message) error {
			s.store.Append(m)
			for _, p := range m.Parts {
				if p.Type == chat.KindFunctionCall {
					calls = append(calls, p)
				}
			}
			return writeFrame(w, flusher, m)
		}

		if err := s.gen.Generate(ctx, s.store.Snapshot(), emit); err != nil {
			s.log.Warnf("turn round %d failed: %v", round, err)
			// 错误只下发，不落历史。
			s.writeSystem(w, flusher, fmt.Sprintf("turn failed: %v", err))
			return
		}
		if len(calls) == 0 {
			return
		}
		if s.tools == nil {
			s.writeSystem(w, flusher, "model requested tools but none are configured")
			return
		}

		responses := make([]chat.Part, 0, len(calls))
		for _, call := range calls {
			responses = append(responses, s.tools.Run(ctx, call))
		}
		toolMsg := chat.ToolMessage(responses)
		s.store.Append(toolMsg)
		if err := writeFrame(w, flusher, toolMsg); err != nil {
			s.log.Warnf("write tool frame: %v", err)
			return
		}
	}
	s.writeSystem(w, flusher, fmt.Sprintf("turn aborted after %d tool rounds", maxToolRounds))
}

func (s *Server) writeSystem(w io.Writer, flusher http.Flusher, text string) {
	if err := writeFrame(w, flusher, chat.SystemMessage(text)); err != nil {
		s.log.Warnf("write system frame: %v", err)
	}
}

func writeFrame(w io.Writer, flusher http.Flusher, msg chat.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
