package server

import (
	"sync"

	"loom/internal/chat"
)

// Store 是服务端的权威会话历史。原始消息按到达顺序保存，不做折叠，
// 折叠是客户端的展示问题。
type Store struct {
	mu   sync.Mutex
	msgs []chat.Message
}

// NewStore returns an empty history store.
func NewStore() *Store {
	return &Store{}
}

// Append 追加一条消息。
func (s *Store) Append(msg chat.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

// Snapshot 返回当前历史的副本，永不为 nil。
func (s *Store) Snapshot() []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// Len 返回历史长度。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}
