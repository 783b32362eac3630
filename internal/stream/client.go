// Package stream 实现与服务端的两条读路径：一次性的历史拉取，以及
// POST /chat 打开的实时 SSE 回合流。两条路径返回同一种 chat.Message，
// 上层用同一套折叠规则消费。
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"loom/internal/chat"
	"loom/internal/logger"
)

// Client talks to one loom server.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	log *logger.LogEntry
}

// New 构造指向 baseURL 的客户端。历史拉取带超时；回合流由调用方的
// context 与 Turn.Close 控制生命周期。
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{},
		log:        logger.Named("sse"),
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) logEntry() *logger.LogEntry {
	if c.log != nil {
		return c.log
	}
	return logger.Named("sse")
}

// History 拉取全量持久化历史。
func (c *Client) History(ctx context.Context) ([]chat.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/chat", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch history: %s: %s", resp.Status, bodySnippet(resp.Body))
	}

	var msgs []chat.Message
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return msgs, nil
}

// TurnEvent 是回合流里的一次送达：一条消息，或一个终止错误。
// 通道正常关闭表示回合完整结束。
type TurnEvent struct {
	Message chat.Message
	Err     error
}

// Turn 是一个进行中的回合流。
type Turn struct {
	events chan TurnEvent
	done   chan struct{}
	cancel context.CancelFunc
	body   io.ReadCloser

	closeOnce sync.Once
}

// OpenTurn 发送一条用户消息并打开该回合的 SSE 流。返回后调用方必须
// 消费 Events 直到关闭，或调用 Close 放弃。
func (c *Client) OpenTurn(ctx context.Context, msg chat.Message) (*Turn, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open turn: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		snippet := bodySnippet(resp.Body)
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("open turn: %s: %s", resp.Status, snippet)
	}

	t := &Turn{
		events: make(chan TurnEvent, 16),
		done:   make(chan struct{}),
		cancel: cancel,
		body:   resp.Body,
	}
	go t.read(c.logEntry())
	return t, nil
}

// Events 返回回合的事件通道。关闭即回合结束。
func (t *Turn) Events() <-chan TurnEvent {
	return t.events
}

// Close 放弃回合流。Close 之后不会再有事件送达。
func (t *Turn) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		t.cancel()
		t.body.Close()
	})
}

func (t *Turn) read(log *logger.LogEntry) {
	defer close(t.events)
	defer t.body.Close()

	fr := newFrameReader(t.body)
	for {
		f, err := fr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			t.deliver(TurnEvent{Err: fmt.Errorf("read turn stream: %w", err)})
			return
		}
		if f.event != "" && f.event != "message" {
			continue
		}
		msg, err := chat.ParseMessage([]byte(f.data))
		if err != nil {
			// 单帧解析失败不终止回合：跳过并继续读。
			log.Warnf("skipping malformed stream frame: %v", err)
			continue
		}
		if !t.deliver(TurnEvent{Message: msg}) {
			return
		}
	}
}

// deliver 在送达与放弃之间做竞争选择，Close 之后绝不投递。
func (t *Turn) deliver(ev TurnEvent) bool {
	select {
	case <-t.done:
		return false
	default:
	}
	select {
	case t.events <- ev:
		return true
	case <-t.done:
		return false
	}
}

func bodySnippet(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 512))
	return string(bytes.TrimSpace(data))
}
