package logger

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// LLMLogger 记录与模型后端交互的请求、分片与错误，供 serve 模式排查
// 流式行为。
type LLMLogger interface {
	Request(model string, messages int, attempt int)
	StreamChunk(model string, chunk string, index int)
	StreamComplete(model string, attempt int)
	Error(model string, err error, attempt int)
}

// StdLLMLogger 使用 logrus 输出日志。
type StdLLMLogger struct {
	logger *logrus.Entry
}

// NewLLMLogger 构造默认的 LLM 日志记录器，nil 时复用全局 logger。
func NewLLMLogger(l *Logger) *StdLLMLogger {
	if l == nil {
		l = root()
	}
	l.SetFormatter(PlainFormatter{})
	l.SetReportCaller(true)
	return &StdLLMLogger{logger: logrus.NewEntry(l).WithField("component", "llm")}
}

// Request 记录一次请求的上下文。
func (l *StdLLMLogger) Request(model string, messages int, attempt int) {
	l.printf(logrus.InfoLevel, "-> request attempt=%d model=%s messages=%d", attempt, model, messages)
}

// StreamChunk 记录流式响应的单个分片。
func (l *StdLLMLogger) StreamChunk(model string, chunk string, index int) {
	l.printf(logrus.InfoLevel, "<- chunk model=%s seq=%d text=%s", model, index, escapeNewlines(chunk))
}

// StreamComplete 记录流式响应完成。
func (l *StdLLMLogger) StreamComplete(model string, attempt int) {
	l.printf(logrus.InfoLevel, "<- stream completed attempt=%d model=%s", attempt, model)
}

// Error 记录请求错误。
func (l *StdLLMLogger) Error(model string, err error, attempt int) {
	l.printf(logrus.ErrorLevel, "!! error attempt=%d model=%s err=%v", attempt, model, err)
}

// NoopLLMLogger 忽略所有日志输出。
type NoopLLMLogger struct{}

func (NoopLLMLogger) Request(model string, messages int, attempt int)   {}
func (NoopLLMLogger) StreamChunk(model string, chunk string, index int) {}
func (NoopLLMLogger) StreamComplete(model string, attempt int)          {}
func (NoopLLMLogger) Error(model string, err error, attempt int)        {}

func (l *StdLLMLogger) printf(level logrus.Level, format string, args ...any) {
	if l == nil || l.logger == nil {
		return
	}
	if !l.logger.Logger.IsLevelEnabled(level) {
		return
	}

	msg := fmt.Sprintf(format, args...)
	caller := findCaller()
	entry := l.logger
	if caller != "" {
		entry = entry.WithField("caller", caller)
	}
	entry.Log(level, msg)
}

func escapeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\n", `\n`)
	text = strings.ReplaceAll(text, "\r", `\r`)
	return text
}

// findCaller 跳过本文件的封装帧，定位真正的调用位置。
func findCaller() string {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.File != "" && !strings.Contains(frame.File, "llm.go") {
			return fmt.Sprintf("%s:%d", shortenFilePath(frame.File), frame.Line)
		}
		if !more {
			break
		}
	}
	return ""
}
