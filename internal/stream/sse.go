package stream

import (
	"bufio"
	"io"
	"strings"
)

// frame 是一个完整的 server-sent event：事件名（可缺省）加 data 负载。
type frame struct {
	event string
	data  string
}

// frameReader 按 SSE 协议切分事件流：data:/event: 行累积，空行派发，
// 冒号开头的注释行忽略。
type frameReader struct {
	scanner *bufio.Scanner
}

func newFrameReader(r io.Reader) *frameReader {
	scanner := bufio.NewScanner(r)
	// 单个分片可能携带整段工具输出，默认 64KB 不够。
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 4*1024*1024)
	return &frameReader{scanner: scanner}
}

// Next 返回下一个完整事件。流正常结束返回 io.EOF；结尾处残留的
// 未以空行收束的 data 行同样派发，服务端断开不应吞掉最后一帧。
func (fr *frameReader) Next() (frame, error) {
	var (
		event string
		data  []string
	)
	for fr.scanner.Scan() {
		line := fr.scanner.Text()
		if line == "" {
			if len(data) > 0 {
				return frame{event: event, data: strings.Join(data, "\n")}, nil
			}
			event = ""
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			data = append(data, value)
		}
	}
	if err := fr.scanner.Err(); err != nil {
		return frame{}, err
	}
	if len(data) > 0 {
		return frame{event: event, data: strings.Join(data, "\n")}, nil
	}
	return frame{}, io.EOF
}
