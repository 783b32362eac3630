package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func readAllFrames(t *testing.T, input string) []frame {
	t.Helper()
	fr := newFrameReader(strings.NewReader(input))
	var frames []frame
	for {
		f, err := fr.Next()
		if errors.Is(err, io.EOF) {
			return frames
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		frames = append(frames, f)
	}
}

func TestFrameReaderFraming(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  []frame
	}{
		{
			name:  "single data line",
			input: "data: one\n\n",
			want:  []frame{{data: "one"}},
		},
		{
			name:  "multi-line data joins with newline",
			input: "data: line1\ndata: line2\n\n",
			want:  []frame{{data: "line1\nline2"}},
		},
		{
			name:  "event type carried",
			input: "event: notice\ndata: payload\n\n",
			want:  []frame{{event: "notice", data: "payload"}},
		},
		{
			name:  "event resets between frames",
			input: "event: notice\ndata: a\n\ndata: b\n\n",
			want:  []frame{{event: "notice", data: "a"}, {data: "b"}},
		},
		{
			name:  "comment lines skipped",
			input: ": keepalive\ndata: x\n: another\n\n",
			want:  []frame{{data: "x"}},
		},
		{
			name:  "no space after colon",
			input: "data:x\n\n",
			want:  []frame{{data: "x"}},
		},
		{
			name:  "blank lines without data emit nothing",
			input: "\n\ndata: x\n\n\n",
			want:  []frame{{data: "x"}},
		},
		{
			name:  "trailing frame without closing blank line",
			input: "data: first\n\nevent: message\ndata: last",
			want:  []frame{{data: "first"}, {event: "message", data: "last"}},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := readAllFrames(t, tc.input)
			if len(got) != len(tc.want) {
				t.Fatalf("frames=%d want=%d: %#v", len(got), len(tc.want), got)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("frame %d = %#v want %#v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestFrameReaderLargePayload(t *testing.T) {
	t.Parallel()

	// 超过 bufio.Scanner 默认 64KB 上限的单行负载。
	payload := strings.Repeat("x", 100*1024)
	frames := readAllFrames(t, "data: "+payload+"\n\n")
	if len(frames) != 1 || frames[0].data != payload {
		t.Fatalf("large payload mangled: frames=%d", len(frames))
	}
}
