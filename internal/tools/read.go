package tools

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

// maxReadBytes 限制单次读取返回的内容大小，超限的文件直接报错而不是
// 截断，截断的内容会误导模型。
const maxReadBytes = 256 * 1024

// ReadFS 实现 read_fs：读取一个文件的全部内容。
type ReadFS struct{}

func (*ReadFS) Name() string { return "read_fs" }

func (*ReadFS) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "read_fs",
		Description: "Read the entire contents of one file and return it as text.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"path": {
					Type:        genai.TypeString,
					Description: "Absolute or relative path of the file to read.",
				},
			},
			Required: []string{"path"},
		},
	}
}

func (*ReadFS) Call(ctx context.Context, args map[string]any) map[string]any {
	path, errMsg := stringArg(args, "path")
	if errMsg != "" {
		return map[string]any{"error": errMsg}
	}

	info, err := os.Stat(path)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	if info.IsDir() {
		return map[string]any{"error": fmt.Sprintf("%s is a directory", path)}
	}
	if info.Size() > maxReadBytes {
		return map[string]any{"error": fmt.Sprintf("%s is too large (%d bytes, limit %d)", path, info.Size(), maxReadBytes)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	return map[string]any{"result": string(data)}
}
