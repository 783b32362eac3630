package tools

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"syscall"

	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/genai"
)

// SearchFS 实现 search_fs：按 glob 模式匹配文件并返回属主与权限信息。
// 单个文件 stat 失败不影响其余结果，错误并列返回。
type SearchFS struct{}

func (*SearchFS) Name() string { return "search_fs" }

func (*SearchFS) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        "search_fs",
		Description: "Search the file system with a glob pattern (** matches across directories) and return owner and permission details for each match.",
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"pattern": {
					Type:        genai.TypeString,
					Description: "Glob pattern to match, e.g. /var/log/**/*.log",
				},
			},
			Required: []string{"pattern"},
		},
	}
}

func (*SearchFS) Call(ctx context.Context, args map[string]any) map[string]any {
	pattern, errMsg := stringArg(args, "pattern")
	if errMsg != "" {
		return map[string]any{"error": errMsg}
	}

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return map[string]any{"error": fmt.Sprintf("invalid pattern: %v", err)}
	}

	results := make([]map[string]any, 0, len(matches))
	var errs []string
	for _, path := range matches {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err().Error())
			break
		}
		info, err := os.Lstat(path)
		if err != nil {
			errs = append(errs, err.Error())
			continue
		}
		entry := map[string]any{
			"path": path,
			"mode": lsMode(info.Mode()),
		}
		if stat, ok := info.Sys().(*syscall.Stat_t); ok {
			entry["uid"] = stat.Uid
			entry["gid"] = stat.Gid
		}
		results = append(results, entry)
	}

	resp := map[string]any{"results": results}
	if len(errs) > 0 {
		resp["errors"] = errs
	}
	return resp
}

// lsMode 按 ls -l 的习惯格式化文件模式，包括 setuid/setgid/sticky 位。
func lsMode(m fs.FileMode) string {
	buf := []byte("----------")

	switch {
	case m.IsDir():
		buf[0] = 'd'
	case m&fs.ModeSymlink != 0:
		buf[0] = 'l'
	case m&fs.ModeCharDevice != 0:
		buf[0] = 'c'
	case m&fs.ModeDevice != 0:
		buf[0] = 'b'
	case m&fs.ModeNamedPipe != 0:
		buf[0] = 'p'
	case m&fs.ModeSocket != 0:
		buf[0] = 's'
	}

	perm := m.Perm()
	rwx := "rwxrwxrwx"
	for i := 0; i < 9; i++ {
		if perm&(1<<uint(8-i)) != 0 {
			buf[i+1] = rwx[i]
		}
	}

	if m&fs.ModeSetuid != 0 {
		if buf[3] == 'x' {
			buf[3] = 's'
		} else {
			buf[3] = 'S'
		}
	}
	if m&fs.ModeSetgid != 0 {
		if buf[6] == 'x' {
			buf[6] = 's'
		} else {
			buf[6] = 'S'
		}
	}
	if m&fs.ModeSticky != 0 {
		if buf[9] == 'x' {
			buf[9] = 't'
		} else {
			buf[9] = 'T'
		}
	}
	return string(buf)
}
