package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultModel 是 serve 模式的默认后端模型。
const DefaultModel = "gemini-2.0-flash"

// DefaultListen 是 serve 模式的默认监听地址。
const DefaultListen = "127.0.0.1:3000"

// Config is the only persisted config file schema.
type Config struct {
	// URL 客户端连接的服务端地址。
	URL string `toml:"url"`
	// Listen serve 模式监听地址。
	Listen string `toml:"listen"`
	// Model serve 模式使用的后端模型。
	Model string `toml:"model"`
	// LogPath 日志文件路径，空值落默认。
	LogPath string `toml:"log_path"`
	// Source 实际加载的文件路径，仅用于诊断。
	Source string `toml:"-"`
}

func Default() Config {
	return Config{
		URL:    "http://" + DefaultListen,
		Listen: DefaultListen,
		Model:  DefaultModel,
	}
}

func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".loom", "config.toml")
}

// Load 读取配置文件并套用环境变量覆盖。文件不存在不是错误，返回默认值。
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return cfg, errors.New("config path is empty and $HOME is not set")
	}
	cfg.Source = path

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyEnv(cfg), nil
		}
		return cfg, err
	}

	if err := toml.Unmarshal(content, &cfg); err != nil {
		return cfg, err
	}
	return applyEnv(cfg), nil
}

// applyEnv 环境变量优先于文件内容。
func applyEnv(cfg Config) Config {
	if env := strings.TrimSpace(os.Getenv("LOOM_URL")); env != "" {
		cfg.URL = env
	}
	if env := strings.TrimSpace(os.Getenv("LOOM_LISTEN")); env != "" {
		cfg.Listen = env
	}
	if env := strings.TrimSpace(os.Getenv("LOOM_MODEL")); env != "" {
		cfg.Model = env
	}
	return cfg
}
