package main

import (
	"fmt"

	"loom/internal/config"
)

// configMain 处理 config 子命令：show 打印生效配置，set 把 key=value
// 写回配置文件。
func configMain(root rootArgs, args []string) {
	if len(args) == 0 {
		log.Fatalf("usage: loom config <show|set key=value...>")
	}
	switch args[0] {
	case "show":
		cfg := loadConfig(root)
		fmt.Printf("url = %q\n", cfg.URL)
		fmt.Printf("listen = %q\n", cfg.Listen)
		fmt.Printf("model = %q\n", cfg.Model)
		fmt.Printf("log_path = %q\n", cfg.LogPath)
	case "set":
		if len(args) < 2 {
			log.Fatalf("usage: loom config set key=value...")
		}
		cfg, err := setConfigValues(root.cfgPath, args[1:])
		if err != nil {
			log.Fatalf("failed to save config: %v", err)
		}
		fmt.Printf("Config saved to %s.\n", cfg.Source)
	default:
		log.Fatalf("unknown config subcommand %q", args[0])
	}
}

// setConfigValues 读取配置、套用覆盖并写回同一路径。
func setConfigValues(path string, overrides []string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	cfg = config.ApplyKVOverrides(cfg, overrides)
	if err := config.Save(path, cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
