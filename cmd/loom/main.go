package main

import (
	"flag"
	"os"

	"loom/internal/config"
	"loom/internal/history"
	"loom/internal/logger"
	"loom/internal/stream"
	"loom/internal/tui"
)

var log = logger.Named("main")

type rootArgs struct {
	cfgPath   string
	overrides []string
}

func parseRootArgs(args []string) (rootArgs, []string, error) {
	fs := flag.NewFlagSet("loom", flag.ContinueOnError)
	var overrides stringSlice
	cfgPath := fs.String("config", "", "Path to config file (default ~/.loom/config.toml)")
	fs.Var(&overrides, "c", "Override config value key=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return rootArgs{}, nil, err
	}
	return rootArgs{cfgPath: *cfgPath, overrides: overrides}, fs.Args(), nil
}

func loadConfig(root rootArgs) config.Config {
	cfg, err := config.Load(root.cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return config.ApplyKVOverrides(cfg, root.overrides)
}

func main() {
	logger.Configure()

	root, rest, err := parseRootArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("parse args: %v", err)
	}
	cfg := loadConfig(root)

	if logFile, _, err := logger.SetupFile(cfg.LogPath); err != nil {
		log.Warnf("failed to initialize log file: %v", err)
	} else {
		defer logFile.Close()
	}

	if len(rest) > 0 {
		switch rest[0] {
		case "serve":
			serveMain(cfg, rest[1:])
			return
		case "config":
			configMain(root, rest[1:])
			return
		}
	}

	runInteractive(cfg)
}

func runInteractive(cfg config.Config) {
	prompts, err := history.NewDefault()
	if err != nil {
		log.Warnf("prompt history unavailable: %v", err)
		prompts = nil
	}

	err = tui.Run(tui.Options{
		Client:  stream.New(cfg.URL),
		URL:     cfg.URL,
		Prompts: prompts,
	})
	if err != nil {
		log.Fatalf("tui: %v", err)
	}
}
