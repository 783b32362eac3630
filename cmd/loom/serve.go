package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"strings"

	"loom/internal/config"
	"loom/internal/gemini"
	"loom/internal/logger"
	"loom/internal/server"
	"loom/internal/tools"
)

// defaultLLMLogPath serve 模式的模型流量日志。
const defaultLLMLogPath = "logs/loom-llm.log"

func serveMain(cfg config.Config, args []string) {
	fs := flag.NewFlagSet("loom serve", flag.ContinueOnError)
	listen := fs.String("listen", cfg.Listen, "Address to listen on")
	model := fs.String("model", cfg.Model, "Gemini model to use")
	if err := fs.Parse(args); err != nil {
		log.Fatalf("parse serve args: %v", err)
	}

	apiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if apiKey == "" {
		log.Fatalf("GEMINI_API_KEY is not set")
	}

	registry := tools.DefaultRegistry()
	backend, err := gemini.New(context.Background(), apiKey, *model, registry.Declarations())
	if err != nil {
		log.Fatalf("gemini backend: %v", err)
	}
	if llmLogger, llmCloser, err := logger.NewFileLogger(defaultLLMLogPath); err != nil {
		log.Warnf("failed to initialize llm log (%s): %v", defaultLLMLogPath, err)
	} else {
		backend.SetLLMLogger(logger.NewLLMLogger(llmLogger))
		defer llmCloser.Close()
	}

	srv := server.New(backend, registry)

	log.Infof("listening on %s model=%s", *listen, *model)
	if err := http.ListenAndServe(*listen, srv.Handler()); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
