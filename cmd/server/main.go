package main

import (
	"log/slog"
	"os"

	"go-token-auth/internal/app"
	"go-token-auth/internal/logger"
)

func main() {
	level := new(slog.LevelVar)
	logHandler := logger.NewPrettyHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(logHandler))

	application, err := app.New(level)
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application run failed", "error", err)
		os.Exit(1)
	}
}
