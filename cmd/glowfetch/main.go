// glowfetch runs one fetch cycle against the Glowmarkt API and prints the
// transformed snapshot as JSON. Handy for verifying credentials and seeing
// what the daemon would publish, without a database or broker.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/angas/glowbridge/config"
	"github.com/angas/glowbridge/coordinator"
	"github.com/angas/glowbridge/glowmarkt"
)

func main() {
	w := os.Stderr
	logger := slog.New(tint.NewHandler(w, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: time.RFC3339Nano,
	}))
	slog.SetDefault(logger)

	configPath := ""
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cnfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client := glowmarkt.New(cnfg.Glow, logger.With("module", "glowmarkt"))
	raw, err := client.GetData(ctx)
	if err != nil {
		logger.Error("fetch failed", slog.Any("error", err))
		os.Exit(1)
	}

	snap := coordinator.NewSnapshot(raw, time.Now().UTC())

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		logger.Error("encoding snapshot", slog.Any("error", err))
		os.Exit(1)
	}
}
