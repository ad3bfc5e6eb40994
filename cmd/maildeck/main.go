package main

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/ajanik/maildeck/internal/app"
	"github.com/ajanik/maildeck/internal/credential"
	"github.com/ajanik/maildeck/internal/model"
)

func main() {
	cfgPath := model.DefaultConfigPath()
	if v := os.Getenv("MAILDECK_CONFIG"); v != "" {
		cfgPath = v
	}

	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "maildeck: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := setupLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "maildeck: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	// A failed restore is not fatal; the user just signs in again.
	restored, err := credential.LoadSession()
	if err != nil {
		logger.Warn().Err(err).Msg("could not restore saved session")
		restored = nil
	}

	p := tea.NewProgram(
		app.New(cfg, restored, logger),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		logger.Error().Err(err).Msg("program exited with error")
		fmt.Fprintf(os.Stderr, "maildeck: %v\n", err)
		os.Exit(1)
	}
}

// setupLogger opens the log file and builds the root logger. The TUI
// owns the terminal, so logs never go to stdout.
func setupLogger(cfg model.LogConfig) (zerolog.Logger, func(), error) {
	path := cfg.File
	if path == "" {
		path = model.DefaultLogPath()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf(
			"creating log directory: %w", err,
		)
	}

	file, err := os.OpenFile(
		path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644,
	)
	if err != nil {
		return zerolog.Logger{}, nil, fmt.Errorf("opening log file: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(file).
		Level(level).
		With().
		Timestamp().
		Logger()

	return logger, func() { _ = file.Close() }, nil
}
