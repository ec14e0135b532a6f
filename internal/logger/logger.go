package logger

import (
	"log/slog"
	"os"

	"docquery-platform/internal/config"
)

// Logger defaults to a JSON handler at info level so packages can log
// before configuration is loaded; InitLogger re-levels it.
var Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

// InitLogger applies the configured verbosity. Debug mode also records
// source locations.
func InitLogger(cfg *config.Config) {
	level := slog.LevelInfo
	addSource := false
	if cfg.GinMode == "debug" {
		level = slog.LevelDebug
		addSource = true
	}

	Logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
	}))
	Logger.Info("Logger configured", "level", level.String(), "mode", cfg.GinMode)
}

func Debug(msg string, args ...any) { Logger.Debug(msg, args...) }

func Info(msg string, args ...any) { Logger.Info(msg, args...) }

func Warn(msg string, args ...any) { Logger.Warn(msg, args...) }

func Error(msg string, args ...any) { Logger.Error(msg, args...) }
