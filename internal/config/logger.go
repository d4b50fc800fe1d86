package config

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// InitLogger initializes the global zap logger. Format "auto" picks the
// console encoder when stderr is a terminal and JSON otherwise.
func InitLogger(cfg Logging) error {
	var zapCfg zap.Config
	if resolveFormat(cfg.Format, os.Stderr.Fd()) == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.DisableStacktrace = true
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	zap.ReplaceGlobals(logger)

	return nil
}

func resolveFormat(format string, fd uintptr) string {
	if format != "auto" && format != "" {
		return format
	}
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return "console"
	}
	return "json"
}
