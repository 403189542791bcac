package logging

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/edvin/sitepublish/internal/config"
)

// NewLogger creates a structured zerolog.Logger writing JSON to stdout. The
// service field is taken from SERVICE_NAME, falling back to defaultService.
func NewLogger(cfg *config.Config, defaultService string) zerolog.Logger {
	service := cfg.ServiceName
	if service == "" {
		service = defaultService
	}

	ctx := zerolog.New(os.Stdout).With().Timestamp()
	if service != "" {
		ctx = ctx.Str("service", service)
	}
	logger := ctx.Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
