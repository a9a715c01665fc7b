package obs

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// NewLogger configures slog with colorful dev output and JSON for
// production-like envs. Dev environments log at Debug so session bootstrap
// failures stay visible.
func NewLogger(env string) *slog.Logger {
	writer := os.Stdout
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "debug":
		handler := tint.NewHandler(writer, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.RFC3339,
			AddSource:  true,
		})
		return slog.New(handler)
	default:
		handler := slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: true,
		})
		return slog.New(handler)
	}
}
