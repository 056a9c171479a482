package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func Setup(dev bool) zerolog.Logger {
	return New(os.Stderr, dev)
}

// New returns a JSON logger writing to w, or a console logger at debug level when dev is set.
func New(w io.Writer, dev bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: w, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// WithBuildID tags the context logger with a fresh build id so the lines of
// one task invocation can be grouped.
func WithBuildID(ctx context.Context) (context.Context, string) {
	id := uuid.NewString()
	l := zerolog.Ctx(ctx).With().Str("build_id", id).Logger()
	return l.WithContext(ctx), id
}
