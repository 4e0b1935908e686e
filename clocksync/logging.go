package clocksync

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds a JSON logger writing to w. debug wins over level.
func NewLogger(w io.Writer, level string, debug bool) (zerolog.Logger, error) {
	lvl := zerolog.InfoLevel
	if debug {
		lvl = zerolog.DebugLevel
	} else if level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(level)
		if err != nil {
			return zerolog.Nop(), err
		}
	}
	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}
