package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// Mock returns a disabled logger for tests.
func Mock() Logger {
	l := &DefaultLogger{
		writers:     make([]io.Writer, 0),
		level:       zerolog.Disabled,
		currentDate: "2006-01-02",
	}

	l.log = zerolog.New(io.MultiWriter(l.writers...)).With().Stack().Logger()

	return l
}
