package classifier

import (
	"log/slog"
	"strings"
)

// outputWriter redirects predictor output past the first line to the
// application logger, tagged with the predictor command.
type outputWriter struct {
	logger  *slog.Logger
	command string
}

func (w *outputWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if msg := strings.TrimRight(string(p), "\r\n"); msg != "" {
		w.logger.Debug(msg, "classifier", w.command)
	}
	return len(p), nil
}
