package sink

import (
	"chat-guard/contract"
	"chat-guard/domain/event"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

const lineTimeLayout = "2006-01-02 15:04:05"

var _ contract.RecordSink = (*LineSink)(nil)

// LineSink appends one line per record to the chat log:
//
//	[2024-05-01 13:37:00] CLIENT | conf=0.1234 | hello
//
// Write failures are logged and swallowed.
type LineSink struct {
	mu  sync.Mutex
	w   io.Writer
	log *slog.Logger
}

func NewLineSink(w io.Writer, log *slog.Logger) *LineSink {
	return &LineSink{w: w, log: log}
}

// OpenLineSink opens path in append mode, creating it when missing.
func OpenLineSink(path string, log *slog.Logger) (*LineSink, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open chat log %s: %w", path, err)
	}
	return NewLineSink(f, log), f, nil
}

func (s *LineSink) Consume(_ context.Context, record event.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.WriteString(s.w, FormatLine(record)); err != nil {
		s.log.Debug("Chat log write failed", "error", err)
	}
	return nil
}

func FormatLine(record event.Record) string {
	return fmt.Sprintf("[%s] %s | conf=%.4f | %s\n",
		record.At.Format(lineTimeLayout), record.Tag, record.Confidence, record.Text)
}
