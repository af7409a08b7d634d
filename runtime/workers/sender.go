package workers

import (
	"chat-guard/contract"
	"context"
	"log/slog"
)

// SenderWorker runs outgoing messages through the sender one at a time,
// keeping typed order and keeping classification off the input goroutine.
type SenderWorker struct {
	log      *slog.Logger
	sender   contract.Sender
	outgoing <-chan string
}

func NewSenderWorker(log *slog.Logger, sender contract.Sender, outgoing <-chan string) *SenderWorker {
	return &SenderWorker{log: log, sender: sender, outgoing: outgoing}
}

func (w *SenderWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case text, ok := <-w.outgoing:
			if !ok {
				return nil
			}
			outcome := w.sender.Send(ctx, text)
			w.log.Debug("Outgoing message processed", "outcome", outcome.String())
		}
	}
}
