package workers

import (
	"chat-guard/contract"
	"chat-guard/domain/event"
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const DefaultSinkTimeout = 2 * time.Second

var _ contract.EventLog = (*EventFanout)(nil)

// EventFanout delivers chat-log records to every registered sink.
//
// Append never blocks: records are buffered and dropped when the buffer is
// full. Delivery is best effort, with no retries and no durability beyond
// what each sink provides. A slow sink is bounded by the sink timeout.
type EventFanout struct {
	log         *slog.Logger
	records     chan event.Record
	sinks       []contract.RecordSink
	sinkTimeout time.Duration
	dropped     atomic.Uint64
}

func NewEventFanout(log *slog.Logger, bufferSize int, sinkTimeout time.Duration, sinks ...contract.RecordSink) *EventFanout {
	if sinkTimeout <= 0 {
		sinkTimeout = DefaultSinkTimeout
	}
	return &EventFanout{
		log:         log,
		records:     make(chan event.Record, max(bufferSize, 1)),
		sinks:       sinks,
		sinkTimeout: sinkTimeout,
	}
}

func (w *EventFanout) Append(record event.Record) {
	select {
	case w.records <- record:
	default:
		w.dropped.Add(1)
		w.log.Debug("Event log buffer full, record dropped", "tag", record.Tag)
	}
}

// Dropped is the number of records lost to a full buffer.
func (w *EventFanout) Dropped() uint64 {
	return w.dropped.Load()
}

// Run delivers records until ctx is done, then flushes what is still buffered.
func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case record := <-w.records:
			w.Fanout(ctx, record)
		case <-ctx.Done():
			w.drain()
			return nil
		}
	}
}

func (w *EventFanout) drain() {
	flushCtx := context.Background()
	for {
		select {
		case record := <-w.records:
			w.Fanout(flushCtx, record)
		default:
			w.log.Debug("Event log drained")
			return
		}
	}
}

// Fanout hands record to each sink in turn, each under its own timeout.
func (w *EventFanout) Fanout(ctx context.Context, record event.Record) {
	for _, sink := range w.sinks {
		sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.sinkTimeout)
		if err := sink.Consume(sinkCtx, record); err != nil {
			w.log.Warn("Sink failed", "sink", contract.GetSinkName(sink), "tag", record.Tag, "error", err)
		}
		cancel()
	}
}
