package workers

import (
	"chat-guard/classifier"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

const DefaultHeartbeatInterval = 30 * time.Second

// HeartbeatSources are read on every beat. Nil sources are skipped.
type HeartbeatSources struct {
	Peers      func() int
	Classifier func() classifier.Stats
	Dropped    func() uint64
}

// HeartbeatWorker periodically logs process and chat health.
type HeartbeatWorker struct {
	log      *slog.Logger
	interval time.Duration
	sources  HeartbeatSources
}

func NewHeartbeatWorker(log *slog.Logger, interval time.Duration, sources HeartbeatSources) *HeartbeatWorker {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &HeartbeatWorker{log: log, interval: interval, sources: sources}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.log.Info("Heartbeat", w.attrs(p)...)
		}
	}
}

func (w *HeartbeatWorker) attrs(p *process.Process) []any {
	var attrs []any
	if rss, cpu, err := selfStats(p); err != nil {
		w.log.Debug("Failed to collect self stats", "error", err)
	} else {
		attrs = append(attrs, "rss_bytes", rss, "cpu_percent", cpu)
	}
	if w.sources.Peers != nil {
		attrs = append(attrs, "peers", w.sources.Peers())
	}
	if w.sources.Classifier != nil {
		stats := w.sources.Classifier()
		attrs = append(attrs,
			"classifier_calls", stats.Calls,
			"classifier_failures", stats.Failures,
			"classifier_timeouts", stats.Timeouts)
	}
	if w.sources.Dropped != nil {
		attrs = append(attrs, "records_dropped", w.sources.Dropped())
	}
	return attrs
}

// selfStats retrieves memory and CPU usage of the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
