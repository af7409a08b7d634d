// Package classifier bridges the chat engine to the external spam predictor.
//
// Every classification spawns one predictor process with the message as its
// last argument, reads the first line of its merged stdout/stderr and kills the
// process group once the time budget is spent. Faults never reach the caller as
// Go errors: they become an "error" classification.
package classifier

import (
	"bufio"
	"chat-guard/contract"
	"chat-guard/domain"
	"chat-guard/errors"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	DefaultTimeout       = 3 * time.Second
	DefaultMaxConcurrent = 8
	defaultWaitDelay     = 500 * time.Millisecond
)

var _ contract.Classifier = (*Bridge)(nil)

type Options struct {
	Command string
	// Args are placed before the message, e.g. the predictor script path.
	Args    []string
	Timeout time.Duration
	// WaitDelay bounds how long Wait may block once the process was killed.
	WaitDelay     time.Duration
	MaxConcurrent int64
}

type Stats struct {
	Calls    uint64
	Failures uint64
	Timeouts uint64
}

type Bridge struct {
	log   *slog.Logger
	opts  Options
	slots *semaphore.Weighted

	calls    atomic.Uint64
	failures atomic.Uint64
	timeouts atomic.Uint64
}

type firstLine struct {
	text string
	ok   bool
}

func NewBridge(log *slog.Logger, opts Options) *Bridge {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.WaitDelay <= 0 {
		opts.WaitDelay = defaultWaitDelay
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Bridge{
		log:   log,
		opts:  opts,
		slots: semaphore.NewWeighted(opts.MaxConcurrent),
	}
}

// ClassifyIfEnabled returns nil immediately when the filter is off.
func (b *Bridge) ClassifyIfEnabled(ctx context.Context, message string, enabled bool) *domain.Classification {
	if !enabled {
		return nil
	}
	res := b.Classify(ctx, message)
	return &res
}

// Classify runs the predictor once for message. The budget starts before
// waiting for a free slot, so the wait counts against it.
func (b *Bridge) Classify(ctx context.Context, message string) domain.Classification {
	b.calls.Add(1)
	start := time.Now()
	budget, cancel := context.WithTimeout(ctx, b.opts.Timeout)
	defer cancel()

	if err := b.slots.Acquire(budget, 1); err != nil {
		b.failures.Add(1)
		if stderrors.Is(err, context.DeadlineExceeded) {
			b.timeouts.Add(1)
		}
		b.log.Warn("Classification aborted while waiting for a slot",
			"error", err, "waited_ms", time.Since(start).Milliseconds())
		return domain.ErrorClassification()
	}
	defer b.slots.Release(1)

	line, err := b.run(budget, message)
	if err != nil {
		b.failures.Add(1)
		b.log.Warn("Classifier failed", "command", b.opts.Command, "error", err)
		return domain.ErrorClassification()
	}
	res := ParseLine(line)
	b.log.Debug("Message classified",
		"label", res.Label,
		"confidence", res.Confidence,
		"latency_ms", time.Since(start).Milliseconds())
	return res
}

func (b *Bridge) Stats() Stats {
	return Stats{
		Calls:    b.calls.Load(),
		Failures: b.failures.Load(),
		Timeouts: b.timeouts.Load(),
	}
}

// run returns the first output line of one predictor invocation, killing it
// once budget is done. The line already captured survives a kill on timeout.
func (b *Bridge) run(budget context.Context, message string) (string, error) {
	cmd := exec.CommandContext(budget, b.opts.Command, append(slices.Clone(b.opts.Args), message)...)
	setPlatformSpecificAttrs(cmd)
	cmd.WaitDelay = b.opts.WaitDelay

	reader, writer, err := os.Pipe()
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrClassifierLaunch, err)
	}
	// Same descriptor for both streams: stderr is merged into stdout.
	cmd.Stdout = writer
	cmd.Stderr = writer
	if err := cmd.Start(); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		return "", fmt.Errorf("%w: %v", errors.ErrClassifierLaunch, err)
	}
	_ = writer.Close()

	lines := make(chan firstLine, 1)
	go b.readOutput(reader, lines)

	var first firstLine
	received := false
	select {
	case first = <-lines:
		received = true
	case <-budget.Done():
	}

	waitErr := cmd.Wait()
	_ = reader.Close()
	if !received {
		first = <-lines
	}

	switch {
	case stderrors.Is(budget.Err(), context.DeadlineExceeded) && waitErr != nil:
		b.timeouts.Add(1)
		b.log.Warn("Classifier exceeded its budget and was killed",
			"timeout", b.opts.Timeout, "pid", cmd.Process.Pid, "line_captured", first.ok)
	case waitErr != nil:
		b.log.Debug("Classifier exited with error", "error", waitErr)
	}

	if !first.ok {
		return "", fmt.Errorf("no output from %s", b.opts.Command)
	}
	return first.text, nil
}

// readOutput publishes the first line then drains the rest into the logger
// so that a chatty predictor never blocks on a full pipe.
func (b *Bridge) readOutput(r io.Reader, lines chan<- firstLine) {
	br := bufio.NewReader(r)
	text, err := br.ReadString('\n')
	// A blank line carries no verdict.
	lines <- firstLine{text: text, ok: (err == nil || text != "") && strings.TrimSpace(text) != ""}
	_, _ = io.Copy(&outputWriter{logger: b.log, command: b.opts.Command}, br)
}
