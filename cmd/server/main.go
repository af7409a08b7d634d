package main

import (
	"chat-guard/contract"
	"chat-guard/domain"
	"chat-guard/internal"
	"chat-guard/observability"
	"chat-guard/repositories"
	"chat-guard/runtime"
	"chat-guard/runtime/workers"
	"chat-guard/sink"
	"chat-guard/ui"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires the chat server and blocks until a signal, /quit, or the end of stdin.
// Deferred cleanups run before main exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.ServerConfig
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := internal.Validate(config); err != nil {
		return exitConfig, err
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	predictor, err := internal.NewPredictor(logger, config.Classifier)
	if err != nil {
		return exitConfig, err
	}

	// 2. Bind before anything else is started so a busy port fails fast
	ln, err := runtime.Listen(config.Address)
	if err != nil {
		return exitRuntime, err
	}

	// 3. Audit sinks
	var sinks []contract.RecordSink
	if config.ChatLogPath != "" {
		lineSink, closer, err := sink.OpenLineSink(config.ChatLogPath, logger)
		if err != nil {
			_ = ln.Close()
			return exitRuntime, err
		}
		defer closer.Close()
		sinks = append(sinks, lineSink)
	}
	if config.BadgerFilepath != "" {
		recordSink, closer, err := openRecordStore(context.Background(), logger, config)
		if err != nil {
			_ = ln.Close()
			return exitRuntime, err
		}
		defer closer()
		sinks = append(sinks, recordSink)
	}

	fanout := workers.NewEventFanout(logger, config.BufferSize, config.SinkTimeout, sinks...)
	fanoutCtx, stopFanout := context.WithCancel(context.Background())
	fanoutDone := make(chan struct{})
	go func() {
		defer close(fanoutDone)
		_ = fanout.Run(fanoutCtx)
	}()
	defer func() {
		// Records emitted while the server shut down are still flushed.
		stopFanout()
		<-fanoutDone
	}()

	// 4. Server & workers
	console := ui.NewConsole(os.Stdout, config.Colours)
	server := runtime.NewServer(logger, ln, predictor, domain.NewPolicy(config.Classifier.SpamThreshold), console, fanout,
		runtime.ServerOptions{
			OutboxSize:      config.ConnectionBufferSize,
			QueueSize:       config.QueueSize,
			RestartInterval: config.RestartInterval,
		})
	server.AddWorkers(workers.NewHeartbeatWorker(logger, config.HeartbeatInterval, workers.HeartbeatSources{
		Peers:      server.Peers,
		Classifier: predictor.Stats,
		Dropped:    fanout.Dropped,
	}))
	if config.AdminPort > 0 {
		admin, err := observability.NewAdminServer(logger, fmt.Sprintf(":%d", config.AdminPort))
		if err != nil {
			_ = ln.Close()
			return exitRuntime, err
		}
		server.AddWorkers(admin)
	}

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, quit := context.WithCancel(ctx)
	defer quit()

	go func() {
		defer quit()
		if err := ui.ReadInput(ctx, os.Stdin, server); err != nil && !stderrors.Is(err, io.EOF) {
			logger.Warn("Console input failed", "error", err)
		}
	}()

	server.Run(ctx)
	logger.Info("Server stopped cleanly")
	return exitOK, nil
}

// openRecordStore opens Badger and Bluge and returns the sink writing to them.
// At debug level the Badger inspector is served on the debug port.
func openRecordStore(ctx context.Context, logger *slog.Logger, config internal.ServerConfig) (contract.RecordSink, func(), error) {
	options := badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.WARNING)
	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).WithBypassLockGuard(true)
	}
	db, err := badger.Open(options)
	if err != nil {
		return nil, nil, fmt.Errorf("database opening failed: %w", err)
	}

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to open bluge writer: %w", err)
	}

	if logger.Enabled(ctx, slog.LevelDebug) && config.DebugPort > 0 {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available", "url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, repositories.RecordMapper)
	}

	repository := repositories.NewRecordRepository(db, writer, logger, repositories.DefaultLimit)
	closer := func() {
		logger.Info("Closing Bluge...")
		_ = writer.Close()
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}
	return sink.NewRecordSink(repository, logger), closer, nil
}
