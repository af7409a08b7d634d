package main

import (
	"chat-guard/contract"
	"chat-guard/domain"
	"chat-guard/internal"
	"chat-guard/runtime"
	"chat-guard/runtime/workers"
	"chat-guard/sink"
	"chat-guard/ui"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run connects once to the server and keeps the console open until the user quits.
// Losing the server does not end the program.
func run() (int, error) {
	_ = godotenv.Load()
	var config internal.ClientConfig
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

	var sinks []contract.RecordSink
	if config.ChatLogPath != "" {
		lineSink, closer, err := sink.OpenLineSink(config.ChatLogPath, logger)
		if err != nil {
			return exitRuntime, err
		}
		defer closer.Close()
		sinks = append(sinks, lineSink)
	}
	fanout := workers.NewEventFanout(logger, config.BufferSize, config.SinkTimeout, sinks...)
	fanoutCtx, stopFanout := context.WithCancel(context.Background())
	fanoutDone := make(chan struct{})
	go func() {
		defer close(fanoutDone)
		_ = fanout.Run(fanoutCtx)
	}()
	defer func() {
		stopFanout()
		<-fanoutDone
	}()

	console := ui.NewConsole(os.Stdout, config.Colours)
	client := runtime.NewClient(logger, predictor, domain.NewPolicy(config.Classifier.SpamThreshold), console, fanout,
		runtime.ClientOptions{
			Address:         config.ServerAddress,
			DialRetries:     config.DialRetries,
			DialBackoff:     config.DialBackoff,
			QueueSize:       config.QueueSize,
			RestartInterval: config.RestartInterval,
		})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, quit := context.WithCancel(ctx)
	defer quit()

	go func() {
		defer quit()
		if err := ui.ReadInput(ctx, os.Stdin, client); err != nil && !stderrors.Is(err, io.EOF) {
			logger.Warn("Console input failed", "error", err)
		}
	}()

	client.Run(ctx)
	logger.Info("Client stopped cleanly")
	return exitOK, nil
}
