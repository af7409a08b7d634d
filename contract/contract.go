//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-guard/domain"
	"chat-guard/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	return typeName(w)
}

// GetSinkName names a record sink in logs.
func GetSinkName(s RecordSink) string {
	if s == nil {
		return "NilSink"
	}
	return typeName(s)
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Classifier returns nil when enabled is false, without any side effect.
// Faults are reported as an "error" classification, never as a Go error.
type Classifier interface {
	ClassifyIfEnabled(ctx context.Context, message string, enabled bool) *domain.Classification
}

// Display is the conversation view of an endpoint. Implementations must be
// safe for concurrent use since every connection reports to it.
type Display interface {
	Show(line domain.Line)
}

// EventLog is the fire-and-forget chat-log sink.
type EventLog interface {
	Append(record event.Record)
}

// RecordSink is one destination fed by the event log fanout.
type RecordSink interface {
	Consume(ctx context.Context, record event.Record) error
}

// Transmitter delivers an outgoing frame: a single upstream write on a client,
// a registry broadcast on the server.
type Transmitter interface {
	Transmit(text string) error
}

// Sender decides the fate of a message typed on this endpoint.
type Sender interface {
	Send(ctx context.Context, text string) domain.SendOutcome
}
