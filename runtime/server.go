// Package runtime wires connections, the peer registry and the local
// sender of an endpoint. It holds no classification or display logic.
package runtime

import (
	"chat-guard/contract"
	"chat-guard/domain"
	"chat-guard/runtime/workers"
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"
)

const DefaultQueueSize = 16

type ServerOptions struct {
	OutboxSize      int
	QueueSize       int
	RestartInterval time.Duration
}

// Server is the hub endpoint: it accepts clients, relays between them and
// broadcasts what its operator types.
type Server struct {
	log        *slog.Logger
	registry   *Registry
	filter     *domain.FilterState
	display    contract.Display
	supervisor *workers.Supervisor
	listener   *Listener
	outgoing   chan string
}

var _ contract.Transmitter = (*Server)(nil)

func NewServer(
	log *slog.Logger,
	ln net.Listener,
	classifier contract.Classifier,
	policy domain.Policy,
	display contract.Display,
	events contract.EventLog,
	opts ServerOptions,
) *Server {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	s := &Server{
		log:        log,
		registry:   NewRegistry(log),
		filter:     domain.NewFilterState(),
		display:    display,
		supervisor: workers.NewSupervisor(log, opts.RestartInterval),
		outgoing:   make(chan string, opts.QueueSize),
	}
	handler := NewConnectionHandler(log, s.registry, classifier, s.filter, policy, display, events)
	s.listener = NewListener(log, ln, handler, opts.OutboxSize)
	sender := NewLocalSender(log, ServerRole, classifier, s.filter, policy, display, events, s)
	s.supervisor.Add(s.listener, workers.NewSenderWorker(log, sender, s.outgoing))
	return s
}

// AddWorkers runs extra workers (heartbeat, admin) under the server supervisor.
func (s *Server) AddWorkers(w ...contract.Worker) {
	s.supervisor.Add(w...)
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Run blocks until ctx is done. Every connection is closed before it returns.
func (s *Server) Run(ctx context.Context) {
	s.display.Show(domain.SystemLine(fmt.Sprintf("Server listening on port %s", port(s.Addr()))))
	s.supervisor.Run(ctx)
	s.registry.Close()
	s.log.Info("Server stopped")
}

// Submit queues text typed by the operator. It waits for room in the queue
// unless ctx is done first.
func (s *Server) Submit(ctx context.Context, text string) bool {
	select {
	case s.outgoing <- text:
		return true
	case <-ctx.Done():
		return false
	}
}

// Transmit broadcasts to every connected client. Per-peer failures are
// handled by the registry; only a text that cannot be framed is reported.
func (s *Server) Transmit(text string) error {
	queued, err := s.registry.Broadcast(text, nil)
	if err != nil {
		return err
	}
	s.log.Debug("Operator message broadcast", "peers", queued)
	return nil
}

func (s *Server) ToggleFilter() bool {
	enabled := s.filter.Toggle()
	s.display.Show(domain.SystemLine("Spam filter turned " + s.filter.Label()))
	return enabled
}

func (s *Server) Filter() *domain.FilterState {
	return s.filter
}

func (s *Server) Peers() int {
	return s.registry.Len()
}

func port(addr net.Addr) string {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return fmt.Sprint(tcp.Port)
	}
	_, p, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return p
}
