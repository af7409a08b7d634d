package runtime

import (
	"chat-guard/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Listen binds the TCP endpoint. Failure is fatal for the server.
func Listen(address string) (net.Listener, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", errors.ErrBind, address, err)
	}
	return ln, nil
}

// Listener is the accept loop worker. Each accepted connection gets its own
// goroutine so accepting never waits on a handler.
type Listener struct {
	log        *slog.Logger
	ln         net.Listener
	handler    *ConnectionHandler
	outboxSize int
	handlers   sync.WaitGroup
}

func NewListener(log *slog.Logger, ln net.Listener, handler *ConnectionHandler, outboxSize int) *Listener {
	return &Listener{log: log, ln: ln, handler: handler, outboxSize: outboxSize}
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Run accepts until ctx is done or the listener is closed, then waits for
// every handler it started to finish its cleanup. Any other accept fault is
// returned without waiting on established connections.
func (l *Listener) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = l.ln.Close() })
	defer stop()

	l.log.Info("Accepting connections", "addr", l.ln.Addr().String())
	var backoff time.Duration
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, net.ErrClosed) {
				l.log.Debug("Accept loop stopped")
				l.handlers.Wait()
				return nil
			}
			if temporary(err) {
				backoff = nextBackoff(backoff)
				l.log.Warn("Accept error, retrying", "error", err, "backoff", backoff)
				select {
				case <-ctx.Done():
					l.handlers.Wait()
					return nil
				case <-time.After(backoff):
				}
				continue
			}
			return err
		}
		backoff = 0

		l.handlers.Add(1)
		go func() {
			defer l.handlers.Done()
			l.handler.Handle(ctx, NewPeer(conn, l.outboxSize))
		}()
	}
}

// temporary reports accept faults worth retrying in place: timeouts and
// running out of file descriptors.
func temporary(err error) bool {
	var ne net.Error
	if stderrors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return stderrors.Is(err, syscall.EMFILE) || stderrors.Is(err, syscall.ENFILE)
}

// Close stops accepting. Established connections are not affected.
func (l *Listener) Close() error {
	return l.ln.Close()
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return minAcceptBackoff
	}
	return min(current*2, maxAcceptBackoff)
}
