package runtime

import (
	"chat-guard/domain"
	"chat-guard/domain/event"
	"chat-guard/errors"
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

// lineRecorder is a Display keeping every line it was shown.
type lineRecorder struct {
	mu    sync.Mutex
	lines []domain.Line
}

func (r *lineRecorder) Show(line domain.Line) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *lineRecorder) find(text string) (domain.Line, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Find(r.lines, func(l domain.Line) bool { return l.Text == text })
}

func (r *lineRecorder) has(prefix string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.ContainsBy(r.lines, func(l domain.Line) bool { return strings.HasPrefix(l.Text, prefix) })
}

func (r *lineRecorder) count(text string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.CountBy(r.lines, func(l domain.Line) bool { return l.Text == text })
}

func (r *lineRecorder) waitFor(t *testing.T, text string) domain.Line {
	t.Helper()
	var line domain.Line
	require.Eventually(t, func() bool {
		var ok bool
		line, ok = r.find(text)
		return ok
	}, 3*time.Second, 10*time.Millisecond, "line %q never shown", text)
	return line
}

type nopEvents struct{}

func (nopEvents) Append(event.Record) {}

// keywordSpam flags anything containing "FREE" with high confidence.
type keywordSpam struct{}

func (keywordSpam) ClassifyIfEnabled(_ context.Context, message string, enabled bool) *domain.Classification {
	if !enabled {
		return nil
	}
	if strings.Contains(message, "FREE") {
		return &domain.Classification{Label: domain.LabelSpam, Confidence: 0.95}
	}
	return &domain.Classification{Label: domain.LabelHam, Confidence: 0.9}
}

func startServer(t *testing.T) (*Server, *lineRecorder) {
	t.Helper()
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	display := &lineRecorder{}
	server := NewServer(logs.GetLoggerFromLevel(slog.LevelDebug), ln, keywordSpam{},
		domain.NewPolicy(domain.DefaultSpamThreshold), display, nopEvents{}, ServerOptions{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return server, display
}

func startClient(t *testing.T, address string) (*Client, *lineRecorder, context.Context) {
	t.Helper()
	display := &lineRecorder{}
	client := NewClient(slog.Default(), keywordSpam{}, domain.NewPolicy(domain.DefaultSpamThreshold),
		display, nopEvents{}, ClientOptions{Address: address, DialRetries: 2, DialBackoff: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		client.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return client, display, ctx
}

func TestListen_Bind_Failure(t *testing.T) {
	req := require.New(t)
	ln, err := Listen("127.0.0.1:0")
	req.NoError(err)
	defer ln.Close()

	// When the same endpoint is bound twice
	_, err = Listen(ln.Addr().String())

	// Then startup fails with a bind error
	req.ErrorIs(err, errors.ErrBind)
}

func TestListener_Shutdown_Is_Not_A_Fault(t *testing.T) {
	req := require.New(t)
	ln, err := Listen("127.0.0.1:0")
	req.NoError(err)
	log := slog.Default()
	handler := NewConnectionHandler(log, NewRegistry(log), keywordSpam{}, domain.NewFilterState(),
		domain.NewPolicy(domain.DefaultSpamThreshold), &lineRecorder{}, nopEvents{})
	listener := NewListener(log, ln, handler, 0)

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() { errs <- listener.Run(ctx) }()

	cancel()
	select {
	case err := <-errs:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		req.Fail("accept loop did not stop")
	}
}

// faultyListener hands out its connections, then fails every Accept with err.
type faultyListener struct {
	conns chan net.Conn
	err   error
}

func (f *faultyListener) Accept() (net.Conn, error) {
	select {
	case conn := <-f.conns:
		return conn, nil
	default:
		return nil, f.err
	}
}

func (f *faultyListener) Close() error   { return nil }
func (f *faultyListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func TestListener_Accept_Fault_Does_Not_Wait_For_Clients(t *testing.T) {
	req := require.New(t)
	log := slog.Default()
	registry := NewRegistry(log)
	display := &lineRecorder{}
	handler := NewConnectionHandler(log, registry, keywordSpam{}, domain.NewFilterState(),
		domain.NewPolicy(domain.DefaultSpamThreshold), display, nopEvents{})

	// Given one client is connected and the next Accept fails for good
	local, remote := net.Pipe()
	defer remote.Close()
	fault := stderrors.New("accept: protocol error")
	conns := make(chan net.Conn, 1)
	conns <- local
	listener := NewListener(log, &faultyListener{conns: conns, err: fault}, handler, 0)

	// When the accept loop runs
	errs := make(chan error, 1)
	go func() { errs <- listener.Run(context.Background()) }()

	// Then the fault comes back while the client is still being served
	select {
	case err := <-errs:
		req.ErrorIs(err, fault)
	case <-time.After(2 * time.Second):
		req.Fail("accept loop blocked on a connected client")
	}
	display.waitFor(t, "Client connected: pipe")
	req.Eventually(func() bool { return registry.Len() == 1 }, 3*time.Second, 10*time.Millisecond)
}

func TestTemporaryAcceptFault(t *testing.T) {
	req := require.New(t)
	req.True(temporary(&net.OpError{Op: "accept", Err: syscall.EMFILE}))
	req.True(temporary(&net.OpError{Op: "accept", Err: syscall.ENFILE}))
	req.True(temporary(timeoutError{}))
	req.False(temporary(stderrors.New("accept: protocol error")))
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestNextBackoff(t *testing.T) {
	req := require.New(t)
	req.Equal(minAcceptBackoff, nextBackoff(0))
	req.Equal(2*minAcceptBackoff, nextBackoff(minAcceptBackoff))
	req.Equal(maxAcceptBackoff, nextBackoff(900*time.Millisecond))
}

func TestServer_Client_Conversation(t *testing.T) {
	req := require.New(t)
	server, serverDisplay := startServer(t)
	serverDisplay.waitFor(t, "Server listening on port "+port(server.Addr()))

	alice, aliceDisplay, aliceCtx := startClient(t, server.Addr().String())
	bob, bobDisplay, bobCtx := startClient(t, server.Addr().String())
	aliceDisplay.waitFor(t, "Connected to server: "+server.Addr().String())
	bobDisplay.waitFor(t, "Connected to server: "+server.Addr().String())
	req.Eventually(func() bool { return server.Peers() == 2 }, 3*time.Second, 10*time.Millisecond)
	req.True(alice.Connected())

	// When alice sends a clean message
	req.True(alice.Submit(aliceCtx, "hello bob"))

	// Then bob receives it and alice does not get it back
	line := bobDisplay.waitFor(t, "hello bob")
	req.Equal(domain.Remote, line.Side)
	serverDisplay.waitFor(t, "hello bob")
	mine := aliceDisplay.waitFor(t, "hello bob")
	req.Equal(domain.Local, mine.Side)

	// When alice types spam
	req.True(alice.Submit(aliceCtx, "FREE cruise"))

	// Then only the notice reaches bob
	aliceDisplay.waitFor(t, domain.BlockedOutgoingPrefix+"FREE cruise")
	notice := bobDisplay.waitFor(t, domain.BlockedFromClient)
	req.True(notice.Blocked)
	req.False(bobDisplay.has("FREE cruise"))

	// When the operator broadcasts
	req.True(server.Submit(context.Background(), "welcome all"))
	aliceDisplay.waitFor(t, "welcome all")
	bobDisplay.waitFor(t, "welcome all")

	// When bob switches his filter off, the server still filters relays
	bob.ToggleFilter()
	bobDisplay.waitFor(t, "Spam filter turned OFF (Local)")
	req.True(bob.Submit(bobCtx, "FREE gift"))
	serverDisplay.waitFor(t, domain.BlockedIncomingPrefix+"FREE gift")

	// And alice never sees any echo of her own message
	time.Sleep(100 * time.Millisecond)
	req.Equal(1, aliceDisplay.count("hello bob"))
	req.False(aliceDisplay.has("FREE gift"))
}

func TestServer_Oversized_Broadcast_Keeps_Clients(t *testing.T) {
	req := require.New(t)
	server, serverDisplay := startServer(t)
	_, clientDisplay, _ := startClient(t, server.Addr().String())
	clientDisplay.waitFor(t, "Connected to server: "+server.Addr().String())
	req.Eventually(func() bool { return server.Peers() == 1 }, 3*time.Second, 10*time.Millisecond)

	// When the operator types more than a frame can hold
	req.True(server.Submit(context.Background(), strings.Repeat("a", 70000)))

	// Then the send fails locally and the client stays connected
	serverDisplay.waitFor(t, "Send failed: frame exceeds 65535 encoded bytes")
	req.Equal(1, server.Peers())

	// And the next broadcast still arrives
	req.True(server.Submit(context.Background(), "still there?"))
	clientDisplay.waitFor(t, "still there?")
	req.Equal(1, server.Peers())
}

func TestServer_ToggleFilter(t *testing.T) {
	req := require.New(t)
	server, display := startServer(t)

	req.False(server.ToggleFilter())
	display.waitFor(t, "Spam filter turned OFF")
	req.True(server.ToggleFilter())
	display.waitFor(t, "Spam filter turned ON")
}

func TestServer_Client_Disconnect(t *testing.T) {
	req := require.New(t)
	server, serverDisplay := startServer(t)
	client, clientDisplay, _ := startClient(t, server.Addr().String())
	clientDisplay.waitFor(t, "Connected to server: "+server.Addr().String())
	req.Eventually(func() bool { return server.Peers() == 1 }, 3*time.Second, 10*time.Millisecond)

	// When the client goes away
	client.disconnect()

	// Then the server forgets it
	req.Eventually(func() bool { return server.Peers() == 0 }, 3*time.Second, 10*time.Millisecond)
	req.True(serverDisplay.has("Client disconnected: "))
	clientDisplay.waitFor(t, "Disconnected from server")
}

func TestClient_Connection_Failed(t *testing.T) {
	req := require.New(t)

	// Given nothing listens on the endpoint
	ln, err := Listen("127.0.0.1:0")
	req.NoError(err)
	address := ln.Addr().String()
	req.NoError(ln.Close())

	client, display, ctx := startClient(t, address)

	// Then the failure is shown, then the disconnect
	req.Eventually(func() bool { return display.has("Connection failed: ") }, 3*time.Second, 10*time.Millisecond)
	display.waitFor(t, "Disconnected from server")

	// And sending reports the missing connection
	req.True(client.Submit(ctx, "anyone?"))
	display.waitFor(t, "Not connected to server.")
}
