package runtime

import (
	"chat-guard/contract"
	"chat-guard/domain"
	"chat-guard/errors"
	"chat-guard/infrastructure/wire"
	"chat-guard/runtime/workers"
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultAddress     = "127.0.0.1:6001"
	DefaultDialRetries = 3
	DefaultDialBackoff = 200 * time.Millisecond
)

type ClientOptions struct {
	Address         string
	DialRetries     uint64
	DialBackoff     time.Duration
	QueueSize       int
	RestartInterval time.Duration
}

// Client is a participant endpoint with one upstream connection. It does not
// reconnect once the connection is gone; sends then report "Not connected".
type Client struct {
	log        *slog.Logger
	opts       ClientOptions
	filter     *domain.FilterState
	display    contract.Display
	supervisor *workers.Supervisor
	outgoing   chan string

	mu       sync.RWMutex
	upstream *Peer
}

var _ contract.Transmitter = (*Client)(nil)

func NewClient(
	log *slog.Logger,
	classifier contract.Classifier,
	policy domain.Policy,
	display contract.Display,
	events contract.EventLog,
	opts ClientOptions,
) *Client {
	if opts.Address == "" {
		opts.Address = DefaultAddress
	}
	if opts.DialBackoff <= 0 {
		opts.DialBackoff = DefaultDialBackoff
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	c := &Client{
		log:        log.With("server", opts.Address),
		opts:       opts,
		filter:     domain.NewFilterState(),
		display:    display,
		supervisor: workers.NewSupervisor(log, opts.RestartInterval),
		outgoing:   make(chan string, opts.QueueSize),
	}
	sender := NewLocalSender(log, ClientRole, classifier, c.filter, policy, display, events, c)
	c.supervisor.Add(&upstreamWorker{client: c}, workers.NewSenderWorker(log, sender, c.outgoing))
	return c
}

// Run blocks until ctx is done, even after the server went away.
func (c *Client) Run(ctx context.Context) {
	c.supervisor.Run(ctx)
	c.disconnect()
}

func (c *Client) Submit(ctx context.Context, text string) bool {
	select {
	case c.outgoing <- text:
		return true
	case <-ctx.Done():
		return false
	}
}

// Transmit writes one frame upstream.
func (c *Client) Transmit(text string) error {
	c.mu.RLock()
	upstream := c.upstream
	c.mu.RUnlock()
	if upstream == nil {
		return errors.ErrNotConnected
	}
	return upstream.Write(text)
}

func (c *Client) ToggleFilter() bool {
	enabled := c.filter.Toggle()
	c.display.Show(domain.SystemLine("Spam filter turned " + c.filter.Label() + " (Local)"))
	return enabled
}

func (c *Client) Filter() *domain.FilterState {
	return c.filter
}

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.upstream != nil
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	var dialer net.Dialer
	var conn net.Conn
	backoff := retry.WithMaxRetries(c.opts.DialRetries, retry.NewFibonacci(c.opts.DialBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		conn, err = dialer.DialContext(ctx, "tcp", c.opts.Address)
		if err != nil {
			c.log.Debug("Dial attempt failed", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	return conn, err
}

// session connects then displays every frame until the connection ends.
func (c *Client) session(ctx context.Context) {
	defer c.display.Show(domain.SystemLine("Disconnected from server"))

	conn, err := c.dial(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Warn("Connection failed", "error", err)
			c.display.Show(domain.SystemLine("Connection failed: " + err.Error()))
		}
		return
	}
	upstream := NewPeer(conn, 0)
	c.mu.Lock()
	c.upstream = upstream
	c.mu.Unlock()
	defer c.disconnect()

	stop := context.AfterFunc(ctx, func() { _ = upstream.Close() })
	defer stop()

	c.log.Info("Connected")
	c.display.Show(domain.SystemLine("Connected to server: " + c.opts.Address))
	for {
		text, err := upstream.Read()
		if err != nil {
			if !wire.IsDisconnect(err) && ctx.Err() == nil {
				c.log.Warn("Connection error", "error", err)
				c.display.Show(domain.SystemLine("Connection failed: " + err.Error()))
			}
			return
		}
		line := domain.NewLine(text, domain.Remote)
		if domain.IsBlockedNotice(text) {
			line = line.AsBlocked()
		}
		c.display.Show(line)
	}
}

func (c *Client) disconnect() {
	c.mu.Lock()
	upstream := c.upstream
	c.upstream = nil
	c.mu.Unlock()
	if upstream != nil {
		_ = upstream.Close()
	}
}

// upstreamWorker runs the single connection of the client. It returns nil
// when the session ends so the supervisor does not reconnect.
type upstreamWorker struct {
	client *Client
}

func (w *upstreamWorker) Run(ctx context.Context) error {
	w.client.session(ctx)
	return nil
}
