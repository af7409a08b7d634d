package runtime

import (
	"bufio"
	"chat-guard/domain"
	"chat-guard/errors"
	"chat-guard/infrastructure/wire"
	"net"
	"sync"
)

// DefaultOutboxSize is the number of frames a peer outbox holds before it
// has to grow.
const DefaultOutboxSize = 64

// Peer is one live connection. Reads belong to a single goroutine; writes
// may come from anyone and are serialized so frames never interleave.
type Peer struct {
	ID     domain.PeerID
	conn   net.Conn
	reader *bufio.Reader

	mu sync.Mutex

	// outbox holds encoded frames in broadcast order. It is unbounded: only a
	// transport error ends a peer, never the pace of its reader.
	outboxMu   sync.Mutex
	outbox     [][]byte
	outboxSize int
	wake       chan struct{}

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

func NewPeer(conn net.Conn, outboxSize int) *Peer {
	if outboxSize <= 0 {
		outboxSize = DefaultOutboxSize
	}
	return &Peer{
		ID:         domain.NewPeerID(),
		conn:       conn,
		reader:     bufio.NewReader(conn),
		outbox:     make([][]byte, 0, outboxSize),
		outboxSize: outboxSize,
		wake:       make(chan struct{}, 1),
		closed:     make(chan struct{}),
	}
}

func (p *Peer) Addr() string {
	if addr := p.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// Read blocks until the next complete frame arrives.
func (p *Peer) Read() (string, error) {
	return wire.ReadFrame(p.reader)
}

// Write sends one frame synchronously. A text too large for a frame is
// refused before anything reaches the transport.
func (p *Peer) Write(text string) error {
	frame, err := wire.Encode(text)
	if err != nil {
		return err
	}
	return p.writeFrame(frame)
}

func (p *Peer) writeFrame(frame []byte) error {
	select {
	case <-p.closed:
		return errors.ErrPeerClosed
	default:
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := p.conn.Write(frame)
	return err
}

// enqueue hands an encoded frame to the writer goroutine without blocking.
func (p *Peer) enqueue(frame []byte) error {
	select {
	case <-p.closed:
		return errors.ErrPeerClosed
	default:
	}
	p.outboxMu.Lock()
	p.outbox = append(p.outbox, frame)
	p.outboxMu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return nil
}

// pending swaps the outbox for an empty one and returns what it held.
func (p *Peer) pending() [][]byte {
	p.outboxMu.Lock()
	defer p.outboxMu.Unlock()
	if len(p.outbox) == 0 {
		return nil
	}
	frames := p.outbox
	p.outbox = make([][]byte, 0, p.outboxSize)
	return frames
}

// drain writes queued frames in order until the peer is closed or a write fails.
func (p *Peer) drain(onFailure func(*Peer, error)) {
	for {
		select {
		case <-p.closed:
			return
		case <-p.wake:
			for _, frame := range p.pending() {
				if err := p.writeFrame(frame); err != nil {
					onFailure(p, err)
					return
				}
			}
		}
	}
}

// Done is closed once the peer has been closed.
func (p *Peer) Done() <-chan struct{} {
	return p.closed
}

// Close releases the transport. Only the first call has an effect.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.closeErr = p.conn.Close()
	})
	return p.closeErr
}
