package runtime

import (
	"chat-guard/errors"
	"chat-guard/infrastructure/wire"
	stderrors "errors"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// Registry holds the writable peers of the server.
// Every registered peer owns one writer goroutine fed by its outbox, so a
// broadcast only enqueues and never waits on a slow or dead connection.
// A slow reader makes its own outbox grow; it is dropped only when the
// transport reports an error.
type Registry struct {
	mu     sync.RWMutex
	peers  map[*Peer]struct{}
	closed bool

	log     *slog.Logger
	writers sync.WaitGroup
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		peers: make(map[*Peer]struct{}),
		log:   log,
	}
}

// Add registers p and starts its writer. It returns false when p is
// already registered or the registry has been closed.
func (r *Registry) Add(p *Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if _, ok := r.peers[p]; ok {
		return false
	}
	r.peers[p] = struct{}{}
	r.writers.Add(1)
	go func() {
		defer r.writers.Done()
		p.drain(r.onWriteFailure)
	}()
	return true
}

// RemoveIfPresent unregisters p and closes its transport.
// It reports whether p was registered.
func (r *Registry) RemoveIfPresent(p *Peer) bool {
	r.mu.Lock()
	_, ok := r.peers[p]
	delete(r.peers, p)
	r.mu.Unlock()

	if ok {
		_ = p.Close()
	}
	return ok
}

// Broadcast queues text for every peer except excluding (compared by identity).
// The frame is encoded once; a text that cannot be framed is refused with
// errors.ErrFrameTooLarge and no peer is touched. A peer whose transport fails
// is removed; the others are unaffected.
// It returns the number of peers the frame was queued for.
func (r *Registry) Broadcast(text string, excluding *Peer) (int, error) {
	frame, err := wire.Encode(text)
	if err != nil {
		return 0, err
	}

	r.mu.RLock()
	targets := lo.Filter(lo.Keys(r.peers), func(p *Peer, _ int) bool {
		return p != excluding
	})
	r.mu.RUnlock()

	queued := 0
	for _, p := range targets {
		if err := p.enqueue(frame); err != nil {
			r.onWriteFailure(p, err)
			continue
		}
		queued++
	}
	return queued, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Close drops every peer and waits for their writers to stop.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	peers := lo.Keys(r.peers)
	r.peers = make(map[*Peer]struct{})
	r.mu.Unlock()

	for _, p := range peers {
		_ = p.Close()
	}
	r.writers.Wait()
}

func (r *Registry) onWriteFailure(p *Peer, err error) {
	if !r.RemoveIfPresent(p) {
		return
	}
	if stderrors.Is(err, errors.ErrPeerClosed) {
		r.log.Debug("Peer already closed, removed", "peer", p.ID.String())
		return
	}
	r.log.Warn("Peer write failed, removed", "peer", p.ID.String(), "addr", p.Addr(), "error", err)
}
