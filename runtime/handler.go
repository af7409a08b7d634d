package runtime

import (
	"chat-guard/contract"
	"chat-guard/domain"
	"chat-guard/domain/event"
	"chat-guard/infrastructure/wire"
	"context"
	"fmt"
	"log/slog"
)

// ConnectionHandler serves one accepted connection: it reads frames in
// order, classifies them and relays what the policy lets through.
type ConnectionHandler struct {
	log        *slog.Logger
	registry   *Registry
	classifier contract.Classifier
	filter     *domain.FilterState
	policy     domain.Policy
	display    contract.Display
	events     contract.EventLog
}

func NewConnectionHandler(
	log *slog.Logger,
	registry *Registry,
	classifier contract.Classifier,
	filter *domain.FilterState,
	policy domain.Policy,
	display contract.Display,
	events contract.EventLog,
) *ConnectionHandler {
	return &ConnectionHandler{
		log:        log,
		registry:   registry,
		classifier: classifier,
		filter:     filter,
		policy:     policy,
		display:    display,
		events:     events,
	}
}

// Handle blocks until the connection ends. Cancelling ctx closes the
// transport, which ends the read loop through the same cleanup path.
func (h *ConnectionHandler) Handle(ctx context.Context, peer *Peer) {
	addr := peer.Addr()
	log := h.log.With("peer", peer.ID.String(), "addr", addr)
	log.Debug("Connection state", "state", domain.Connecting)

	if !h.registry.Add(peer) {
		log.Warn("Registry refused the connection")
		_ = peer.Close()
		return
	}
	h.display.Show(domain.SystemLine("Client connected: " + addr))
	h.events.Append(event.NewRecord(event.Connect, addr, event.NoConfidence))
	log.Debug("Connection state", "state", domain.Established)

	stop := context.AfterFunc(ctx, func() { _ = peer.Close() })
	defer stop()
	defer func() {
		log.Debug("Connection state", "state", domain.Closing)
		h.registry.RemoveIfPresent(peer)
		_ = peer.Close()
		h.display.Show(domain.SystemLine("Client disconnected: " + addr))
		h.events.Append(event.NewRecord(event.Disconnect, addr, event.NoConfidence))
		log.Debug("Connection state", "state", domain.Closed)
	}()

	for {
		log.Debug("Connection state", "state", domain.Reading)
		text, err := peer.Read()
		if err != nil {
			if !wire.IsDisconnect(err) && ctx.Err() == nil {
				log.Warn("Connection error", "error", err)
				h.display.Show(domain.SystemLine(fmt.Sprintf("Client error: %s (%v)", addr, err)))
			}
			return
		}
		h.relay(ctx, peer, text, log)
	}
}

// relay classifies on the read goroutine of the connection on purpose: it keeps
// the order of that connection, and every connection has its own goroutine.
func (h *ConnectionHandler) relay(ctx context.Context, peer *Peer, text string, log *slog.Logger) {
	// Notices were classified where the message was first typed.
	if domain.IsBlockedNotice(text) {
		h.display.Show(domain.NewLine(text, domain.Remote).AsBlocked())
		h.broadcast(peer, text, log)
		h.events.Append(event.NewRecord(event.Client, text, event.NoConfidence))
		return
	}

	log.Debug("Connection state", "state", domain.Classifying)
	res := h.classifier.ClassifyIfEnabled(ctx, text, h.filter.Enabled())
	if h.policy.ShouldBlock(res) {
		log.Info("Incoming message blocked", "confidence", res.Confidence)
		h.display.Show(domain.NewLine(domain.BlockedIncomingPrefix+text, domain.Remote).
			AsBlocked().
			WithClassification(res))
		h.events.Append(event.NewRecord(event.BlockedIncoming, text, res.Confidence))
		return
	}

	h.display.Show(domain.NewLine(text, domain.Remote).WithClassification(res))
	h.broadcast(peer, text, log)
	h.events.Append(event.NewRecord(event.Client, text, event.ConfidenceOf(res)))
}

// broadcast relays text to every other peer. A text that cannot be framed is
// reported locally and nobody is disconnected.
func (h *ConnectionHandler) broadcast(peer *Peer, text string, log *slog.Logger) {
	queued, err := h.registry.Broadcast(text, peer)
	if err != nil {
		log.Warn("Message not relayed", "error", err, "bytes", len(text))
		h.display.Show(domain.SystemLine(fmt.Sprintf("Relay failed: %s (%v)", peer.Addr(), err)))
		return
	}
	log.Debug("Message relayed", "peers", queued)
}
