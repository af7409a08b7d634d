package runtime

import (
	"chat-guard/contract"
	"chat-guard/domain"
	"chat-guard/domain/event"
	"chat-guard/errors"
	"context"
	stderrors "errors"
	"log/slog"
	"strings"
)

// SenderRole holds what differs between the server operator and a client
// when sending: the notice replacing blocked text and the log tag of a send.
type SenderRole struct {
	Notice  string
	SentTag event.Tag
}

var (
	ServerRole = SenderRole{Notice: domain.BlockedFromServer, SentTag: event.Server}
	ClientRole = SenderRole{Notice: domain.BlockedFromClient, SentTag: event.Client}
)

var _ contract.Sender = (*LocalSender)(nil)

// LocalSender classifies text typed on this endpoint before it leaves.
type LocalSender struct {
	log         *slog.Logger
	role        SenderRole
	classifier  contract.Classifier
	filter      *domain.FilterState
	policy      domain.Policy
	display     contract.Display
	events      contract.EventLog
	transmitter contract.Transmitter
}

func NewLocalSender(
	log *slog.Logger,
	role SenderRole,
	classifier contract.Classifier,
	filter *domain.FilterState,
	policy domain.Policy,
	display contract.Display,
	events contract.EventLog,
	transmitter contract.Transmitter,
) *LocalSender {
	return &LocalSender{
		log:         log,
		role:        role,
		classifier:  classifier,
		filter:      filter,
		policy:      policy,
		display:     display,
		events:      events,
		transmitter: transmitter,
	}
}

// Send never returns an error: transport faults are shown on the display.
func (s *LocalSender) Send(ctx context.Context, text string) domain.SendOutcome {
	if strings.TrimSpace(text) == "" {
		return domain.Ignored
	}

	res := s.classifier.ClassifyIfEnabled(ctx, text, s.filter.Enabled())
	if s.policy.ShouldBlock(res) {
		s.log.Info("Outgoing message blocked", "confidence", res.Confidence)
		s.display.Show(domain.NewLine(domain.BlockedOutgoingPrefix+text, domain.Local).
			AsBlocked().
			WithClassification(res))
		s.events.Append(event.NewRecord(event.BlockedOutgoing, text, res.Confidence))
		if err := s.transmitter.Transmit(s.role.Notice); err != nil && !stderrors.Is(err, errors.ErrNotConnected) {
			s.display.Show(domain.SystemLine("Notify failed: " + err.Error()))
		}
		return domain.Blocked
	}

	s.display.Show(domain.NewLine(text, domain.Local).WithClassification(res))
	if err := s.transmitter.Transmit(text); err != nil {
		s.log.Debug("Transmit failed", "error", err)
		if stderrors.Is(err, errors.ErrNotConnected) {
			s.display.Show(domain.SystemLine("Not connected to server."))
		} else {
			s.display.Show(domain.SystemLine("Send failed: " + err.Error()))
		}
		return domain.Failed
	}
	s.events.Append(event.NewRecord(s.role.SentTag, text, event.ConfidenceOf(res)))
	return domain.Sent
}
