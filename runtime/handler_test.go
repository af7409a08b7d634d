package runtime

import (
	"chat-guard/domain"
	"chat-guard/domain/event"
	"chat-guard/infrastructure/wire"
	"chat-guard/mocks"
	"context"
	"encoding/binary"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type handlerFixture struct {
	registry   *Registry
	classifier *mocks.MockClassifier
	filter     *domain.FilterState
	lines      chan domain.Line
	records    chan event.Record
	client     net.Conn
	listener   net.Conn
	done       chan struct{}
	cancel     context.CancelFunc
}

// startHandler serves one connection and registers a second peer that
// observes what gets relayed.
func startHandler(t *testing.T) *handlerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	f := &handlerFixture{
		registry:   NewRegistry(log),
		classifier: mocks.NewMockClassifier(ctrl),
		filter:     domain.NewFilterState(),
		lines:      make(chan domain.Line, 32),
		records:    make(chan event.Record, 32),
		done:       make(chan struct{}),
	}
	display := mocks.NewMockDisplay(ctrl)
	display.EXPECT().Show(gomock.Any()).Do(func(l domain.Line) { f.lines <- l }).AnyTimes()
	events := mocks.NewMockEventLog(ctrl)
	events.EXPECT().Append(gomock.Any()).Do(func(r event.Record) { f.records <- r }).AnyTimes()

	observer, listener := pipePeer(t, 0)
	f.listener = listener
	f.registry.Add(observer)

	local, client := net.Pipe()
	f.client = client
	t.Cleanup(func() { _ = client.Close() })

	handler := NewConnectionHandler(log, f.registry, f.classifier, f.filter,
		domain.NewPolicy(domain.DefaultSpamThreshold), display, events)

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	t.Cleanup(cancel)
	t.Cleanup(f.registry.Close)
	go func() {
		defer close(f.done)
		handler.Handle(ctx, NewPeer(local, 0))
	}()

	// Connect phase
	line := f.nextLine(t)
	require.Equal(t, "Client connected: pipe", line.Text)
	require.Equal(t, domain.System, line.Side)
	record := f.nextRecord(t)
	require.Equal(t, event.Connect, record.Tag)
	require.Equal(t, event.NoConfidence, record.Confidence)
	return f
}

func (f *handlerFixture) nextLine(t *testing.T) domain.Line {
	t.Helper()
	select {
	case l := <-f.lines:
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("no line displayed")
	}
	return domain.Line{}
}

func (f *handlerFixture) nextRecord(t *testing.T) event.Record {
	t.Helper()
	select {
	case r := <-f.records:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no record appended")
	}
	return event.Record{}
}

func (f *handlerFixture) send(t *testing.T, text string) {
	t.Helper()
	require.NoError(t, wire.WriteFrame(f.client, text))
}

func (f *handlerFixture) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return")
	}
}

func TestConnectionHandler_Relays_Ham(t *testing.T) {
	req := require.New(t)
	f := startHandler(t)
	ham := &domain.Classification{Label: domain.LabelHam, Confidence: 0.97}
	f.classifier.EXPECT().ClassifyIfEnabled(gomock.Any(), "see you at 6", true).Return(ham)

	// When the client sends a clean message
	f.send(t, "see you at 6")

	// Then it is shown, relayed to the other peer and logged
	line := f.nextLine(t)
	req.Equal("see you at 6", line.Text)
	req.Equal(domain.Remote, line.Side)
	req.False(line.Blocked)
	req.Equal(ham, line.Classification)

	frames, err := readFrames(f.listener, 1)
	req.NoError(err)
	req.Equal([]string{"see you at 6"}, frames)

	record := f.nextRecord(t)
	req.Equal(event.Client, record.Tag)
	req.Equal(0.97, record.Confidence)
	req.Equal("see you at 6", record.Text)
}

func TestConnectionHandler_Blocks_Spam(t *testing.T) {
	req := require.New(t)
	f := startHandler(t)
	spam := &domain.Classification{Label: domain.LabelSpam, Confidence: 0.95}
	gomock.InOrder(
		f.classifier.EXPECT().ClassifyIfEnabled(gomock.Any(), "WIN A FREE CRUISE", true).Return(spam),
		f.classifier.EXPECT().ClassifyIfEnabled(gomock.Any(), "sorry, wrong chat", true).
			Return(&domain.Classification{Label: domain.LabelSpam, Confidence: 0.79}),
	)

	// When the client sends spam followed by a borderline message
	f.send(t, "WIN A FREE CRUISE")
	f.send(t, "sorry, wrong chat")

	// Then the spam is displayed locally only
	line := f.nextLine(t)
	req.Equal("[BLOCKED SPAM] WIN A FREE CRUISE", line.Text)
	req.True(line.Blocked)
	record := f.nextRecord(t)
	req.Equal(event.BlockedIncoming, record.Tag)
	req.Equal(0.95, record.Confidence)
	req.Equal("WIN A FREE CRUISE", record.Text)

	// And the first frame the other peer sees is the message under the threshold
	frames, err := readFrames(f.listener, 1)
	req.NoError(err)
	req.Equal([]string{"sorry, wrong chat"}, frames)
	req.False(f.nextLine(t).Blocked)
}

func TestConnectionHandler_Filter_Disabled(t *testing.T) {
	req := require.New(t)
	f := startHandler(t)
	f.filter.Set(false)
	f.classifier.EXPECT().ClassifyIfEnabled(gomock.Any(), "WIN A FREE CRUISE", false).Return(nil)

	f.send(t, "WIN A FREE CRUISE")

	frames, err := readFrames(f.listener, 1)
	req.NoError(err)
	req.Equal([]string{"WIN A FREE CRUISE"}, frames)
	req.Nil(f.nextLine(t).Classification)
	req.Equal(event.NoConfidence, f.nextRecord(t).Confidence)
}

func TestConnectionHandler_Exact_Notice_Is_Not_Classified(t *testing.T) {
	req := require.New(t)
	f := startHandler(t)
	f.classifier.EXPECT().ClassifyIfEnabled(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	// When a client reports that it blocked one of its messages
	f.send(t, domain.BlockedFromClient)

	// Then the notice is shown as blocked and relayed as it is
	line := f.nextLine(t)
	req.Equal(domain.BlockedFromClient, line.Text)
	req.True(line.Blocked)
	frames, err := readFrames(f.listener, 1)
	req.NoError(err)
	req.Equal([]string{domain.BlockedFromClient}, frames)
}

func TestConnectionHandler_Notice_Prefix_Is_Classified(t *testing.T) {
	req := require.New(t)
	f := startHandler(t)
	spam := domain.BlockedFromClient + " BUY CHEAP PILLS http://spam.example"

	// Given a text dressed up as a notice
	gomock.InOrder(
		f.classifier.EXPECT().ClassifyIfEnabled(gomock.Any(), spam, true).
			Return(&domain.Classification{Label: domain.LabelSpam, Confidence: 0.99}),
		f.classifier.EXPECT().ClassifyIfEnabled(gomock.Any(), "after", true).
			Return(&domain.Classification{Label: domain.LabelHam, Confidence: 0.9}),
	)

	// When it is sent followed by an ordinary message
	f.send(t, spam)
	f.send(t, "after")

	// Then it is blocked like any other spam
	line := f.nextLine(t)
	req.Equal(domain.BlockedIncomingPrefix+spam, line.Text)
	req.Equal(event.BlockedIncoming, f.nextRecord(t).Tag)

	// And the other peer only ever sees the ordinary message
	frames, err := readFrames(f.listener, 1)
	req.NoError(err)
	req.Equal([]string{"after"}, frames)
}

func TestConnectionHandler_Oversized_Relay_Keeps_Peers(t *testing.T) {
	req := require.New(t)
	f := startHandler(t)

	// Given a valid frame of 60000 bytes of standard UTF-8 that grows to
	// 90000 bytes once re-encoded for the other peers
	text := strings.Repeat("😀", 15000)
	frame := make([]byte, 2, 2+len(text))
	binary.BigEndian.PutUint16(frame, uint16(len(text)))
	frame = append(frame, text...)

	ham := &domain.Classification{Label: domain.LabelHam, Confidence: 0.9}
	gomock.InOrder(
		f.classifier.EXPECT().ClassifyIfEnabled(gomock.Any(), text, true).Return(ham),
		f.classifier.EXPECT().ClassifyIfEnabled(gomock.Any(), "after", true).Return(ham),
	)

	// When the client sends it
	_, err := f.client.Write(frame)
	req.NoError(err)

	// Then it is shown locally, the relay failure is reported and nobody is dropped
	req.Equal(text, f.nextLine(t).Text)
	req.Equal("Relay failed: pipe (frame exceeds 65535 encoded bytes)", f.nextLine(t).Text)
	req.Equal(event.Client, f.nextRecord(t).Tag)
	req.Equal(2, f.registry.Len())

	// And the next message still reaches the other peer
	f.send(t, "after")
	frames, err := readFrames(f.listener, 1)
	req.NoError(err)
	req.Equal([]string{"after"}, frames)
	req.Equal(2, f.registry.Len())
}

func TestConnectionHandler_Disconnect(t *testing.T) {
	req := require.New(t)
	f := startHandler(t)

	// When the client leaves
	req.NoError(f.client.Close())
	f.waitClosed(t)

	// Then cleanup ran once
	req.Equal("Client disconnected: pipe", f.nextLine(t).Text)
	req.Equal(event.Disconnect, f.nextRecord(t).Tag)
	req.Equal(1, f.registry.Len())
	req.Empty(f.lines)
	req.Empty(f.records)
}

func TestConnectionHandler_Protocol_Error(t *testing.T) {
	req := require.New(t)
	f := startHandler(t)

	// When the client sends an invalid payload
	_, err := f.client.Write([]byte{0x00, 0x01, 0xFF})
	req.NoError(err)
	f.waitClosed(t)

	// Then the error is surfaced before the disconnect
	req.Contains(f.nextLine(t).Text, "Client error: pipe (")
	req.Equal("Client disconnected: pipe", f.nextLine(t).Text)
}

func TestConnectionHandler_Shutdown(t *testing.T) {
	req := require.New(t)
	f := startHandler(t)

	// When the server shuts down
	f.cancel()
	f.waitClosed(t)

	// Then the disconnect is reported without any error line
	req.Equal("Client disconnected: pipe", f.nextLine(t).Text)
	req.Equal(event.Disconnect, f.nextRecord(t).Tag)
	req.Empty(f.lines)
}
