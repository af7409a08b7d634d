package e2e

import (
	"chat-guard/infrastructure/wire"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/gookit/color"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type BaseChatSuite struct {
	suite.Suite
	Config  Config
	timeout time.Duration
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseChatSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("CHAT_E2E_ADDR is not set")
	}
	s.timeout, err = time.ParseDuration(s.Config.Timeout)
	s.Require().NoError(err)
}

func (s *BaseChatSuite) header(t *testing.T, name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	t.Log(header)
}

// ChatConn is a raw framed connection to the server acting as a participant.
type ChatConn struct {
	t       *testing.T
	name    string
	conn    net.Conn
	timeout time.Duration
}

// Dial connects a new participant and logs every frame it exchanges.
func (s *BaseChatSuite) Dial(name string) *ChatConn {
	t := s.T()
	s.header(t, name)
	conn, err := net.DialTimeout("tcp", s.Config.ServerAddr, s.timeout)
	s.Require().NoError(err, "Failed to connect to chat server at "+s.Config.ServerAddr)
	t.Cleanup(func() { _ = conn.Close() })
	return &ChatConn{t: t, name: name, conn: conn, timeout: s.timeout}
}

func (c *ChatConn) Send(text string) error {
	c.t.Logf("%s > %q", c.name, text)
	return wire.WriteFrame(c.conn, text)
}

// Receive waits for the next frame.
func (c *ChatConn) Receive() (string, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	text, err := wire.ReadFrame(c.conn)
	if err == nil {
		c.t.Logf("%s < %q", c.name, text)
	}
	return text, err
}

// Silent reports whether nothing arrives within d.
func (c *ChatConn) Silent(d time.Duration) bool {
	_ = c.conn.SetReadDeadline(time.Now().Add(d))
	text, err := wire.ReadFrame(c.conn)
	if err == nil {
		c.t.Logf("%s < %q (unexpected)", c.name, text)
		return false
	}
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

func (c *ChatConn) Close() error {
	return c.conn.Close()
}

// WithHealth provides a health client for the admin endpoint within a contextual test step.
func (s *BaseChatSuite) WithHealth(name string, fn func(ctx context.Context, client healthpb.HealthClient)) {
	if s.Config.AdminAddr == "" {
		s.T().Skip("CHAT_E2E_ADMIN_ADDR is not set")
	}
	s.header(s.T(), name)
	conn, err := grpc.NewClient(s.Config.AdminAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to admin server at "+s.Config.AdminAddr)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	fn(ctx, healthpb.NewHealthClient(conn))
}
