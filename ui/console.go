// Package ui renders the conversation of an endpoint on a terminal and turns
// typed lines into chat commands.
package ui

import (
	"bufio"
	"chat-guard/contract"
	"chat-guard/domain"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/gookit/color"
)

const (
	CommandFilter = "/filter"
	CommandQuit   = "/quit"

	timeLayout = "15:04:05"
)

var _ contract.Display = (*Console)(nil)

var (
	blockedStyle = color.New(color.FgRed, color.OpBold)
	localStyle   = color.New(color.FgGreen)
	systemStyle  = color.New(color.FgGray)
	detailStyle  = color.New(color.FgGray, color.OpItalic)
)

// Console writes one line per conversation entry. Safe for concurrent use.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	colours bool
}

func NewConsole(out io.Writer, colours bool) *Console {
	return &Console{out: out, colours: colours}
}

func (c *Console) Show(line domain.Line) {
	text := c.Format(line)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, text)
}

// Format renders a line as "hh:mm:ss <marker> text [classification]".
func (c *Console) Format(line domain.Line) string {
	var marker string
	var style color.Style
	switch line.Side {
	case domain.Local:
		marker, style = "me >", localStyle
	case domain.Remote:
		marker, style = "   <", nil
	default:
		marker, style = " ***", systemStyle
	}
	if line.Blocked {
		style = blockedStyle
	}

	body := line.Text
	if c.colours && style != nil {
		body = style.Render(body)
	}
	out := fmt.Sprintf("%s %s %s", line.At.Format(timeLayout), marker, body)
	if line.Classification != nil {
		detail := "[" + line.Classification.String() + "]"
		if c.colours {
			detail = detailStyle.Render(detail)
		}
		out += " " + detail
	}
	return out
}

// Endpoint is what the console drives.
type Endpoint interface {
	Submit(ctx context.Context, text string) bool
	ToggleFilter() bool
}

// ReadInput feeds typed lines to the endpoint until the input ends, the user
// types /quit or ctx is done.
func ReadInput(ctx context.Context, in io.Reader, endpoint Endpoint) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := scanner.Text()
		switch strings.TrimSpace(line) {
		case CommandQuit:
			return nil
		case CommandFilter:
			endpoint.ToggleFilter()
		default:
			if !endpoint.Submit(ctx, line) {
				return nil
			}
		}
	}
	return scanner.Err()
}
