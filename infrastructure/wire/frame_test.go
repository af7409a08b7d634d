package wire

import (
	"bytes"
	"chat-guard/errors"
	"io"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFrame_RoundTrip(t *testing.T) {
	req := require.New(t)

	tests := []struct {
		name  string
		input string
	}{
		{"Empty string", ""},
		{"Ascii", "hello world"},
		{"Embedded newlines", "line one\nline two\r\n\n"},
		{"Accents", "Un été à Noël"},
		{"Emoji outside the BMP", "ok 😀 👍"},
		{"Embedded NUL", "a\x00b"},
		{"Pipe and brackets", "[BLOCKED SPAM - Outgoing from Client] | 0.99"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		req.NoError(WriteFrame(&buf, tt.input), tt.name)
		got, err := ReadFrame(&buf)
		req.NoError(err, tt.name)
		req.Equal(tt.input, got, tt.name)
		req.Zero(buf.Len(), tt.name)
	}
}

func TestFrame_ModifiedUTF8Bytes(t *testing.T) {
	req := require.New(t)

	frame, err := Encode("hi")
	req.NoError(err)
	req.Equal([]byte{0x00, 0x02, 'h', 'i'}, frame)

	// NUL is never written as a raw zero byte
	frame, err = Encode("\x00")
	req.NoError(err)
	req.Equal([]byte{0x00, 0x02, 0xC0, 0x80}, frame)

	// U+1F600 is written as the surrogate pair D83D DE00
	frame, err = Encode("😀")
	req.NoError(err)
	req.Equal([]byte{0x00, 0x06, 0xED, 0xA0, 0xBD, 0xED, 0xB8, 0x80}, frame)
}

func TestFrame_AcceptsStandardUTF8(t *testing.T) {
	req := require.New(t)
	payload := []byte("ok 😀")
	frame := append([]byte{0x00, byte(len(payload))}, payload...)

	got, err := ReadFrame(bytes.NewReader(frame))
	req.NoError(err)
	req.Equal("ok 😀", got)
}

func TestFrame_TooLarge(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer

	// Given a payload exactly at the limit
	req.NoError(WriteFrame(&buf, strings.Repeat("a", MaxFrameLength)))
	got, err := ReadFrame(&buf)
	req.NoError(err)
	req.Len(got, MaxFrameLength)

	// When the payload is one byte over
	err = WriteFrame(&buf, strings.Repeat("a", MaxFrameLength+1))

	// Then nothing is written
	req.ErrorIs(err, errors.ErrFrameTooLarge)
	req.Zero(buf.Len())

	// And multi byte runes count with their encoded size
	err = WriteFrame(&buf, strings.Repeat("é", MaxFrameLength/2+1))
	req.ErrorIs(err, errors.ErrFrameTooLarge)
}

func TestFrame_EndOfStream(t *testing.T) {
	req := require.New(t)

	// Clean boundary
	_, err := ReadFrame(bytes.NewReader(nil))
	req.ErrorIs(err, io.EOF)

	// Truncated header
	_, err = ReadFrame(bytes.NewReader([]byte{0x00}))
	req.ErrorIs(err, io.ErrUnexpectedEOF)

	// Truncated payload
	_, err = ReadFrame(bytes.NewReader([]byte{0x00, 0x05, 'a', 'b'}))
	req.ErrorIs(err, io.ErrUnexpectedEOF)
}

func TestFrame_Malformed(t *testing.T) {
	req := require.New(t)

	tests := [][]byte{
		// lone continuation byte
		{0x00, 0x01, 0x80},
		// bad continuation
		{0x00, 0x02, 0xC3, 0x41},
		// cut 3-byte sequence
		{0x00, 0x02, 0xE2, 0x82},
		// invalid lead byte
		{0x00, 0x01, 0xFF},
		// beyond unicode.MaxRune
		{0x00, 0x04, 0xF7, 0xBF, 0xBF, 0xBF},
	}
	for _, frame := range tests {
		_, err := ReadFrame(bytes.NewReader(frame))
		req.ErrorIs(err, errors.ErrMalformedFrame, "frame=%x", frame)
	}
}

func TestFrame_SequentialFrames(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer
	messages := []string{"first", "", "third\nwith newline"}
	for _, m := range messages {
		req.NoError(WriteFrame(&buf, m))
	}
	for _, m := range messages {
		got, err := ReadFrame(&buf)
		req.NoError(err)
		req.Equal(m, got)
	}
	_, err := ReadFrame(&buf)
	req.ErrorIs(err, io.EOF)
}

func TestIsDisconnect(t *testing.T) {
	req := require.New(t)
	req.True(IsDisconnect(io.EOF))
	req.True(IsDisconnect(net.ErrClosed))
	req.True(IsDisconnect(io.ErrClosedPipe))
	req.True(IsDisconnect(&net.OpError{Op: "read", Err: net.ErrClosed}))
	req.False(IsDisconnect(io.ErrUnexpectedEOF))
	req.False(IsDisconnect(errors.ErrMalformedFrame))
}
