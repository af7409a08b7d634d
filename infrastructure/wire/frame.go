// Package wire implements the length-prefixed string framing spoken by every endpoint.
//
// A frame is a 2-byte big-endian length followed by that many bytes of modified
// UTF-8: NUL is written as C0 80 and runes outside the BMP are written as
// two 3-byte surrogates.
package wire

import (
	"chat-guard/errors"
	"encoding/binary"
	stderrors "errors"
	"io"
	"net"
	"syscall"
	"unicode"
	"unicode/utf16"
)

const (
	headerSize     = 2
	MaxFrameLength = 0xFFFF
)

// WriteFrame encodes text and writes the whole frame with a single Write call.
// Nothing is written when the encoded payload does not fit the length prefix.
func WriteFrame(w io.Writer, text string) error {
	frame, err := Encode(text)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// ReadFrame reads exactly one frame. io.EOF is returned only when the stream
// ends on a frame boundary; a frame cut short yields io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader) (string, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return "", err
	}
	payload := make([]byte, binary.BigEndian.Uint16(header[:]))
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return Decode(payload)
}

// Encode returns the complete frame (header included) for text.
func Encode(text string) ([]byte, error) {
	buf := make([]byte, headerSize, headerSize+len(text))
	for _, r := range text {
		switch {
		case r == 0:
			buf = append(buf, 0xC0, 0x80)
		case r < 0x80:
			buf = append(buf, byte(r))
		case r < 0x800:
			buf = append(buf, 0xC0|byte(r>>6), 0x80|byte(r&0x3F))
		case r < 0x10000:
			buf = appendUnit(buf, uint16(r))
		default:
			hi, lo := utf16.EncodeRune(r)
			buf = appendUnit(buf, uint16(hi))
			buf = appendUnit(buf, uint16(lo))
		}
	}
	size := len(buf) - headerSize
	if size > MaxFrameLength {
		return nil, errors.ErrFrameTooLarge
	}
	binary.BigEndian.PutUint16(buf, uint16(size))
	return buf, nil
}

func appendUnit(buf []byte, u uint16) []byte {
	return append(buf, 0xE0|byte(u>>12), 0x80|byte((u>>6)&0x3F), 0x80|byte(u&0x3F))
}

// Decode turns a modified UTF-8 payload back into a Go string.
// Standard 4-byte UTF-8 sequences are accepted as well.
func Decode(payload []byte) (string, error) {
	units := make([]uint16, 0, len(payload))
	for i := 0; i < len(payload); {
		c := payload[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if !continuation(payload, i, 1) {
				return "", errors.ErrMalformedFrame
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(payload[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if !continuation(payload, i, 2) {
				return "", errors.ErrMalformedFrame
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(payload[i+1]&0x3F)<<6|uint16(payload[i+2]&0x3F))
			i += 3
		case c&0xF8 == 0xF0:
			if !continuation(payload, i, 3) {
				return "", errors.ErrMalformedFrame
			}
			r := rune(c&0x07)<<18 | rune(payload[i+1]&0x3F)<<12 | rune(payload[i+2]&0x3F)<<6 | rune(payload[i+3]&0x3F)
			if r > unicode.MaxRune {
				return "", errors.ErrMalformedFrame
			}
			units = utf16.AppendRune(units, r)
			i += 4
		default:
			return "", errors.ErrMalformedFrame
		}
	}
	return string(utf16.Decode(units)), nil
}

// continuation checks that the n bytes following payload[i] are continuation bytes.
func continuation(payload []byte, i, n int) bool {
	if i+n >= len(payload) {
		return false
	}
	for k := 1; k <= n; k++ {
		if payload[i+k]&0xC0 != 0x80 {
			return false
		}
	}
	return true
}

// IsDisconnect reports whether err is the ordinary end of a connection
// (clean EOF, local close, peer reset) rather than a protocol fault.
func IsDisconnect(err error) bool {
	return stderrors.Is(err, io.EOF) ||
		stderrors.Is(err, net.ErrClosed) ||
		stderrors.Is(err, io.ErrClosedPipe) ||
		stderrors.Is(err, syscall.ECONNRESET) ||
		stderrors.Is(err, syscall.ECONNABORTED) ||
		stderrors.Is(err, syscall.EPIPE)
}
