package errors

import "fmt"

var (
	ErrWorkerPanic      = fmt.Errorf("worker panic")
	ErrEmptyWords       = fmt.Errorf("no words have been found")
	ErrFrameTooLarge    = fmt.Errorf("frame exceeds 65535 encoded bytes")
	ErrMalformedFrame   = fmt.Errorf("malformed modified UTF-8 frame")
	ErrPeerClosed       = fmt.Errorf("peer is closed")
	ErrNotConnected     = fmt.Errorf("not connected to server")
	ErrBind             = fmt.Errorf("unable to bind listening endpoint")
	ErrClassifierLaunch = fmt.Errorf("classifier process failed to launch")
	ErrClassifierMode   = fmt.Errorf("unknown classifier mode")
	ErrInvalidConfig    = fmt.Errorf("invalid configuration")
)
