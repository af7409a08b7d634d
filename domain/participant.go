// Package domain contains core concepts of the chat system.
// This file defines peer identities and the connection lifecycle.
package domain

import "github.com/google/uuid"

// PeerID identifies one accepted connection for its whole lifetime.
type PeerID uuid.UUID

func NewPeerID() PeerID {
	return PeerID(uuid.New())
}

func (id PeerID) String() string {
	return uuid.UUID(id).String()
}

// ConnState is the lifecycle of a server-side connection.
type ConnState int

const (
	Connecting ConnState = iota
	Established
	Reading
	Classifying
	Closing
	Closed
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "CONNECTING"
	case Established:
		return "ESTABLISHED"
	case Reading:
		return "READING"
	case Classifying:
		return "CLASSIFYING"
	case Closing:
		return "CLOSING"
	case Closed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
