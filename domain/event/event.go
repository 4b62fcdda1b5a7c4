package event

import (
	"linkup/domain"
)

// DomainEvent is anything pushed to a live connection.
type DomainEvent interface {
	EventName() string
}

// NewMessage is delivered point-to-point to the recipient's connection
// only, never broadcast.
type NewMessage struct {
	Message domain.Message
}

func (NewMessage) EventName() string { return "newMessage" }

// PresenceChanged carries the full online-user set and is fanned out to
// every live connection after a registry mutation.
type PresenceChanged struct {
	Online []string
}

func (PresenceChanged) EventName() string { return "presenceChanged" }
