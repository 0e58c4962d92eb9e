package core

import (
	"time"

	"github.com/google/uuid"
)

type EventPacket struct {
	Event      IEvent
	SessionKey string
	Uid        string    // Unique identifier for tracking the event packet.
	Relayer    string    // Identifier of the component that emitted the event.
	Timestamp  time.Time // When the packet was created.
}

func NewEventPacket(event IEvent, sessionKey string, relayer string) *EventPacket {
	return &EventPacket{
		Event:      event,
		SessionKey: sessionKey,
		Uid:        uuid.New().String(),
		Relayer:    relayer,
		Timestamp:  time.Now().UTC(),
	}
}
