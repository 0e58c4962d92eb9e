package core

type IEvent interface {
	GetId() string // Returns the unique identifier of the event type.
}

// EventObserver receives every event published for a session.
type EventObserver interface {
	Publish(packet *EventPacket)
}

// EventObserverFunc adapts a function to EventObserver.
type EventObserverFunc func(packet *EventPacket)

func (f EventObserverFunc) Publish(packet *EventPacket) { f(packet) }

// MultiObserver fans a packet out to several observers in order.
type MultiObserver []EventObserver

func (m MultiObserver) Publish(packet *EventPacket) {
	for _, o := range m {
		if o != nil {
			o.Publish(packet)
		}
	}
}
