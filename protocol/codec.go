package protocol

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"voiceagent/core"
)

var errNoType = errors.New("protocol: envelope has no type")

// Encode wraps payload in an envelope of the given type. A nil payload
// produces an envelope without a payload field.
func Encode(msgType MessageType, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := sonic.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: encode %s: %w", msgType, err)
		}
		env.Payload = raw
	}
	return sonic.Marshal(env)
}

// Decode reads one envelope off the wire.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, errNoType
	}
	return env, nil
}

// PayloadAs decodes raw into T. It accepts both an envelope payload and the
// Data of an EventPayload.
func PayloadAs[T any](raw []byte) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, errors.New("protocol: empty payload")
	}
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("protocol: decode %T: %w", v, err)
	}
	return v, nil
}

// EventFromPacket flattens an event packet into its wire payload.
func EventFromPacket(p *core.EventPacket) (EventPayload, error) {
	data, err := sonic.Marshal(p.Event)
	if err != nil {
		return EventPayload{}, fmt.Errorf("protocol: marshal event %q: %w", p.Event.GetId(), err)
	}
	return EventPayload{
		SessionKey: p.SessionKey,
		EventID:    p.Event.GetId(),
		Uid:        p.Uid,
		Relayer:    p.Relayer,
		Timestamp:  p.Timestamp,
		Data:       data,
	}, nil
}
