package hub

import (
	"encoding/json"
	"errors"
)

// Inbound frames are JSON text of the shape
//
//	{"type": "subscribe"|"unsubscribe"|"broadcast", "channel": "...", "event": ..., "payload": ...}
//
// where "channel" names the topic. Frames are decoded once at the gateway
// boundary into one of the command variants below; anything that does not
// match a known variant is dropped without an error frame and without
// closing the connection.

var errMalformedCommand = errors.New("malformed command frame")

// Command is the tagged union of inbound gateway commands.
type Command interface {
	isCommand()
}

// SubscribeCommand subscribes the connection to a topic.
type SubscribeCommand struct {
	Topic string
}

// UnsubscribeCommand removes the connection from a topic.
type UnsubscribeCommand struct {
	Topic string
}

// BroadcastCommand publishes an arbitrary event to a topic.
type BroadcastCommand struct {
	Topic   string
	Event   interface{}
	Payload interface{}
}

func (SubscribeCommand) isCommand()   {}
func (UnsubscribeCommand) isCommand() {}
func (BroadcastCommand) isCommand()   {}

// inboundFrame is the raw decode target. Event and Payload stay raw so
// key absence is distinguishable from a JSON null value.
type inboundFrame struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Event   json.RawMessage `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// decodeCommand parses one inbound frame. Every failure mode — bad JSON,
// unknown type, missing channel, broadcast without an event — returns
// errMalformedCommand; callers drop the frame silently.
func decodeCommand(data []byte) (Command, error) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, errMalformedCommand
	}
	if frame.Channel == "" {
		return nil, errMalformedCommand
	}

	switch frame.Type {
	case "subscribe":
		return SubscribeCommand{Topic: frame.Channel}, nil
	case "unsubscribe":
		return UnsubscribeCommand{Topic: frame.Channel}, nil
	case "broadcast":
		// event must be present; any value, including null, is accepted.
		if frame.Event == nil {
			return nil, errMalformedCommand
		}
		var event interface{}
		if err := json.Unmarshal(frame.Event, &event); err != nil {
			return nil, errMalformedCommand
		}
		payload := interface{}(map[string]interface{}{})
		if frame.Payload != nil {
			if err := json.Unmarshal(frame.Payload, &payload); err != nil {
				return nil, errMalformedCommand
			}
		}
		return BroadcastCommand{Topic: frame.Channel, Event: event, Payload: payload}, nil
	default:
		return nil, errMalformedCommand
	}
}
