package relay

import (
	"encoding/json"
	"fmt"
)

// EventType tags a relay wire frame.
type EventType string

const (
	EventAuth         EventType = "auth"
	EventJoinChannel  EventType = "join_channel"
	EventLeaveChannel EventType = "leave_channel"
	EventNewMessage   EventType = "new_message"
	EventTyping       EventType = "typing"
)

// Event is the decoded form of one relay frame. Frames are decoded exactly
// once at the transport boundary; nothing downstream handles raw maps.
type Event struct {
	Type        EventType       `json:"type"`
	UserID      string          `json:"userId,omitempty"`
	ChannelID   string          `json:"channelId,omitempty"`
	RecipientID string          `json:"recipientId,omitempty"`
	IsTyping    bool            `json:"isTyping,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"` // persisted Message, passed through opaquely
}

// messageRef is the slice of a new_message payload the router needs for
// fan-out; the rest of the message travels untouched.
type messageRef struct {
	AuthorID string `json:"author_id"`
}

// DecodeEvent parses one wire frame and validates the fields its type
// requires.
func DecodeEvent(raw []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, fmt.Errorf("malformed frame: %w", err)
	}

	switch ev.Type {
	case EventAuth:
		if ev.UserID == "" {
			return Event{}, fmt.Errorf("auth frame missing userId")
		}
	case EventJoinChannel, EventLeaveChannel:
		if ev.ChannelID == "" {
			return Event{}, fmt.Errorf("%s frame missing channelId", ev.Type)
		}
	case EventNewMessage:
		if (ev.ChannelID == "") == (ev.RecipientID == "") {
			return Event{}, fmt.Errorf("new_message frame needs exactly one of channelId or recipientId")
		}
	case EventTyping:
		if ev.ChannelID == "" {
			return Event{}, fmt.Errorf("typing frame missing channelId")
		}
	default:
		return Event{}, fmt.Errorf("unknown event type %q", ev.Type)
	}

	return ev, nil
}

// authorID extracts the author reference from a new_message payload, or ""
// if absent.
func (ev Event) authorID() string {
	if len(ev.Data) == 0 {
		return ""
	}
	var ref messageRef
	if err := json.Unmarshal(ev.Data, &ref); err != nil {
		return ""
	}
	return ref.AuthorID
}

// encode serializes an outbound frame. Outbound new_message and typing
// frames mirror the inbound shape.
func (ev Event) encode() ([]byte, error) {
	return json.Marshal(ev)
}
