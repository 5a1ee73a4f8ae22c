package chat

import (
	"encoding/json"
	"fmt"

	"VChat/module/chat/model"
)

// Server→client events. There are no client→server realtime events beyond
// the websocket open/close itself.
const (
	EventOnlineUsers = "getOnlineUsers"
	EventNewMessage  = "newMessage"
)

// Frame is the wire envelope for realtime events.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, fmt.Errorf("unmarshal frame failed: %w", err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("frame has no event")
	}
	return f, nil
}

func buildFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(&Frame{Event: event, Data: data})
}

// BuildOnlineUsers encodes the full online set broadcast.
func BuildOnlineUsers(users []string) ([]byte, error) {
	if users == nil {
		users = []string{}
	}
	return buildFrame(EventOnlineUsers, users)
}

// BuildNewMessage encodes a message push.
func BuildNewMessage(msg *model.Message) ([]byte, error) {
	return buildFrame(EventNewMessage, msg)
}

// DecodeOnlineUsers and DecodeNewMessage are the client-side counterparts.

func DecodeOnlineUsers(f *Frame) ([]string, error) {
	var users []string
	if err := json.Unmarshal(f.Data, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func DecodeNewMessage(f *Frame) (*model.Message, error) {
	msg := &model.Message{}
	if err := json.Unmarshal(f.Data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
