/*
Package chat routes room events for the relay.

The Router turns inbound events into directives (a target set plus a payload)
without doing any I/O. The Manager and Client carry those directives over
WebSocket connections.

This file defines the wire envelope and the payload shapes.
*/
package chat

import (
	"encoding/json"
	"strconv"
	"time"

	"chatrelay/internal/app/user"
)

// MessageType names an event on the wire.
type MessageType string

// Inbound event types.
const (
	TypeJoin          MessageType = "join"
	TypeClientMessage MessageType = "clientMessage"
	TypeLocationData  MessageType = "locationData"
)

// Outbound event types.
const (
	TypeServerMessage   MessageType = "serverMessage"
	TypeLocationMessage MessageType = "locationMessage"
	TypeRoomData        MessageType = "roomData"
	TypeAck             MessageType = "ack"
	TypeError           MessageType = "error"
)

// SystemUsername authors welcome, join, and leave notices.
const SystemUsername = "Admin"

// Envelope is one WebSocket text frame in either direction.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// TempID correlates an inbound event with its acknowledgement. Events without
	// one are never acknowledged.
	TempID string `json:"tempId,omitempty"`
}

// JoinPayload is the payload of a join event.
type JoinPayload struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// Coordinates is the payload of a locationData event. Nil fields are missing.
type Coordinates struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// Message is a text line from a user or from the system.
type Message struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// LocationMessage is a shared position rendered as a map link.
type LocationMessage struct {
	Username  string `json:"username"`
	MapURL    string `json:"mapUrl"`
	CreatedAt int64  `json:"createdAt"`
}

// RoomData is a roster snapshot.
type RoomData struct {
	Room  string      `json:"room"`
	Users []user.User `json:"users"`
}

// AckPayload answers an inbound event that carried a tempId. The tempId itself
// travels on the envelope.
type AckPayload struct {
	Code   int    `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
	Status string `json:"status,omitempty"`
}

// ErrorPayload reports a frame that could not be processed at all.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewMessage stamps text from username with createdAt in Unix milliseconds.
func NewMessage(username, text string, createdAt time.Time) Message {
	return Message{Username: username, Text: text, CreatedAt: createdAt.UnixMilli()}
}

// NewLocationMessage stamps a map link from username.
func NewLocationMessage(username, mapURL string, createdAt time.Time) LocationMessage {
	return LocationMessage{Username: username, MapURL: mapURL, CreatedAt: createdAt.UnixMilli()}
}

// BuildMapURL formats "{base}?q={lat},{lon}" using the shortest exact decimal form
// of each coordinate.
func BuildMapURL(base string, latitude, longitude float64) string {
	return base + "?q=" +
		strconv.FormatFloat(latitude, 'f', -1, 64) + "," +
		strconv.FormatFloat(longitude, 'f', -1, 64)
}

// encodeFrame marshals an outbound envelope.
func encodeFrame(t MessageType, payload any, tempID string) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: t, Payload: raw, TempID: tempID})
}
