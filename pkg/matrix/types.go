package matrix

import "encoding/json"

// LoginRequest is the body of POST /_matrix/client/v3/login.
type LoginRequest struct {
	Type                     string     `json:"type"`
	Identifier               Identifier `json:"identifier"`
	Password                 string     `json:"password"`
	InitialDeviceDisplayName string     `json:"initial_device_display_name,omitempty"`
}

// Identifier names the account being logged into.
type Identifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// AuthResponse is returned by Login.
type AuthResponse struct {
	UserID      string `json:"user_id"`
	AccessToken string `json:"access_token"`
	DeviceID    string `json:"device_id"`
}

// ServerVersionsResponse is returned by GET /_matrix/client/versions.
type ServerVersionsResponse struct {
	Versions         []string        `json:"versions"`
	UnstableFeatures map[string]bool `json:"unstable_features,omitempty"`
}

// JoinResponse is returned when joining a room.
type JoinResponse struct {
	RoomID string `json:"room_id"`
}

// SendEventResponse is returned when an event is sent.
type SendEventResponse struct {
	EventID string `json:"event_id"`
}

// SyncOptions controls the behavior of the /sync endpoint.
type SyncOptions struct {
	Since   string // next_batch token from previous sync; empty for initial sync
	Timeout int    // long-poll timeout in milliseconds
	Filter  string // filter ID or inline JSON filter
}

// SyncResponse is the subset of the /sync response the bridge uses.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection contains per-room sync data for joined rooms.
type RoomsSection struct {
	Join map[string]JoinedRoom `json:"join,omitempty"`
}

// JoinedRoom contains sync data for a room the user has joined.
type JoinedRoom struct {
	Timeline TimelineSection `json:"timeline"`
}

// TimelineSection contains timeline events from a sync response.
type TimelineSection struct {
	Events  []Event `json:"events"`
	Limited bool    `json:"limited,omitempty"`
}

// Event is a room event as delivered by /sync.
type Event struct {
	Type           string          `json:"type"`
	EventID        string          `json:"event_id"`
	Sender         string          `json:"sender"`
	OriginServerTS int64           `json:"origin_server_ts"`
	Content        json.RawMessage `json:"content"`
}

// Message types and formats.
const (
	EventRoomMessage = "m.room.message"
	MsgTypeText      = "m.text"
	MsgTypeNotice    = "m.notice"
	FormatHTML       = "org.matrix.custom.html"
)

// MessageContent is the content of an m.room.message event.
type MessageContent struct {
	MsgType       string `json:"msgtype"`
	Body          string `json:"body"`
	Format        string `json:"format,omitempty"`
	FormattedBody string `json:"formatted_body,omitempty"`
}

// TextMessage extracts the text content of an m.room.message/m.text event.
func (e Event) TextMessage() (MessageContent, bool) {
	if e.Type != EventRoomMessage {
		return MessageContent{}, false
	}
	var content MessageContent
	if err := json.Unmarshal(e.Content, &content); err != nil {
		return MessageContent{}, false
	}
	if content.MsgType != MsgTypeText {
		return MessageContent{}, false
	}
	return content, true
}

// Message is a text message seen during sync.
type Message struct {
	RoomID  string
	EventID string
	Sender  string
	Body    string
}

// TextMessages flattens the joined-room timelines into text messages,
// in timeline order per room.
func (r *SyncResponse) TextMessages() []Message {
	var messages []Message
	for roomID, room := range r.Rooms.Join {
		for _, event := range room.Timeline.Events {
			content, ok := event.TextMessage()
			if !ok {
				continue
			}
			messages = append(messages, Message{
				RoomID:  roomID,
				EventID: event.EventID,
				Sender:  event.Sender,
				Body:    content.Body,
			})
		}
	}
	return messages
}
