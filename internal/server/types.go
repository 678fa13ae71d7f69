// Package server defines the websocket frame format and the payloads carried
// by each event.
package server

import (
	"encoding/json"
	"strings"
)

// Event names on the wire.
const (
	EventCreateRoom  = "createRoom"
	EventJoinRoom    = "joinRoom"
	EventChatMessage = "chatMessage"
	EventUpload      = "upload"
	EventFileMessage = "fileMessage"
	EventUserCount   = "userCount"
	EventUserList    = "userList"
	EventAck         = "ack"
)

// Upload reply statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Frame is one websocket text message. A frame carrying Ack expects exactly
// one reply frame with Event "ack" and the same Ack value.
type Frame struct {
	Event string          `json:"event"`
	Ack   *int64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRequest is the joinRoom payload.
type JoinRequest struct {
	Username string `json:"username"`
	Room     string `json:"room"`
}

// UploadRequest is the upload payload. Data travels base64 encoded.
type UploadRequest struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// UploadReply acknowledges an upload.
type UploadReply struct {
	Status  string `json:"status"`
	FileURL string `json:"fileUrl,omitempty"`
}

// ChatMessage is broadcast for every chat line.
type ChatMessage struct {
	Username string `json:"username"`
	Message  string `json:"message"`
}

// FileMessage is broadcast after a successful upload.
type FileMessage struct {
	Username string `json:"username"`
	FileURL  string `json:"fileUrl"`
	MimeType string `json:"mimeType"`
}

// encodeFrame marshals an outgoing frame.
func encodeFrame(event string, ack *int64, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Ack: ack, Data: raw})
}

// chatText returns the chat payload as text. Strings are unquoted, anything
// else is passed on as its raw JSON.
func chatText(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		return text
	}
	return string(data)
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
