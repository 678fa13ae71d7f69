package server

import (
	"github.com/Tyrowin/roomrelay/internal/log"
	"github.com/Tyrowin/roomrelay/internal/room"
)

// Transport delivers an encoded frame to one connection. Send reports
// whether the frame was queued; unknown or closed connections return false.
type Transport interface {
	Send(connID string, frame []byte) bool
}

// Broadcaster multicasts events to the current members of a room. It only
// reads the registry.
type Broadcaster struct {
	rooms     *room.Registry
	transport Transport
}

// NewBroadcaster returns a Broadcaster reading membership from rooms.
func NewBroadcaster(rooms *room.Registry, transport Transport) *Broadcaster {
	return &Broadcaster{rooms: rooms, transport: transport}
}

// BroadcastRoster sends userCount then userList to every member. Both are
// taken from the same snapshot. Missing rooms are ignored.
func (b *Broadcaster) BroadcastRoster(roomID string) {
	r, err := b.rooms.Get(roomID)
	if err != nil {
		return
	}
	members := r.ConnectionIDs()
	b.fanout(roomID, members, EventUserCount, r.Len())
	b.fanout(roomID, members, EventUserList, r.Names())
}

// BroadcastChatMessage sends a chat line to every member, sender included.
func (b *Broadcaster) BroadcastChatMessage(roomID, senderName, text string) {
	b.toRoom(roomID, EventChatMessage, ChatMessage{Username: senderName, Message: text})
}

// BroadcastFileMessage announces an uploaded file to every member.
func (b *Broadcaster) BroadcastFileMessage(roomID, senderName, fileURL, mimeType string) {
	b.toRoom(roomID, EventFileMessage, FileMessage{
		Username: senderName,
		FileURL:  fileURL,
		MimeType: mimeType,
	})
}

func (b *Broadcaster) toRoom(roomID, event string, payload any) {
	r, err := b.rooms.Get(roomID)
	if err != nil {
		log.L().Debug().Str(log.FieldRoomID, roomID).Str(log.FieldEvent, event).Msg("room gone; broadcast skipped")
		return
	}
	b.fanout(roomID, r.ConnectionIDs(), event, payload)
}

func (b *Broadcaster) fanout(roomID string, members []string, event string, payload any) {
	frame, err := encodeFrame(event, nil, payload)
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldRoomID, roomID).Str(log.FieldEvent, event).Msg("encode broadcast")
		return
	}

	delivered := 0
	for _, connID := range members {
		if b.transport.Send(connID, frame) {
			delivered++
		}
	}

	log.L().Debug().
		Str(log.FieldRoomID, roomID).
		Str(log.FieldEvent, event).
		Int("members", len(members)).
		Int("delivered", delivered).
		Msg("broadcast")
}
