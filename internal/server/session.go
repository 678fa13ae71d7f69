package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tyrowin/roomrelay/internal/blob"
	"github.com/Tyrowin/roomrelay/internal/log"
	"github.com/Tyrowin/roomrelay/internal/room"
)

// SessionState is where a connection is in its lifecycle.
type SessionState int

const (
	StateConnected SessionState = iota
	StateInRoom
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateInRoom:
		return "in_room"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is the server side state of one connection. The room and
// username are bound once, at join.
type Session struct {
	connID   string
	state    SessionState
	roomID   string
	username string
	logger   zerolog.Logger
}

// NewSession starts a session in the Connected state.
func NewSession(connID, remoteAddr string) *Session {
	return &Session{
		connID: connID,
		state:  StateConnected,
		logger: log.L().With().
			Str(log.FieldConnID, connID).
			Str(log.FieldRemoteAddr, remoteAddr).
			Logger(),
	}
}

func (s *Session) ConnID() string      { return s.connID }
func (s *Session) State() SessionState { return s.state }
func (s *Session) RoomID() string      { return s.roomID }
func (s *Session) Username() string    { return s.username }

func (s *Session) bind(roomID, username string) {
	s.roomID = roomID
	s.username = username
	s.state = StateInRoom
	s.logger = s.logger.With().
		Str(log.FieldRoomID, roomID).
		Str(log.FieldUsername, username).
		Logger()
}

// Dispatcher runs blocking work away from the event loop. The function work
// returns is applied back on the loop.
type Dispatcher interface {
	Go(work func(ctx context.Context) (apply func()))
}

// Controller reacts to the events of every session. All methods must be
// called from the hub's event loop.
type Controller struct {
	members       *room.Manager
	broadcast     *Broadcaster
	transport     Transport
	store         blob.Store
	dispatch      Dispatcher
	uploadTimeout time.Duration
}

// NewController wires a controller. uploadTimeout bounds each blob write.
func NewController(
	members *room.Manager,
	transport Transport,
	store blob.Store,
	dispatch Dispatcher,
	uploadTimeout time.Duration,
) *Controller {
	return &Controller{
		members:       members,
		broadcast:     NewBroadcaster(members.Registry(), transport),
		transport:     transport,
		store:         store,
		dispatch:      dispatch,
		uploadTimeout: uploadTimeout,
	}
}

// Handle routes one inbound frame.
func (c *Controller) Handle(s *Session, f Frame) {
	if s.state == StateDisconnected {
		return
	}

	switch f.Event {
	case EventCreateRoom:
		c.CreateRoom(s, f.Ack)

	case EventJoinRoom:
		var req JoinRequest
		if err := json.Unmarshal(f.Data, &req); err != nil {
			s.logger.Warn().Err(err).Msg("undecodable joinRoom payload")
			return
		}
		c.Join(s, req)

	case EventChatMessage:
		c.Chat(s, chatText(f.Data))

	case EventUpload:
		var req UploadRequest
		if err := json.Unmarshal(f.Data, &req); err != nil {
			s.logger.Warn().Err(err).Msg("undecodable upload payload")
			c.reply(s, f.Ack, UploadReply{Status: StatusError})
			return
		}
		c.Upload(s, f.Ack, req)

	default:
		s.logger.Warn().Str(log.FieldEvent, f.Event).Msg("unknown event")
	}
}

// CreateRoom reserves a new room and replies with its id.
func (c *Controller) CreateRoom(s *Session, ack *int64) {
	id, err := c.members.CreateRoom()
	if err != nil {
		s.logger.Error().Err(err).Msg("create room")
		c.reply(s, ack, nil)
		return
	}
	s.logger.Info().Str(log.FieldRoomID, id).Msg("room created")
	c.reply(s, ack, id)
}

// Join binds the session to a room and pushes the new roster to it.
// Only the first join of a session counts.
func (c *Controller) Join(s *Session, req JoinRequest) {
	if s.state != StateConnected {
		s.logger.Warn().Str("requested_room", req.Room).Msg("already in a room; join ignored")
		return
	}

	s.bind(req.Room, req.Username)
	roster := c.members.Join(req.Room, s.connID, req.Username)
	s.logger.Info().Int("members", roster.Count).Msg("joined room")

	c.broadcast.BroadcastRoster(req.Room)
}

// Chat relays a message to the session's room as is.
func (c *Controller) Chat(s *Session, text string) {
	if s.state != StateInRoom {
		s.logger.Debug().Msg("chat before join dropped")
		return
	}
	c.broadcast.BroadcastChatMessage(s.roomID, s.username, text)
}

// Upload stores the file off the loop, then announces it to the room and
// acknowledges the uploader. Disconnecting does not cancel the write.
func (c *Controller) Upload(s *Session, ack *int64, req UploadRequest) {
	if s.state != StateInRoom {
		s.logger.Warn().Str("file", req.Name).Msg("upload before join rejected")
		c.reply(s, ack, UploadReply{Status: StatusError})
		return
	}

	roomID, username := s.roomID, s.username
	c.dispatch.Go(func(ctx context.Context) func() {
		ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
		defer cancel()

		url, err := c.store.Put(ctx, req.Name, req.Data)
		return func() {
			if err != nil {
				s.logger.Error().Err(err).Str("file", req.Name).Msg("upload failed")
				c.reply(s, ack, UploadReply{Status: StatusError})
				return
			}

			s.logger.Info().Str("file", req.Name).Int("bytes", len(req.Data)).Msg("file uploaded")
			c.broadcast.BroadcastFileMessage(roomID, username, url, blob.MimeTypeFor(req.Name))
			c.reply(s, ack, UploadReply{Status: StatusOK, FileURL: url})
		}
	})
}

// Disconnect ends the session. It leaves the room and, if the room is still
// there, pushes the shrunken roster. Calling it twice is harmless.
func (c *Controller) Disconnect(s *Session) {
	if s.state == StateDisconnected {
		return
	}
	wasInRoom := s.state == StateInRoom
	s.state = StateDisconnected

	if !wasInRoom {
		s.logger.Info().Msg("disconnected")
		return
	}

	roster := c.members.Leave(s.roomID, s.connID)
	s.logger.Info().Int("members", roster.Count).Bool("room_open", roster.Exists).Msg("left room")
	if roster.Exists {
		c.broadcast.BroadcastRoster(s.roomID)
	}
}

// reply answers a request frame. Frames without an ack get no reply.
func (c *Controller) reply(s *Session, ack *int64, data any) {
	if ack == nil {
		return
	}
	frame, err := encodeFrame(EventAck, ack, data)
	if err != nil {
		s.logger.Error().Err(err).Msg("encode ack")
		return
	}
	if !c.transport.Send(s.connID, frame) {
		s.logger.Debug().Int64("ack", *ack).Msg("ack not delivered")
	}
}
