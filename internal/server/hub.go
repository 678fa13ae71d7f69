// Package server coordinates client registration, room events, and
// connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/Tyrowin/roomrelay/internal/blob"
	"github.com/Tyrowin/roomrelay/internal/config"
	"github.com/Tyrowin/roomrelay/internal/log"
	"github.com/Tyrowin/roomrelay/internal/room"
)

// inboundFrame is a decoded frame waiting for the event loop. The channel
// carrying it is unbuffered so a client's frames always reach the loop
// before its disconnect does.
type inboundFrame struct {
	client *Client
	frame  Frame
}

// Hub owns every connection and all room state. A single goroutine, Run,
// applies registrations, frames, disconnects and upload completions one at
// a time, so room state needs no locks and every membership change is
// broadcast before the next event is looked at.
type Hub struct {
	clients    map[string]*Client
	sessions   map[string]*Session
	members    *room.Manager
	controller *Controller
	wsConfig   config.WebSocketConfig

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame
	calls      chan func()

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a Hub over members, storing uploads in store. The returned
// Hub does nothing until Run is started.
func NewHub(members *room.Manager, store blob.Store, cfg *config.Config) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[string]*Client),
		sessions:   make(map[string]*Session),
		members:    members,
		wsConfig:   cfg.WebSocket,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame),
		calls:      make(chan func()),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	h.controller = NewController(members, h, store, h, cfg.Storage.UploadTimeout)
	return h
}

// Run is the event loop. It returns after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case in := <-h.inbound:
			if session, ok := h.sessions[in.client.id]; ok {
				h.controller.Handle(session, in.frame)
			}

		case fn := <-h.calls:
			fn()
		}
	}
}

// Register hands a new connection to the loop, which starts its pumps.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) handleRegister(client *Client) {
	if client == nil {
		log.L().Warn().Msg("nil client registration skipped")
		return
	}

	h.clients[client.id] = client
	h.sessions[client.id] = NewSession(client.id, client.addr)
	log.L().Info().
		Str(log.FieldConnID, client.id).
		Str(log.FieldRemoteAddr, client.addr).
		Int("clients", len(h.clients)).
		Msg("client connected")

	if client.conn == nil {
		return
	}
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// handleUnregister is the transport's disconnect notification. Duplicate
// notifications find no client and do nothing.
func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients[client.id]; !ok {
		return
	}
	delete(h.clients, client.id)
	client.closeSend()

	if session, ok := h.sessions[client.id]; ok {
		h.controller.Disconnect(session)
		delete(h.sessions, client.id)
	}
	log.L().Info().
		Str(log.FieldConnID, client.id).
		Int("clients", len(h.clients)).
		Msg("client disconnected")
}

// Send queues a frame for one connection. It must run on the loop. A client
// whose buffer is full is cut off; its read pump then reports the
// disconnect.
func (h *Hub) Send(connID string, frame []byte) bool {
	client, ok := h.clients[connID]
	if !ok || client.closed {
		return false
	}

	select {
	case client.send <- frame:
		return true
	default:
		log.L().Warn().Str(log.FieldConnID, connID).Msg("send buffer full; dropping client")
		client.closeSend()
		if client.conn != nil {
			_ = client.conn.Close()
		}
		return false
	}
}

// Go runs work on its own goroutine and applies the result on the loop.
func (h *Hub) Go(work func(ctx context.Context) func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if apply := work(h.ctx); apply != nil {
			h.post(apply)
		}
	}()
}

func (h *Hub) post(fn func()) bool {
	select {
	case h.calls <- fn:
		return true
	case <-h.ctx.Done():
		return false
	}
}

// Inspect runs fn on the loop with the room state and waits for it.
func (h *Hub) Inspect(fn func(members *room.Manager)) bool {
	finished := make(chan struct{})
	if !h.post(func() {
		defer close(finished)
		fn(h.members)
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-h.done:
		return false
	}
}

// ClientCount returns the number of connected clients, or -1 once the hub
// has stopped.
func (h *Hub) ClientCount() int {
	count := -1
	finished := make(chan struct{})
	if !h.post(func() {
		defer close(finished)
		count = len(h.clients)
	}) {
		return -1
	}
	<-finished
	return count
}

// shutdownClients closes every connection and send channel so both pumps
// of each client return.
func (h *Hub) shutdownClients() {
	log.L().Info().Msg("shutting down all client connections")

	for _, client := range h.clients {
		client.closeSend()
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				log.L().Warn().Err(err).Str(log.FieldConnID, client.id).Msg("close client connection")
			}
		}
	}

	log.L().Info().Int("clients", len(h.clients)).Msg("closed client connections")
}

// Shutdown stops the loop and waits for every pump and pending upload to
// finish, or for the timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.L().Info().Msg("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.L().Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		log.L().Warn().Msg("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
