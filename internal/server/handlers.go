// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, uploaded files, the web client and the built-in test page.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomrelay/internal/blob"
	"github.com/Tyrowin/roomrelay/internal/log"
)

// Handlers serves the relay's HTTP endpoints.
type Handlers struct {
	hub       *Hub
	store     blob.Store
	staticDir string
	upgrader  websocket.Upgrader
}

// NewHandlers builds the handlers. staticDir may be empty to disable the web
// client.
func NewHandlers(hub *Hub, store blob.Store, origins *OriginPolicy, staticDir string) *Handlers {
	return &Handlers{
		hub:       hub,
		store:     store,
		staticDir: staticDir,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.CheckOrigin,
		},
	}
}

// WebSocket upgrades the request and registers the connection with the hub,
// which starts the client's read/write pumps.
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn, h.hub, r.RemoteAddr)
	if !h.hub.Register(client) {
		_ = conn.Close()
	}
}

// Health responds with a plain text liveness message.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "roomrelay server is running!")
}

// Upload streams a stored file back to the browser.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	rc, contentType, err := h.store.Open(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidName) {
			http.NotFound(w, r)
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("open upload")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, rc); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("stream upload")
	}
}

// Static serves the web client. Paths that match no file get index.html so
// client side routes work on reload.
func (h *Handlers) Static(w http.ResponseWriter, r *http.Request) {
	if h.staticDir == "" {
		http.NotFound(w, r)
		return
	}

	name := filepath.Join(h.staticDir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		http.ServeFile(w, r, name)
		return
	}

	index := filepath.Join(h.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	http.ServeFile(w, r, index)
}

// TestPage serves a minimal page for trying rooms from a browser.
func (h *Handlers) TestPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("write test page")
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>roomrelay test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 240px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        #roster { color: #555; margin: 10px 0; }
    </style>
</head>
<body>
    <h1>roomrelay test</h1>

    <div>
        <input type="text" id="username" placeholder="Your name">
        <input type="text" id="room" placeholder="Room id">
        <button onclick="createRoom()">Create room</button>
        <button onclick="joinRoom()">Join</button>
    </div>
    <div id="roster">Not in a room</div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
        <input type="file" id="fileInput" onchange="upload()">
    </div>

    <div id="messages"></div>

    <script>
        const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(scheme + location.host + '/ws');
        const pending = {};
        let nextAck = 1;
        let count = 0;

        function addLine(text) {
            const line = document.createElement('div');
            line.textContent = text;
            const messages = document.getElementById('messages');
            messages.appendChild(line);
            messages.scrollTop = messages.scrollHeight;
        }

        function call(event, data, onReply) {
            const frame = { event: event, data: data };
            if (onReply) {
                frame.ack = nextAck++;
                pending[frame.ack] = onReply;
            }
            ws.send(JSON.stringify(frame));
        }

        ws.onmessage = function(e) {
            const frame = JSON.parse(e.data);
            switch (frame.event) {
            case 'ack':
                if (pending[frame.ack]) { pending[frame.ack](frame.data); delete pending[frame.ack]; }
                break;
            case 'userCount':
                count = frame.data;
                break;
            case 'userList':
                document.getElementById('roster').textContent = count + ' online: ' + frame.data.join(', ');
                break;
            case 'chatMessage':
                addLine(frame.data.username + ': ' + frame.data.message);
                break;
            case 'fileMessage':
                addLine(frame.data.username + ' shared ' + frame.data.fileUrl + ' (' + frame.data.mimeType + ')');
                break;
            }
        };
        ws.onclose = function() { addLine('Connection closed'); };

        function createRoom() {
            call('createRoom', null, function(id) { document.getElementById('room').value = id; });
        }

        function joinRoom() {
            call('joinRoom', {
                username: document.getElementById('username').value,
                room: document.getElementById('room').value
            });
        }

        function sendMessage() {
            const input = document.getElementById('messageInput');
            if (input.value) {
                call('chatMessage', input.value);
                input.value = '';
            }
        }

        function upload() {
            const file = document.getElementById('fileInput').files[0];
            if (!file) { return; }
            const reader = new FileReader();
            reader.onload = function() {
                const data = reader.result.split(',')[1];
                call('upload', { name: file.name, data: data }, function(reply) {
                    if (reply.status !== 'ok') { addLine('Upload failed'); }
                });
            };
            reader.readAsDataURL(file);
        }

        document.getElementById('messageInput').addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { sendMessage(); }
        });
    </script>
</body>
</html>`
