package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomrelay/internal/blob"
	"github.com/Tyrowin/roomrelay/internal/room"
)

// fakeTransport records every frame per connection. Sends to connections
// that are not open fail.
type fakeTransport struct {
	open   map[string]bool
	frames map[string][]Frame
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		open:   make(map[string]bool),
		frames: make(map[string][]Frame),
	}
}

func (f *fakeTransport) Send(connID string, frame []byte) bool {
	if !f.open[connID] {
		return false
	}
	var decoded Frame
	if err := json.Unmarshal(frame, &decoded); err != nil {
		panic(err)
	}
	f.frames[connID] = append(f.frames[connID], decoded)
	return true
}

// take returns and clears what connID received.
func (f *fakeTransport) take(connID string) []Frame {
	got := f.frames[connID]
	delete(f.frames, connID)
	return got
}

func (f *fakeTransport) total() int {
	n := 0
	for _, frames := range f.frames {
		n += len(frames)
	}
	return n
}

func events(frames []Frame) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, f.Event)
	}
	return out
}

func decodeData[T any](t *testing.T, f Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v), "event %s data %s", f.Event, f.Data)
	return v
}

// requireRoster checks a userCount/userList pair.
func requireRoster(t *testing.T, frames []Frame, count int, names ...string) {
	t.Helper()
	require.Equal(t, []string{EventUserCount, EventUserList}, events(frames))
	require.Equal(t, count, decodeData[int](t, frames[0]))
	require.Equal(t, names, decodeData[[]string](t, frames[1]))
}

// fakeStore keeps blobs in memory. A non-nil err makes every Put fail.
type fakeStore struct {
	files map[string][]byte
	err   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string][]byte)}
}

func (s *fakeStore) Put(_ context.Context, name string, data []byte) (string, error) {
	if s.err != nil {
		return "", fmt.Errorf("%w: %w", blob.ErrStorage, s.err)
	}
	clean, err := blob.CleanName(name)
	if err != nil {
		return "", err
	}
	s.files[clean] = data
	return blob.URLPrefix + clean, nil
}

func (s *fakeStore) Open(_ context.Context, name string) (io.ReadCloser, string, error) {
	data, ok := s.files[name]
	if !ok {
		return nil, "", blob.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), blob.MimeTypeFor(name), nil
}

// queueDispatcher holds upload work until flush, so tests decide when the
// blob write completes.
type queueDispatcher struct {
	pending []func(ctx context.Context) func()
}

func (d *queueDispatcher) Go(work func(ctx context.Context) func()) {
	d.pending = append(d.pending, work)
}

func (d *queueDispatcher) flush() {
	pending := d.pending
	d.pending = nil
	for _, work := range pending {
		if apply := work(context.Background()); apply != nil {
			apply()
		}
	}
}

// sequentialIDs yields r1, r2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "r" + strconv.Itoa(n)
	}
}

type harness struct {
	members   *room.Manager
	transport *fakeTransport
	store     *fakeStore
	dispatch  *queueDispatcher
	ctrl      *Controller
}

func newHarness() *harness {
	h := &harness{
		members:   room.NewManager(room.NewRegistry(), room.WithIDGenerator(sequentialIDs())),
		transport: newFakeTransport(),
		store:     newFakeStore(),
		dispatch:  &queueDispatcher{},
	}
	h.ctrl = NewController(h.members, h.transport, h.store, h.dispatch, time.Second)
	return h
}

func (h *harness) connect(connID string) *Session {
	h.transport.open[connID] = true
	return NewSession(connID, "127.0.0.1:0")
}

// disconnect closes the transport side first, as the hub does.
func (h *harness) disconnect(s *Session) {
	delete(h.transport.open, s.ConnID())
	h.ctrl.Disconnect(s)
}

func makeFrame(t *testing.T, event string, ack *int64, data any) Frame {
	t.Helper()
	f := Frame{Event: event, Ack: ack}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		f.Data = raw
	}
	return f
}

func ackID(n int64) *int64 {
	return &n
}
