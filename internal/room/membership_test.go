package room

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func TestManager_CreateRoomUsesRandomIDs(t *testing.T) {
	m := NewManager(NewRegistry())

	a, err := m.CreateRoom()
	require.NoError(t, err)
	b, err := m.CreateRoom()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	_, err = uuid.Parse(a)
	require.NoError(t, err)

	// created rooms are registered but empty
	roster, err := m.Roster(a)
	require.NoError(t, err)
	assert.True(t, roster.Exists)
	assert.Zero(t, roster.Count)
}

func TestManager_CreateRoomCollision(t *testing.T) {
	m := NewManager(NewRegistry(), WithIDGenerator(func() string { return "same" }))

	_, err := m.CreateRoom()
	require.NoError(t, err)
	_, err = m.CreateRoom()

	require.ErrorIs(t, err, ErrDuplicateRoom)
}

func TestManager_JoinCreatesUnknownRoom(t *testing.T) {
	m := NewManager(NewRegistry())

	roster := m.Join("lobby", "c1", "alice")

	assert.Equal(t, Roster{RoomID: "lobby", Names: []string{"alice"}, Count: 1, Exists: true}, roster)

	roster = m.Join("lobby", "c2", "bob")
	assert.Equal(t, []string{"alice", "bob"}, roster.Names)
	assert.Equal(t, 2, roster.Count)
}

func TestManager_JoinAllowsDuplicateNames(t *testing.T) {
	m := NewManager(NewRegistry())

	m.Join("r1", "c1", "sam")
	roster := m.Join("r1", "c2", "sam")

	assert.Equal(t, []string{"sam", "sam"}, roster.Names)
}

func TestManager_LeaveIgnoresUnknown(t *testing.T) {
	m := NewManager(NewRegistry())
	m.Join("r1", "c1", "alice")

	missingRoom := m.Leave("ghost", "c1")
	assert.False(t, missingRoom.Exists)

	stranger := m.Leave("r1", "c9")
	assert.True(t, stranger.Exists)
	assert.Equal(t, 1, stranger.Count)
}

func TestManager_LastLeaveDeletesRoom(t *testing.T) {
	reg := NewRegistry()
	m := NewManager(reg)
	m.Join("r1", "c1", "alice")
	m.Join("r1", "c2", "bob")

	roster := m.Leave("r1", "c1")
	assert.Equal(t, []string{"bob"}, roster.Names)
	assert.True(t, roster.Exists)

	roster = m.Leave("r1", "c2")
	assert.False(t, roster.Exists)
	assert.Zero(t, roster.Count)
	_, err := reg.Get("r1")
	require.ErrorIs(t, err, ErrRoomNotFound)

	// rejoining starts from a fresh room
	roster = m.Join("r1", "c3", "carol")
	assert.Equal(t, []string{"carol"}, roster.Names)
}

func TestManager_CreatedRoomIsJoinable(t *testing.T) {
	m := NewManager(NewRegistry(), WithIDGenerator(sequentialIDs("r")))

	id, err := m.CreateRoom()
	require.NoError(t, err)
	assert.Equal(t, "r1", id)

	roster := m.Join(id, "c1", "alice")
	assert.Equal(t, 1, roster.Count)
	assert.Equal(t, 1, m.Registry().Len())
}

func TestManager_CountMatchesMembers(t *testing.T) {
	reg := NewRegistry()
	m := NewManager(reg)
	rng := rand.New(rand.NewSource(42))
	joined := map[string]bool{}

	for i := 0; i < 500; i++ {
		connID := fmt.Sprintf("c%d", rng.Intn(12))
		var roster Roster
		if joined[connID] {
			roster = m.Leave("r1", connID)
			delete(joined, connID)
		} else {
			roster = m.Join("r1", connID, "user-"+connID)
			joined[connID] = true
		}

		require.Equal(t, len(joined), roster.Count, "step %d", i)
		require.Len(t, roster.Names, roster.Count)
		if len(joined) == 0 {
			require.Zero(t, reg.Len(), "step %d", i)
		}
	}
}
