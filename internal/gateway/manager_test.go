package gateway

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crickdraft/server/internal/session"
)

func newBoundConn(cm *ConnectionManager, roomID, userID string) *Connection {
	conn := &Connection{
		ID:          userID + "-conn",
		Send:        make(chan []byte, 16),
		manager:     cm,
		ConnectedAt: time.Now(),
	}
	cm.bind(conn, roomID, userID)
	return conn
}

func received(t *testing.T, conn *Connection) []*session.Event {
	t.Helper()
	var out []*session.Event
	for {
		select {
		case data := <-conn.Send:
			var ev session.Event
			require.NoError(t, json.Unmarshal(data, &ev))
			out = append(out, &ev)
		default:
			return out
		}
	}
}

func testEvent(t *testing.T, roomID string) *session.Event {
	t.Helper()
	ev, err := session.NewEvent(roomID, session.EventRoomUpdated, time.Now(), map[string]string{"k": "v"})
	require.NoError(t, err)
	return ev
}

func TestDeliverBroadcast(t *testing.T) {
	cm := NewConnectionManager(DefaultConfig())
	a := newBoundConn(cm, "room-1", "user-a")
	b := newBoundConn(cm, "room-1", "user-b")
	other := newBoundConn(cm, "room-2", "user-c")

	cm.deliver(broadcastMessage{roomID: "room-1", event: testEvent(t, "room-1")})

	assert.Len(t, received(t, a), 1)
	assert.Len(t, received(t, b), 1)
	assert.Empty(t, received(t, other), "rooms are isolated")
}

func TestDeliverToSingleUser(t *testing.T) {
	cm := NewConnectionManager(DefaultConfig())
	a := newBoundConn(cm, "room-1", "user-a")
	b := newBoundConn(cm, "room-1", "user-b")

	cm.deliver(broadcastMessage{roomID: "room-1", userID: "user-b", event: testEvent(t, "room-1")})

	assert.Empty(t, received(t, a))
	assert.Len(t, received(t, b), 1)
}

func TestDeliverExcept(t *testing.T) {
	cm := NewConnectionManager(DefaultConfig())
	a := newBoundConn(cm, "room-1", "user-a")
	b := newBoundConn(cm, "room-1", "user-b")

	cm.deliver(broadcastMessage{roomID: "room-1", exceptUserID: "user-a", event: testEvent(t, "room-1")})

	assert.Empty(t, received(t, a))
	assert.Len(t, received(t, b), 1)
}

func TestBindReplacesEarlierRoom(t *testing.T) {
	cm := NewConnectionManager(DefaultConfig())
	conn := newBoundConn(cm, "room-1", "user-a")

	cm.bind(conn, "room-2", "user-a")

	cm.deliver(broadcastMessage{roomID: "room-1", event: testEvent(t, "room-1")})
	assert.Empty(t, received(t, conn))

	cm.deliver(broadcastMessage{roomID: "room-2", event: testEvent(t, "room-2")})
	assert.Len(t, received(t, conn), 1)
}

func TestUnbindAndStats(t *testing.T) {
	cm := NewConnectionManager(DefaultConfig())
	a := newBoundConn(cm, "room-1", "user-a")
	newBoundConn(cm, "room-1", "user-b")
	newBoundConn(cm, "room-2", "user-c")

	conns, rooms := cm.Stats()
	assert.Equal(t, 3, conns)
	assert.Equal(t, 2, rooms)

	cm.unbind(a)
	conns, rooms = cm.Stats()
	assert.Equal(t, 2, conns)
	assert.Equal(t, 2, rooms)
}

func TestDropIsIdempotent(t *testing.T) {
	cm := NewConnectionManager(DefaultConfig())
	conn := newBoundConn(cm, "room-1", "user-a")

	cm.drop(conn)
	cm.drop(conn)

	conns, rooms := cm.Stats()
	assert.Equal(t, 0, conns)
	assert.Equal(t, 0, rooms)
}

func TestCommandDecoding(t *testing.T) {
	var cmd Command
	require.NoError(t, json.Unmarshal([]byte(`{"type":"select-item","room_id":"r1","user_id":"u1","item_id":7}`), &cmd))
	assert.Equal(t, CommandPick, cmd.Type)
	assert.Equal(t, "r1", cmd.RoomID)
	assert.Equal(t, 7, cmd.ItemID)
}
