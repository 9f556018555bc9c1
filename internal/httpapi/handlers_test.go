package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crickdraft/server/internal/scheduler"
	"github.com/crickdraft/server/internal/session"
	"github.com/crickdraft/server/internal/store/memory"
)

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, *session.Event)               {}
func (nopBroadcaster) BroadcastExcept(string, string, *session.Event) {}
func (nopBroadcaster) SendToUser(string, string, *session.Event)      {}

func newTestServer(t *testing.T) (*http.ServeMux, *session.Coordinator) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	coord := session.New(memory.New(clock), scheduler.New(clock), nopBroadcaster{}, clock, session.NewRand(1))

	mux := http.NewServeMux()
	NewHandler(coord).RegisterRoutes(mux)
	return mux, coord
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return rec, envelope
}

func TestCreateRoomEndpoint(t *testing.T) {
	mux, _ := newTestServer(t)

	rec, envelope := doJSON(t, mux, http.MethodPost, "/api/rooms", `{"host_id":"user-1","host_name":"Alice"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, envelope["success"])

	data := envelope["data"].(map[string]any)
	assert.NotEmpty(t, data["room_id"])
	assert.Equal(t, "waiting", data["status"])
}

func TestCreateRoomValidation(t *testing.T) {
	mux, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: "nope"},
		{name: "missing host id", body: `{"host_name":"Alice"}`},
		{name: "name too short", body: `{"host_id":"u1","host_name":"A"}`},
		{name: "name too long", body: `{"host_id":"u1","host_name":"` + strings.Repeat("x", 51) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, envelope := doJSON(t, mux, http.MethodPost, "/api/rooms", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, envelope["success"])
		})
	}
}

func TestGetRoomEndpoint(t *testing.T) {
	mux, coord := newTestServer(t)
	rm, err := coord.CreateRoom(context.Background(), "user-1", "Alice")
	require.NoError(t, err)

	rec, envelope := doJSON(t, mux, http.MethodGet, "/api/rooms/"+rm.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := envelope["data"].(map[string]any)
	assert.Equal(t, rm.ID, data["id"])
	assert.Equal(t, "user-1", data["host_id"])
	users := data["users"].([]any)
	require.Len(t, users, 1)
	user := users[0].(map[string]any)
	assert.Equal(t, "Alice", user["name"])
	assert.Equal(t, true, user["is_host"])
}

func TestGetRoomNotFound(t *testing.T) {
	mux, _ := newTestServer(t)

	rec, envelope := doJSON(t, mux, http.MethodGet, "/api/rooms/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, envelope["success"])
}

func TestStatsEndpoint(t *testing.T) {
	mux, coord := newTestServer(t)
	rm, err := coord.CreateRoom(context.Background(), "user-1", "Alice")
	require.NoError(t, err)

	rec, envelope := doJSON(t, mux, http.MethodGet, "/api/rooms/"+rm.ID+"/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	data := envelope["data"].(map[string]any)
	assert.Equal(t, float64(1), data["total_users"])
	assert.Equal(t, float64(30), data["available_items"])
}

func TestDeleteRoomEndpoint(t *testing.T) {
	mux, coord := newTestServer(t)
	rm, err := coord.CreateRoom(context.Background(), "user-1", "Alice")
	require.NoError(t, err)

	rec, _ := doJSON(t, mux, http.MethodDelete, "/api/rooms/"+rm.ID, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "requester id is mandatory")

	rec, _ = doJSON(t, mux, http.MethodDelete, "/api/rooms/"+rm.ID+"?user_id=somebody-else", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = doJSON(t, mux, http.MethodDelete, "/api/rooms/"+rm.ID+"?user_id=user-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, mux, http.MethodGet, "/api/rooms/"+rm.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListItemsEndpoint(t *testing.T) {
	mux, _ := newTestServer(t)

	rec, envelope := doJSON(t, mux, http.MethodGet, "/api/items", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := envelope["data"].(map[string]any)
	assert.Equal(t, float64(30), data["count"])

	_, envelope = doJSON(t, mux, http.MethodGet, "/api/items?country=pakistan", "")
	data = envelope["data"].(map[string]any)
	assert.Equal(t, float64(3), data["count"])

	_, envelope = doJSON(t, mux, http.MethodGet, "/api/items?role=Bowler&country=India", "")
	data = envelope["data"].(map[string]any)
	assert.Equal(t, float64(4), data["count"])
}
