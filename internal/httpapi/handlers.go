// Package httpapi is the administrative query surface: room creation and
// inspection plus the item catalog. It is request/response only; live play
// happens over the websocket gateway.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/crickdraft/server/internal/catalog"
	"github.com/crickdraft/server/internal/room"
	"github.com/rs/zerolog/log"
)

// Coordinator is what the HTTP layer needs from the session layer.
type Coordinator interface {
	CreateRoom(ctx context.Context, hostID, hostName string) (*room.Room, error)
	RoomSummary(ctx context.Context, roomID string) (*room.Room, error)
	RoomStats(ctx context.Context, roomID string) (room.Stats, error)
	DeleteRoom(ctx context.Context, roomID, requesterID string) error
}

// Handler serves the admin API.
type Handler struct {
	coord Coordinator
}

// NewHandler creates the admin API handler.
func NewHandler(coord Coordinator) *Handler {
	return &Handler{coord: coord}
}

// RegisterRoutes attaches all admin routes to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/rooms", h.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms/{id}", h.handleGetRoom)
	mux.HandleFunc("GET /api/rooms/{id}/stats", h.handleGetStats)
	mux.HandleFunc("DELETE /api/rooms/{id}", h.handleDeleteRoom)
	mux.HandleFunc("GET /api/items", h.handleListItems)
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	var de *room.Error
	if errors.As(err, &de) {
		msg = de.Message
		switch de.Kind {
		case room.KindValidation:
			status = http.StatusBadRequest
		case room.KindNotFound:
			status = http.StatusNotFound
		case room.KindAuthorization:
			status = http.StatusForbidden
		case room.KindStateConflict:
			status = http.StatusConflict
		}
	}
	writeJSON(w, status, response{Success: false, Message: msg})
}

type createRoomRequest struct {
	HostID   string `json:"host_id"`
	HostName string `json:"host_name"`
}

func (req createRoomRequest) validate() error {
	if req.HostID == "" {
		return &room.Error{Kind: room.KindValidation, Code: "bad_request", Message: "host_id is required"}
	}
	if n := len(strings.TrimSpace(req.HostName)); n < 2 || n > 50 {
		return &room.Error{Kind: room.KindValidation, Code: "bad_request", Message: "host_name must be 2-50 characters"}
	}
	return nil
}

func (h *Handler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &room.Error{Kind: room.KindValidation, Code: "bad_request", Message: "invalid JSON body"})
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, err)
		return
	}
	rm, err := h.coord.CreateRoom(r.Context(), req.HostID, strings.TrimSpace(req.HostName))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, response{
		Success: true,
		Message: "room created",
		Data: map[string]any{
			"room_id":    rm.ID,
			"host_id":    rm.HostID,
			"status":     rm.Status,
			"created_at": rm.CreatedAt,
		},
	})
}

type participantSummary struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	IsHost    bool   `json:"is_host"`
	Connected bool   `json:"connected"`
	PickCount int    `json:"pick_count"`
}

type roomSummary struct {
	ID                 string               `json:"id"`
	HostID             string               `json:"host_id"`
	Status             room.Status          `json:"status"`
	Users              []participantSummary `json:"users"`
	AvailableItemCount int                  `json:"available_item_count"`
	Round              int                  `json:"round"`
	MaxRounds          int                  `json:"max_rounds"`
	CreatedAt          time.Time            `json:"created_at"`
}

func (h *Handler) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := h.coord.RoomSummary(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	users := make([]participantSummary, 0, len(rm.Participants))
	for _, p := range rm.Participants {
		users = append(users, participantSummary{
			UserID:    p.UserID,
			Name:      p.Name,
			IsHost:    p.IsHost,
			Connected: p.Connected,
			PickCount: len(p.Picks),
		})
	}
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data: roomSummary{
			ID:                 rm.ID,
			HostID:             rm.HostID,
			Status:             rm.Status,
			Users:              users,
			AvailableItemCount: len(rm.AvailableItems),
			Round:              rm.Round,
			MaxRounds:          rm.MaxRounds,
			CreatedAt:          rm.CreatedAt,
		},
	})
}

func (h *Handler) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.coord.RoomStats(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Data: stats})
}

func (h *Handler) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	requesterID := r.URL.Query().Get("user_id")
	if requesterID == "" {
		writeError(w, &room.Error{Kind: room.KindValidation, Code: "bad_request", Message: "user_id is required"})
		return
	}
	if err := h.coord.DeleteRoom(r.Context(), r.PathValue("id"), requesterID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Success: true, Message: "room deleted"})
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	items := catalog.Filter(r.URL.Query().Get("role"), r.URL.Query().Get("country"))
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Data: map[string]any{
			"items": items,
			"count": len(items),
		},
	})
}
