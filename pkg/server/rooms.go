package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/air-relay/pkg/logging"
	"github.com/air-relay/pkg/room"
)

type roomCreateRequest struct {
	ExpiresInHours int `json:"expires_in_hours"`
}

type roomResponse struct {
	ID        int64   `json:"id"`
	RoomID    string  `json:"room_id"`
	CreatedAt string  `json:"created_at"`
	ExpiresAt *string `json:"expires_at"`
}

func toRoomResponse(r *room.Room) roomResponse {
	resp := roomResponse{
		ID:        r.ID,
		RoomID:    r.RoomID,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
	if r.ExpiresAt != nil {
		expires := r.ExpiresAt.Format(time.RFC3339)
		resp.ExpiresAt = &expires
	}
	return resp
}

func (s *Server) handleRoomCreate(w http.ResponseWriter, r *http.Request) {
	req := roomCreateRequest{}
	if r.Body != nil {
		// An empty or absent body falls back to the configured default TTL
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	ttl := s.cfg.GetRoomDefaultTTL()
	if req.ExpiresInHours > 0 {
		ttl = time.Duration(req.ExpiresInHours) * time.Hour
	}

	created, err := s.rooms.Create(ttl)
	if err != nil {
		logging.Logf("[room] failed to create room: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logging.Logf("[room] created room %s (expires_at=%v)", created.RoomID, created.ExpiresAt)
	s.collector.RecordRoomCreated()
	writeJSON(w, http.StatusOK, toRoomResponse(created))
}

func (s *Server) handleRoomGet(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")

	found, err := s.rooms.Get(roomID)
	if err == room.ErrNotFound {
		writeError(w, http.StatusNotFound, "Room not found")
		return
	}
	if err != nil {
		logging.Logf("[room] failed to get room %s: %v", roomID, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toRoomResponse(found))
}

func (s *Server) handleRoomValidate(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")

	valid, reason := s.rooms.Validate(roomID)
	resp := map[string]interface{}{
		"valid":   valid,
		"room_id": nil,
		"message": reason,
	}
	if valid || reason == "Room expired" {
		resp["room_id"] = roomID
	}
	writeJSON(w, http.StatusOK, resp)
}
