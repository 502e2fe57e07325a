package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/edulive/collab/internal/auth"
	"github.com/edulive/collab/internal/collab"
	"github.com/edulive/collab/internal/room"
)

// CreateRoom opens a new live session on behalf of the authenticated
// caller.
func CreateRoom(e *collab.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := auth.IdentityFrom(r.Context())

		var req struct {
			Name     string            `json:"name"`
			CourseID string            `json:"course_id"`
			Capacity int               `json:"capacity"`
			Kind     room.Kind         `json:"kind"`
			Settings map[string]string `json:"settings"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		if req.Kind == "" {
			req.Kind = room.KindClassroom
		}

		created, err := e.CreateRoom(req.Name, req.CourseID, identity.UserID, req.Capacity, req.Kind, req.Settings)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	}
}

func JoinRoom(e *collab.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["id"]
		identity, _ := auth.IdentityFrom(r.Context())

		err := e.JoinRoom(roomID, identity.UserID, identity.Username, collab.NormalizeRole(identity.Role))
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "joined"})
	}
}

func LeaveRoom(e *collab.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["id"]
		identity, _ := auth.IdentityFrom(r.Context())

		left, err := e.LeaveRoom(roomID, identity.UserID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		status := "left"
		if !left {
			status = "not_a_participant"
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	}
}

func RoomStats(e *collab.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["id"]
		stats, err := e.RoomStats(roomID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// UserRooms lists the rooms the addressed user currently participates in.
func UserRooms(e *collab.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["id"]
		writeJSON(w, http.StatusOK, e.UserRooms(userID))
	}
}

// CreateBreakout spawns a breakout room off the addressed room and moves
// the listed participants into it. Users already gone from the parent
// are skipped, reported in the result rather than failing the call.
func CreateBreakout(e *collab.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := mux.Vars(r)["id"]
		identity, _ := auth.IdentityFrom(r.Context())

		var req struct {
			Name            string   `json:"name"`
			Participants    []string `json:"participants"`
			DurationSeconds int      `json:"duration_seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}
		duration := time.Duration(req.DurationSeconds) * time.Second
		if duration <= 0 {
			duration = defaultBreakoutDuration
		}

		result, err := e.CreateBreakout(roomID, identity.UserID, req.Name, req.Participants, duration)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
	}
}

// RemoveParticipant is a moderator-forced leave.
func RemoveParticipant(e *collab.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		identity, _ := auth.IdentityFrom(r.Context())

		removed, err := e.RemoveParticipant(vars["id"], identity.UserID, vars["uid"])
		if err != nil {
			writeEngineError(w, err)
			return
		}
		status := "removed"
		if !removed {
			status = "not_a_participant"
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
	}
}

// EditMessage rewrites the body of a retained message. Authors may edit
// their own; moderators may edit anyone's.
func EditMessage(e *collab.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		identity, _ := auth.IdentityFrom(r.Context())

		var req struct {
			Body string `json:"body"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if err := e.EditMessage(vars["id"], vars["mid"], identity.UserID, req.Body); err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

const defaultBreakoutDuration = 15 * time.Minute

// writeEngineError translates the engine's error taxonomy to HTTP. A
// room removed by the sweeper reads as a gone session, not a retryable
// fault.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		writeError(w, http.StatusGone, "room no longer available")
	case errors.Is(err, room.ErrRoomFull):
		writeError(w, http.StatusConflict, "room is full")
	case errors.Is(err, room.ErrInvalidCapacity):
		writeError(w, http.StatusBadRequest, "capacity must be positive")
	case errors.Is(err, room.ErrNotAParticipant):
		writeError(w, http.StatusForbidden, "not a participant of this room")
	case errors.Is(err, room.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, "message not found or no longer retained")
	case errors.Is(err, room.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission denied")
	default:
		slog.Error("room operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
