package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/airloom/ventsync/internal/device"
)

// handleListDevices returns all device records.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": s.store.List(),
	})
}

// handleGetDevice returns a single device record by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to load device")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// placementRequest is the body for PUT /devices/{id}/placement. Nil fields
// are left untouched on the record.
type placementRequest struct {
	Alias    *string          `json:"alias"`
	Color    *string          `json:"color"`
	Floor    *string          `json:"floor"`
	Assigned *bool            `json:"assigned"`
	Position *device.Position `json:"position"`
}

// handleSetPlacement applies an arrangement-save update to a record and
// broadcasts the merged record to all live connections, so open viewers
// and the device itself see placement changes immediately.
func (s *Server) handleSetPlacement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req placementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	rec, err := s.store.ApplyPlacement(r.Context(), id, device.PlacementUpdate{
		Alias:    req.Alias,
		Color:    req.Color,
		Floor:    req.Floor,
		Assigned: req.Assigned,
		Position: req.Position,
	})
	if err != nil {
		switch {
		case errors.Is(err, device.ErrNotFound):
			writeNotFound(w, "device not found")
		case errors.Is(err, device.ErrInvalidPlacement):
			writeBadRequest(w, "assigned requires a position")
		default:
			writeInternalError(w, "failed to update placement")
		}
		return
	}

	s.hub.BroadcastRecord(rec)
	writeJSON(w, http.StatusOK, rec)
}
