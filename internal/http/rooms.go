package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"interview-transcript-service/internal/models"
	"interview-transcript-service/internal/service/room"
	"interview-transcript-service/internal/service/source/push"
	"interview-transcript-service/internal/service/viewmodel"
)

const maxEventBytes = 1 << 20

type roomHandlers struct {
	rooms *room.Manager
}

type openRequest struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

type transcriptResponse struct {
	RoomID          string                 `json:"roomId"`
	ConnectionState models.ConnectionState `json:"connectionState"`
	viewmodel.View
}

type connectionRequest struct {
	State models.ConnectionState `json:"state"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps room errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrRoomExists):
		return http.StatusConflict
	case errors.Is(err, room.ErrRoomClosed), errors.Is(err, push.ErrClosed):
		return http.StatusGone
	default:
		return http.StatusInternalServerError
	}
}

func roomInfo(r *room.Room) room.Info {
	return room.Info{
		ID:              r.ID(),
		Source:          r.Kind(),
		ConnectionState: r.ConnectionState(),
		OpenedAt:        r.OpenedAt(),
	}
}

func (h *roomHandlers) open(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxEventBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	rm, err := h.rooms.Open(req.ID, req.Source)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusCreated, roomInfo(rm))
}

func (h *roomHandlers) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.rooms.List())
}

func (h *roomHandlers) close(w http.ResponseWriter, r *http.Request) {
	if err := h.rooms.Close(chi.URLParam(r, "roomID")); err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		log.Warn().Err(err).Msg("Room closed with error")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *roomHandlers) transcript(w http.ResponseWriter, r *http.Request) {
	rm, err := h.rooms.Get(chi.URLParam(r, "roomID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	view, err := rm.Render()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, transcriptResponse{
		RoomID:          rm.ID(),
		ConnectionState: rm.ConnectionState(),
		View:            view,
	})
}

// pushSource resolves a room whose source accepts pushed events.
func (h *roomHandlers) pushSource(w http.ResponseWriter, r *http.Request) (*push.Source, bool) {
	rm, err := h.rooms.Get(chi.URLParam(r, "roomID"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return nil, false
	}
	src, ok := rm.Source().(*push.Source)
	if !ok {
		writeError(w, http.StatusConflict, errors.New("room source does not accept pushed events"))
		return nil, false
	}
	return src, true
}

func (h *roomHandlers) pushEvent(w http.ResponseWriter, r *http.Request) {
	src, ok := h.pushSource(w, r)
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := src.Emit(body); err != nil {
		if errors.Is(err, push.ErrClosed) {
			writeError(w, http.StatusGone, err)
			return
		}
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *roomHandlers) pushConnection(w http.ResponseWriter, r *http.Request) {
	src, ok := h.pushSource(w, r)
	if !ok {
		return
	}
	var req connectionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEventBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	switch req.State {
	case models.ConnectionConnecting, models.ConnectionConnected,
		models.ConnectionReconnecting, models.ConnectionDisconnected:
	default:
		writeError(w, http.StatusBadRequest, errors.New("unknown connection state"))
		return
	}
	if err := src.SetConnectionState(req.State); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
