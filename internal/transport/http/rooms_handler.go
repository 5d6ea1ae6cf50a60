package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"territory-quiz-service/internal/app"
	"territory-quiz-service/internal/domain"
)

// RoomHandler exposes the room lifecycle and the syllabus generation proxy
// over plain JSON endpoints. Caller identity arrives from an upstream auth
// proxy; the syllabus endpoint additionally requires its bearer header.
type RoomHandler struct {
	service *app.Service
}

func NewRoomHandler(service *app.Service) *RoomHandler {
	return &RoomHandler{service: service}
}

func (h *RoomHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /rooms", h.handleCreate)
	mux.HandleFunc("POST /rooms/join", h.handleJoin)
	mux.HandleFunc("POST /rooms/syllabus", h.handleSyllabus)
	mux.HandleFunc("GET /rooms/{id}", h.handleSnapshot)
	mux.HandleFunc("GET /rooms/{id}/leaderboard", h.handleLeaderboard)
}

type createRoomRequest struct {
	Name        string `json:"name"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type joinRoomRequest struct {
	Code        string `json:"code"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type syllabusRequest struct {
	Content string `json:"content"`
	RoomID  string `json:"roomId"`
	UserID  string `json:"userId"`
}

type syllabusResponse struct {
	Success  bool `json:"success"`
	Chapters int  `json:"chapters"`
}

func (h *RoomHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	room, err := h.service.CreateRoom(r.Context(), req.Name, req.UserID, req.DisplayName)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

func (h *RoomHandler) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	room, err := h.service.JoinRoom(r.Context(), req.Code, req.UserID, req.DisplayName)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func (h *RoomHandler) handleSyllabus(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	var req syllabusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Content == "" || req.RoomID == "" {
		writeError(w, http.StatusBadRequest, "Missing content or roomId")
		return
	}
	syllabus, err := h.service.GenerateSyllabus(r.Context(), req.RoomID, req.UserID, req.Content)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, syllabusResponse{Success: true, Chapters: len(syllabus.Chapters)})
}

func (h *RoomHandler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *RoomHandler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.Leaderboard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses:
// validation -> 400, unknown entities -> 404, non-members -> 403, the
// one-time syllabus attachment -> 409, upstream generator failures -> their
// dedicated statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingInput), errors.Is(err, domain.ErrInvalidQuizResult):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrChapterNotFound), errors.Is(err, domain.ErrSyllabusMissing):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrMemberNotFound):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrSyllabusAlreadySet):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again in a moment.")
	case errors.Is(err, domain.ErrQuotaExhausted):
		writeError(w, http.StatusPaymentRequired, "AI credits exhausted. Please add credits.")
	case errors.Is(err, domain.ErrGeneratorFailed), errors.Is(err, domain.ErrInvalidSyllabus):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Printf("room handler error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
