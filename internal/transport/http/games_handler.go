package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"pathkey-service/internal/app"
	"pathkey-service/internal/domain"
)

// GamesHandler exposes the host-side game lifecycle over plain HTTP.
type GamesHandler struct {
	service *app.GameService
	logger  *slog.Logger
}

func NewGamesHandler(service *app.GameService, logger *slog.Logger) *GamesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GamesHandler{service: service, logger: logger}
}

type createGameBody struct {
	HostID        string          `json:"hostId"`
	Mode          domain.GameMode `json:"mode"`
	QuestionSetID string          `json:"questionSetId"`
}

type hostBody struct {
	HostID string `json:"hostId"`
}

// Register mounts the game routes on mux.
func (h *GamesHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /games", h.create)
	mux.HandleFunc("POST /games/{id}/start", h.start)
	mux.HandleFunc("POST /games/{id}/cancel", h.cancel)
	mux.HandleFunc("POST /games/{id}/end", h.end)
}

func (h *GamesHandler) create(w http.ResponseWriter, r *http.Request) {
	var body createGameBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.HostID == "" || body.QuestionSetID == "" {
		writeError(w, http.StatusBadRequest, "hostId and questionSetId are required")
		return
	}
	game, err := h.service.CreateGame(r.Context(), app.CreateGameRequest{
		HostID:        body.HostID,
		Mode:          body.Mode,
		QuestionSetID: body.QuestionSetID,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

func (h *GamesHandler) start(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeHost(w, r)
	if !ok {
		return
	}
	if err := h.service.StartGame(r.Context(), r.PathValue("id"), body.HostID); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GamesHandler) cancel(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeHost(w, r)
	if !ok {
		return
	}
	if err := h.service.CancelGame(r.Context(), r.PathValue("id"), body.HostID); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GamesHandler) end(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeHost(w, r)
	if !ok {
		return
	}
	gameID := r.PathValue("id")
	summary, err := h.service.EndGame(r.Context(), gameID, body.HostID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, endedPayload(gameID, summary))
}

func decodeHost(w http.ResponseWriter, r *http.Request) (hostBody, bool) {
	var body hostBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.HostID == "" {
		writeError(w, http.StatusBadRequest, "hostId is required")
		return body, false
	}
	return body, true
}

func (h *GamesHandler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("game request failed", "error", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrQuestionSetNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidGameMode):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrSessionCompleted), errors.Is(err, domain.ErrGameClosed),
		errors.Is(err, domain.ErrAlreadyAnswered):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorPayload{Message: msg})
}
