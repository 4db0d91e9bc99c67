package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kelsos/genjobs/internal/logger"
	"github.com/kelsos/genjobs/internal/models"
	"github.com/kelsos/genjobs/internal/services"
)

// Service is what the handlers need from the generation service.
type Service interface {
	HandleMessage(ctx context.Context, msg services.Message) (services.Outcome, error)
	QueryStatus(ownerID string) []models.TaskStatusEntry
	Task(id models.TaskID) (models.Task, bool)
}

// MessageRequest is an inbound chat message.
type MessageRequest struct {
	OwnerID     string `json:"owner_id" validate:"required"`
	SessionID   string `json:"session_id"`
	IsGroup     bool   `json:"is_group"`
	Receiver    string `json:"receiver"`
	CallbackURL string `json:"callback_url" validate:"omitempty,url"`
	Content     string `json:"content" validate:"required"`
}

// StatusResponse answers an owner status query.
type StatusResponse struct {
	OwnerID string                   `json:"owner_id"`
	Tasks   []models.TaskStatusEntry `json:"tasks"`
	Text    string                   `json:"text"`
}

type Handler struct {
	service   Service
	validator *validator.Validate
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// PostMessage handles POST /api/messages.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		respondError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = req.OwnerID
	}

	outcome, err := h.service.HandleMessage(r.Context(), services.Message{
		OwnerID: req.OwnerID,
		IsGroup: req.IsGroup,
		Target: models.DeliveryTarget{
			SessionID:   sessionID,
			Receiver:    req.Receiver,
			CallbackURL: req.CallbackURL,
		},
		Content: req.Content,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrSubmission), errors.Is(err, models.ErrDelivery):
			respondError(w, r, http.StatusBadGateway, outcome.Reply)
		default:
			logger.Error("Handling message from %s failed: %v", req.OwnerID, err)
			respondError(w, r, http.StatusInternalServerError, "Failed to handle message")
		}
		return
	}

	if !outcome.Handled {
		respondJSON(w, http.StatusOK, outcome)
		return
	}
	respondJSON(w, http.StatusAccepted, outcome)
}

// OwnerTasks handles GET /api/owners/{ownerID}/tasks.
func (h *Handler) OwnerTasks(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")
	entries := h.service.QueryStatus(ownerID)
	respondJSON(w, http.StatusOK, StatusResponse{
		OwnerID: ownerID,
		Tasks:   entries,
		Text:    services.FormatStatus(entries),
	})
}

// GetTask handles GET /api/tasks/{id}.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := models.TaskID(chi.URLParam(r, "id"))
	task, ok := h.service.Task(id)
	if !ok {
		respondError(w, r, http.StatusNotFound, "Task not found")
		return
	}
	respondJSON(w, http.StatusOK, task)
}
