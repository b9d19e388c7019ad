package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/scheduler"
)

type roomService interface {
	CreateRoom(ctx context.Context, params application.CreateRoomParams) (application.Room, error)
	UpdateRoom(ctx context.Context, params application.UpdateRoomParams) (application.Room, error)
	DeleteRoom(ctx context.Context, principal application.Principal, name string) error
	GetRoom(ctx context.Context, name string) (application.Room, error)
}

type roomStatusService interface {
	ListRoomStatuses(ctx context.Context) ([]application.RoomWithStatus, error)
	EffectiveStatusNow(ctx context.Context, roomName string) (scheduler.RoomStatus, error)
	CheckAvailability(ctx context.Context, roomName, date, start, end string) (application.Availability, error)
}

// RoomHandler serves the room catalog and availability queries.
type RoomHandler struct {
	service   roomService
	statuses  roomStatusService
	responder responder
	logger    *slog.Logger
}

func NewRoomHandler(service roomService, statuses roomStatusService, logger *slog.Logger) *RoomHandler {
	base := defaultLogger(logger)
	return &RoomHandler{service: service, statuses: statuses, responder: newResponder(base), logger: base}
}

func (h *RoomHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "RoomHandler", operation, attrs...)
}

func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "room", req.Name)
	room, err := h.service.CreateRoom(r.Context(), application.CreateRoomParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "room creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, roomResponse{Room: toRoomDTO(room, scheduler.RoomAvailable)})
}

func (h *RoomHandler) Update(w http.ResponseWriter, r *http.Request) {
	name, ok := pathVar(r, "name")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingPathVariable)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "room", name)
	room, err := h.service.UpdateRoom(r.Context(), application.UpdateRoomParams{
		Principal: principal,
		Name:      name,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "room update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status, err := h.statuses.EffectiveStatusNow(r.Context(), room.Name)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room, status)})
}

func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name, ok := pathVar(r, "name")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingPathVariable)
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	logger := h.log(r.Context(), "Delete", "room", name)
	if err := h.service.DeleteRoom(r.Context(), principal, name); err != nil {
		logger.WarnContext(r.Context(), "room delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "room deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	name, ok := pathVar(r, "name")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingPathVariable)
		return
	}

	room, err := h.service.GetRoom(r.Context(), name)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	status, err := h.statuses.EffectiveStatusNow(r.Context(), name)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, roomResponse{Room: toRoomDTO(room, status)})
}

func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.statuses.ListRoomStatuses(r.Context())
	if err != nil {
		h.log(r.Context(), "List").ErrorContext(r.Context(), "room list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	out := make([]roomDTO, 0, len(rooms))
	for _, entry := range rooms {
		out = append(out, toRoomDTO(entry.Room, entry.Status))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listRoomsResponse{Rooms: out})
}

// Availability answers GET /rooms/{name}/availability?date=&start=&end=.
func (h *RoomHandler) Availability(w http.ResponseWriter, r *http.Request) {
	name, ok := pathVar(r, "name")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingPathVariable)
		return
	}

	q := r.URL.Query()
	availability, err := h.statuses.CheckAvailability(r.Context(), name, q.Get("date"), q.Get("start"), q.Get("end"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		Conflict: availability.Conflict,
		Status:   string(availability.Status),
	})
}

type roomRequest struct {
	Name       string  `json:"name"`
	BaseStatus string  `json:"baseStatus"`
	ImagePath  *string `json:"imagePath"`
}

func (r roomRequest) toInput() application.RoomInput {
	return application.RoomInput{
		Name:       strings.TrimSpace(r.Name),
		BaseStatus: strings.TrimSpace(r.BaseStatus),
		ImagePath:  r.ImagePath,
	}
}

type roomResponse struct {
	Room roomDTO `json:"room"`
}

type listRoomsResponse struct {
	Rooms []roomDTO `json:"rooms"`
}

type availabilityResponse struct {
	Conflict bool   `json:"conflict"`
	Status   string `json:"status"`
}

type roomDTO struct {
	Name       string  `json:"name"`
	BaseStatus string  `json:"baseStatus"`
	Status     string  `json:"status"`
	ImagePath  *string `json:"imagePath,omitempty"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
}

func toRoomDTO(room application.Room, status scheduler.RoomStatus) roomDTO {
	return roomDTO{
		Name:       room.Name,
		BaseStatus: string(room.BaseStatus),
		Status:     string(status),
		ImagePath:  room.ImagePath,
		CreatedAt:  formatTimestamp(room.CreatedAt),
		UpdatedAt:  formatTimestamp(room.UpdatedAt),
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func pathVar(r *http.Request, name string) (string, bool) {
	value := strings.TrimSpace(mux.Vars(r)[name])
	return value, value != ""
}
