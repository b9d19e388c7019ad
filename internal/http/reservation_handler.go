package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/room-reservations/internal/application"
)

type reservationService interface {
	Submit(ctx context.Context, params application.SubmitReservationParams) (application.SubmitResult, error)
	Approve(ctx context.Context, params application.ApproveReservationParams) (application.Reservation, error)
	Reject(ctx context.Context, principal application.Principal, key application.ReservationKey) (application.Reservation, error)
	Cancel(ctx context.Context, principal application.Principal, key application.ReservationKey) error
	GetReservation(ctx context.Context, principal application.Principal, id string) (application.Reservation, error)
	ListMyReservations(ctx context.Context, username string) ([]application.Reservation, error)
	ListPendingReservations(ctx context.Context, principal application.Principal) ([]application.Reservation, error)
	ListAllReservations(ctx context.Context, principal application.Principal) ([]application.Reservation, error)
	ListRoomReservations(ctx context.Context, roomName string) ([]application.Reservation, error)
}

// ReservationHandler serves the reservation lifecycle endpoints.
type ReservationHandler struct {
	service   reservationService
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(service reservationService, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

func (h *ReservationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Submit", "room", req.RoomName)
	result, err := h.service.Submit(r.Context(), application.SubmitReservationParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "reservation submit failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation submitted",
		"reservation_id", result.Reservation.ID,
		"conflict_warning", result.ConflictWarning,
	)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, submitResponse{
		Reservation:     toReservationDTO(result.Reservation),
		ConflictWarning: result.ConflictWarning,
	})
}

func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	reservation, ok := h.resolve(w, r)
	if !ok {
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(reservation)})
}

func (h *ReservationHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	reservation, ok := h.resolve(w, r)
	if !ok {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	logger := h.log(r.Context(), "Approve", "reservation_id", reservation.ID, "override", req.Override)
	approved, err := h.service.Approve(r.Context(), application.ApproveReservationParams{
		Principal: principal,
		Key:       reservation.Key(),
		Override:  req.Override,
	})
	if err != nil {
		logger.WarnContext(r.Context(), "reservation approve failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation approved")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(approved)})
}

func (h *ReservationHandler) Reject(w http.ResponseWriter, r *http.Request) {
	reservation, ok := h.resolve(w, r)
	if !ok {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	logger := h.log(r.Context(), "Reject", "reservation_id", reservation.ID)
	rejected, err := h.service.Reject(r.Context(), principal, reservation.Key())
	if err != nil {
		logger.WarnContext(r.Context(), "reservation reject failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation rejected")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(rejected)})
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	reservation, ok := h.resolve(w, r)
	if !ok {
		return
	}
	principal, _ := PrincipalFromContext(r.Context())

	logger := h.log(r.Context(), "Cancel", "reservation_id", reservation.ID)
	if err := h.service.Cancel(r.Context(), principal, reservation.Key()); err != nil {
		logger.WarnContext(r.Context(), "reservation cancel failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation cancelled")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ReservationHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	reservations, err := h.service.ListAllReservations(r.Context(), principal)
	h.writeList(w, r, reservations, err)
}

func (h *ReservationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	reservations, err := h.service.ListMyReservations(r.Context(), principal.Username)
	h.writeList(w, r, reservations, err)
}

func (h *ReservationHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	reservations, err := h.service.ListPendingReservations(r.Context(), principal)
	h.writeList(w, r, reservations, err)
}

// ListForRoom answers GET /rooms/{name}/reservations.
func (h *ReservationHandler) ListForRoom(w http.ResponseWriter, r *http.Request) {
	name, ok := pathVar(r, "name")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingPathVariable)
		return
	}
	reservations, err := h.service.ListRoomReservations(r.Context(), name)
	h.writeList(w, r, reservations, err)
}

func (h *ReservationHandler) writeList(w http.ResponseWriter, r *http.Request, reservations []application.Reservation, err error) {
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	out := make([]reservationDTO, 0, len(reservations))
	for _, reservation := range reservations {
		out = append(out, toReservationDTO(reservation))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{Reservations: out})
}

// resolve loads the reservation named by the {id} path variable, enforcing
// owner-or-admin visibility.
func (h *ReservationHandler) resolve(w http.ResponseWriter, r *http.Request) (application.Reservation, bool) {
	id, ok := pathVar(r, "id")
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errMissingPathVariable)
		return application.Reservation{}, false
	}
	principal, _ := PrincipalFromContext(r.Context())

	reservation, err := h.service.GetReservation(r.Context(), principal, id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return application.Reservation{}, false
	}
	return reservation, true
}

type reservationRequest struct {
	Username  string `json:"username"`
	RoomName  string `json:"roomName"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

func (r reservationRequest) toInput() application.ReservationInput {
	return application.ReservationInput{
		Username: strings.TrimSpace(r.Username),
		RoomName: strings.TrimSpace(r.RoomName),
		Date:     strings.TrimSpace(r.Date),
		Start:    strings.TrimSpace(r.StartTime),
		End:      strings.TrimSpace(r.EndTime),
	}
}

type approveRequest struct {
	Override bool `json:"override"`
}

type submitResponse struct {
	Reservation     reservationDTO `json:"reservation"`
	ConflictWarning bool           `json:"conflictWarning"`
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type listReservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
}

type reservationDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	RoomName  string `json:"roomName"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func toReservationDTO(r application.Reservation) reservationDTO {
	return reservationDTO{
		ID:        r.ID,
		Username:  r.Username,
		RoomName:  r.RoomName,
		Date:      r.Window.Date.String(),
		StartTime: r.Window.Start.String(),
		EndTime:   r.Window.End.String(),
		Status:    string(r.Status),
		CreatedAt: formatTimestamp(r.CreatedAt),
		UpdatedAt: formatTimestamp(r.UpdatedAt),
	}
}
