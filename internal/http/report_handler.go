package http

import (
	"context"
	"log/slog"
	"net/http"
	"sort"

	"github.com/example/room-reservations/internal/application"
)

type reportService interface {
	Summary(ctx context.Context, principal application.Principal) (application.Summary, error)
}

// ReportHandler serves the admin dashboard summary.
type ReportHandler struct {
	service   reportService
	responder responder
}

func NewReportHandler(service reportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{service: service, responder: newResponder(logger)}
}

func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())

	summary, err := h.service.Summary(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	byStatus := make(map[string]int, len(summary.ByStatus))
	for status, n := range summary.ByStatus {
		byStatus[string(status)] = n
	}
	rooms := make([]roomCount, 0, len(summary.ReservationsByRoom))
	for name, n := range summary.ReservationsByRoom {
		rooms = append(rooms, roomCount{Room: name, Reservations: n})
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Room < rooms[j].Room })

	h.responder.writeJSON(r.Context(), w, http.StatusOK, summaryResponse{
		Rooms:        summary.Rooms,
		Users:        summary.Users,
		Admins:       summary.Admins,
		Reservations: summary.Reservations,
		ByStatus:     byStatus,
		ByRoom:       rooms,
		GeneratedAt:  formatTimestamp(summary.GeneratedAt),
	})
}

type roomCount struct {
	Room         string `json:"room"`
	Reservations int    `json:"reservations"`
}

type summaryResponse struct {
	Rooms        int            `json:"rooms"`
	Users        int            `json:"users"`
	Admins       int            `json:"admins"`
	Reservations int            `json:"reservations"`
	ByStatus     map[string]int `json:"byStatus"`
	ByRoom       []roomCount    `json:"byRoom"`
	GeneratedAt  string         `json:"generatedAt"`
}
