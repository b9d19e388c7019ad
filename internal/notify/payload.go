package notify

import (
	"time"

	"github.com/example/room-reservations/internal/application"
)

// Payload is the JSON form of an event shared by the webhook sink and the
// event stream. Credentials never leave the process.
type Payload struct {
	Kind        string             `json:"kind"`
	At          time.Time          `json:"at"`
	Actor       string             `json:"actor,omitempty"`
	User        PayloadUser        `json:"user"`
	Reservation PayloadReservation `json:"reservation"`
}

// PayloadUser identifies the reservation owner.
type PayloadUser struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// PayloadReservation is the wire form of a reservation.
type PayloadReservation struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	RoomName string `json:"roomName"`
	Date     string `json:"date"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Status   string `json:"status"`
}

// NewPayload converts an event.
func NewPayload(event application.Event) Payload {
	r := event.Reservation
	return Payload{
		Kind:  string(event.Kind),
		At:    event.At.UTC(),
		Actor: event.Actor.Username,
		User: PayloadUser{
			Username: event.User.Username,
			Email:    event.User.Email,
		},
		Reservation: PayloadReservation{
			ID:       r.ID,
			Username: r.Username,
			RoomName: r.RoomName,
			Date:     r.Window.Date.String(),
			Start:    r.Window.Start.String(),
			End:      r.Window.End.String(),
			Status:   string(r.Status),
		},
	}
}
