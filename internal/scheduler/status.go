package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownValue is returned when an enumerated value cannot be parsed.
var ErrUnknownValue = errors.New("scheduler: unknown value")

// ReservationStatus is the canonical lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusPending  ReservationStatus = "pending"
	StatusApproved ReservationStatus = "approved"
	StatusRejected ReservationStatus = "rejected"
)

// NormalizeStatus maps stored status labels onto canonical values.
// "Reserved" is the legacy synonym of approved and an empty label means
// pending. Matching is case-insensitive.
func NormalizeStatus(raw string) (ReservationStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "pending":
		return StatusPending, nil
	case "approved", "reserved":
		return StatusApproved, nil
	case "rejected":
		return StatusRejected, nil
	}
	return "", fmt.Errorf("%w: reservation status %q", ErrUnknownValue, raw)
}

// Role is the access level of a user account.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleUser         Role = "user"
	RoleApprovedUser Role = "approved_user"
)

// ParseRole parses a role case-insensitively.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin":
		return RoleAdmin, nil
	case "user":
		return RoleUser, nil
	case "approved_user":
		return RoleApprovedUser, nil
	}
	return "", fmt.Errorf("%w: role %q", ErrUnknownValue, raw)
}

// BaseStatus is the administrator-set catalog label of a room. It is
// cosmetic; availability is always derived from reservations.
type BaseStatus string

const (
	BaseAvailable BaseStatus = "Available"
	BaseReserved  BaseStatus = "Reserved"
	BasePending   BaseStatus = "Pending"
)

// ParseBaseStatus parses a base status case-insensitively. An empty value
// defaults to Available.
func ParseBaseStatus(raw string) (BaseStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "available":
		return BaseAvailable, nil
	case "reserved":
		return BaseReserved, nil
	case "pending":
		return BasePending, nil
	}
	return "", fmt.Errorf("%w: room status %q", ErrUnknownValue, raw)
}

// RoomStatus is the live status of a room derived from its reservations.
type RoomStatus string

const (
	RoomAvailable RoomStatus = "Available"
	RoomPending   RoomStatus = "Pending"
	RoomOccupied  RoomStatus = "Occupied"
)

// WindowStatus summarizes the reservations overlapping a requested window.
type WindowStatus string

const (
	WindowAvailable WindowStatus = "Available"
	WindowPending   WindowStatus = "Pending"
	WindowApproved  WindowStatus = "Approved"
)
