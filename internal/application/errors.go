package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/room-reservations/internal/persistence"
)

var (
	// ErrNotFound is returned when the referenced room, user, or reservation does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrPermissionDenied is returned when the caller's role does not allow the operation.
	ErrPermissionDenied = errors.New("application: permission denied")
	// ErrIllegalTransition is returned when a lifecycle event is not allowed from the current status.
	ErrIllegalTransition = errors.New("application: illegal transition")
	// ErrConflict is returned when approving would overlap an approved reservation.
	ErrConflict = errors.New("application: conflicts with an approved reservation")
	// ErrLastAdmin is returned when an operation would remove the final admin.
	ErrLastAdmin = errors.New("application: last admin")
	// ErrDuplicate is returned when an identity key already exists.
	ErrDuplicate = errors.New("application: already exists")
	// ErrInvalidCredentials is returned when authentication fails.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+v.FieldErrors[field])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error. The first message per field wins.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

// mapRepoError translates persistence errors into application errors.
// Storage failures pass through untouched.
func mapRepoError(err error, subject string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, subject)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %s", ErrDuplicate, subject)
	case errors.Is(err, persistence.ErrLastAdmin):
		return ErrLastAdmin
	case errors.Is(err, persistence.ErrForeignKey):
		return fmt.Errorf("%w: %s references a missing record", ErrNotFound, subject)
	case errors.Is(err, persistence.ErrConstraint):
		vErr := &ValidationError{}
		vErr.add(subject, err.Error())
		return vErr
	}
	return err
}
