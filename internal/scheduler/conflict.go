package scheduler

// Booking is the slice of a reservation the detectors need.
type Booking struct {
	ID     string
	Window Window
	Status ReservationStatus
}

// DetectConflicts returns the approved bookings that overlap the candidate.
// Pending and rejected bookings never conflict.
func DetectConflicts(existing []Booking, candidate Window) []Booking {
	var conflicts []Booking
	for _, b := range existing {
		if b.Status != StatusApproved {
			continue
		}
		if b.Window.Overlaps(candidate) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts
}

// HasConflict reports whether any approved booking overlaps the candidate.
func HasConflict(existing []Booking, candidate Window) bool {
	for _, b := range existing {
		if b.Status == StatusApproved && b.Window.Overlaps(candidate) {
			return true
		}
	}
	return false
}

// StatusForWindow reports Approved if an approved booking overlaps the
// candidate, else Pending if a pending one does, else Available.
func StatusForWindow(existing []Booking, candidate Window) WindowStatus {
	status := WindowAvailable
	for _, b := range existing {
		if !b.Window.Overlaps(candidate) {
			continue
		}
		switch b.Status {
		case StatusApproved:
			return WindowApproved
		case StatusPending:
			status = WindowPending
		}
	}
	return status
}

// EffectiveStatus derives a room's live status at (today, now) from its
// bookings: Occupied if an approved booking contains now, else Pending if
// a pending one does, else Available.
func EffectiveStatus(existing []Booking, today Date, now TimeOfDay) RoomStatus {
	status := RoomAvailable
	for _, b := range existing {
		if b.Window.Date != today || !b.Window.Contains(now) {
			continue
		}
		switch b.Status {
		case StatusApproved:
			return RoomOccupied
		case StatusPending:
			status = RoomPending
		}
	}
	return status
}
