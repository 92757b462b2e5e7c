package booking

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusFailed    BookingStatus = "FAILED"
	StatusCancelled BookingStatus = "CANCELLED"
)

// CanTransitionTo reports whether moving from s to next is a legal step of
// the booking lifecycle. The lifecycle only moves forward: a booking starts
// PENDING, is confirmed in the same transaction that created it, and from
// CONFIRMED can only be cancelled. FAILED and CANCELLED are terminal.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusFailed
	case StatusConfirmed:
		return next == StatusCancelled
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible from s.
func (s BookingStatus) Terminal() bool {
	return s == StatusFailed || s == StatusCancelled
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type Doctor struct {
	ID              uuid.UUID
	Name            string
	Specialization  string
	Email           string
	Phone           *string
	ExperienceYears int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Slot is a bookable time interval owned by a doctor. Reserved flips to true
// while exactly one PENDING or CONFIRMED booking references the slot.
// Version increments by one on every committed mutation and is the token
// used for optimistic conflict detection.
type Slot struct {
	ID              uuid.UUID
	DoctorID        uuid.UUID
	SlotTime        time.Time
	DurationMinutes int
	Reserved        bool
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Booking struct {
	ID           uuid.UUID
	SlotID       uuid.UUID
	PatientName  string
	PatientEmail string
	PatientPhone *string
	Status       BookingStatus
	BookingTime  time.Time
	ConfirmedAt  *time.Time
	UpdatedAt    time.Time
}

// BookingDetail joins a booking with its slot schedule and the owning
// doctor's descriptive fields so confirmation screens need one round trip.
type BookingDetail struct {
	Booking
	SlotTime        time.Time
	DurationMinutes int
	DoctorID        uuid.UUID
	DoctorName      string
	Specialization  string
}

type EventLog struct {
	ID        int64
	EventType string
	BookingID *uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
