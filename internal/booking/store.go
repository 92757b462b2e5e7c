package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrBookingNotFound = errors.New("booking not found")

	// ErrVersionConflict covers every concurrent-writer outcome: a stale
	// slot version on the conditional update, and serialization or
	// deadlock failures reported by the storage engine.
	ErrVersionConflict = errors.New("slot was modified by a concurrent request")

	ErrDuplicateDoctor = errors.New("doctor with this email already exists")
	ErrDuplicateSlot   = errors.New("slot already exists for this doctor at this time")
)

// BookingFilter narrows ListBookings. Zero values mean no filtering.
type BookingFilter struct {
	Status       BookingStatus
	PatientEmail string
}

// SlotFilter narrows ListOpenSlots. Date, when set, matches the calendar
// day of the slot time.
type SlotFilter struct {
	DoctorID uuid.UUID
	Date     time.Time
}

// NewBooking carries the patient fields for a reservation attempt.
type NewBooking struct {
	SlotID       uuid.UUID
	PatientName  string
	PatientEmail string
	PatientPhone *string
}

// Tx is the transactional handle the booking lifecycle runs against. Every
// method operates under the row locks and isolation of the enclosing
// Store.InTx call; none of them may be used after InTx returns.
type Tx interface {
	// SlotForUpdate takes an exclusive row lock on the slot and returns
	// its current snapshot. Blocks until any competing transaction on the
	// same slot commits or rolls back.
	SlotForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error)

	// MarkSlotReserved sets reserved=true and bumps the version, but only
	// if the stored version still equals expectedVersion. Reports whether
	// a row matched.
	MarkSlotReserved(ctx context.Context, id uuid.UUID, expectedVersion int64) (bool, error)

	// ReleaseSlot unconditionally sets reserved=false and bumps the
	// version. Used by cancellation and the sweeper, which free a slot
	// regardless of its current version.
	ReleaseSlot(ctx context.Context, id uuid.UUID) error

	InsertPendingBooking(ctx context.Context, nb NewBooking) (*Booking, error)

	// UpdateBookingStatus moves a booking from one status to another as a
	// compare-and-set; ErrBookingNotFound if the booking is absent or no
	// longer in the from status. confirmedAt, when non-nil, stamps the
	// confirmation time.
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus, confirmedAt *time.Time) (*Booking, error)

	BookingForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error)

	// ExpiredPendingForUpdate locks and returns every PENDING booking
	// created at or before cutoff.
	ExpiredPendingForUpdate(ctx context.Context, cutoff time.Time) ([]Booking, error)
}

// Store contains all persistence the booking and catalog services need.
type Store interface {
	// InTx runs fn inside a single serializable transaction. A nil return
	// from fn commits; any error rolls back everything fn did. Engine
	// serialization failures and deadlocks come back as ErrVersionConflict.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// Booking reads (outside any transaction).
	GetBookingDetail(ctx context.Context, id uuid.UUID) (*BookingDetail, error)
	ListBookings(ctx context.Context, f BookingFilter) ([]BookingDetail, error)

	// Catalog.
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context) ([]Doctor, error)
	CreateDoctor(ctx context.Context, d *Doctor) (*Doctor, error)
	GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error)
	ListOpenSlots(ctx context.Context, f SlotFilter) ([]SlotView, error)
	CreateSlot(ctx context.Context, s *Slot) (*Slot, error)
	// CreateSlots inserts the given slots, silently skipping any that
	// collide on (doctor, time). Returns the number actually created.
	CreateSlots(ctx context.Context, slots []Slot) (int, error)

	// Event audit trail, best-effort.
	InsertEvent(ctx context.Context, ev EventLog) error
}

// SlotView joins a slot with its doctor's display fields for listings.
type SlotView struct {
	Slot
	DoctorName     string
	Specialization string
}
