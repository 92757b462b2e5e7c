package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

const (
	EventBookingConfirmed = "BOOKING_CONFIRMED"
	EventBookingCancelled = "BOOKING_CANCELLED"
	EventBookingFailed    = "BOOKING_FAILED"
)

var (
	ErrSlotAlreadyReserved = errors.New("slot already reserved")
	ErrSlotInPast          = errors.New("cannot book past slots")
	ErrAlreadyCancelled    = errors.New("booking already cancelled")
	ErrInvalidTransition   = errors.New("invalid booking status transition")
)

// DefaultSweepThreshold is how long a booking may sit in PENDING before the
// sweeper reclaims it.
const DefaultSweepThreshold = 2 * time.Minute

// Service owns the booking lifecycle: the reserve protocol, cancellation,
// and the expiration sweep. All three run as single serializable
// transactions against the Store; the service itself holds no state and
// never retries on conflict; that decision belongs to the caller.
type Service struct {
	store Store
	cache ListingCache
	now   func() time.Time
}

// NewService builds the lifecycle service. cache may be nil; when set,
// cached slot listings are invalidated whenever a commit changes a slot's
// availability.
func NewService(store Store, cache ListingCache) *Service {
	return &Service{
		store: store,
		cache: cache,
		now:   time.Now,
	}
}

// Reserve claims the slot for a patient. Inside one transaction it locks
// the slot row, verifies it is free and in the future, inserts a PENDING
// booking, flips the slot to reserved with a version-checked update, and
// confirms the booking. The row lock serializes concurrent attempts; the
// version check additionally catches any writer that got past it, and the
// store maps engine serialization failures onto the same conflict error.
// Either both the booking and the slot transition commit, or neither does.
func (s *Service) Reserve(ctx context.Context, nb NewBooking) (*BookingDetail, error) {
	var bookingID uuid.UUID

	err := s.store.InTx(ctx, func(tx Tx) error {
		slot, err := tx.SlotForUpdate(ctx, nb.SlotID)
		if err != nil {
			if errors.Is(err, ErrSlotNotFound) {
				return err
			}
			return fmt.Errorf("lock slot: %w", err)
		}

		if slot.Reserved {
			return ErrSlotAlreadyReserved
		}

		now := s.now()
		if !slot.SlotTime.After(now) {
			return ErrSlotInPast
		}

		pending, err := tx.InsertPendingBooking(ctx, nb)
		if err != nil {
			return fmt.Errorf("create pending booking: %w", err)
		}

		ok, err := tx.MarkSlotReserved(ctx, slot.ID, slot.Version)
		if err != nil {
			return fmt.Errorf("reserve slot: %w", err)
		}
		if !ok {
			return ErrVersionConflict
		}

		confirmedAt := now
		if _, err := tx.UpdateBookingStatus(ctx, pending.ID, StatusPending, StatusConfirmed, &confirmedAt); err != nil {
			return fmt.Errorf("confirm booking: %w", err)
		}

		bookingID = pending.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	detail, err := s.store.GetBookingDetail(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("load confirmed booking: %w", err)
	}

	s.logEvent(ctx, bookingID, EventBookingConfirmed, map[string]any{
		"slot_id":       nb.SlotID.String(),
		"patient_email": nb.PatientEmail,
	})
	s.invalidateSlotListings(ctx)

	return detail, nil
}

// Cancel reverses a confirmed booking and frees its slot. Cancelling twice
// is rejected, not ignored; so is cancelling from any status other than
// CONFIRMED. The slot release is unconditional: cancellation always frees
// the slot regardless of its version.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	err := s.store.InTx(ctx, func(tx Tx) error {
		b, err := tx.BookingForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				return err
			}
			return fmt.Errorf("lock booking: %w", err)
		}

		if b.Status == StatusCancelled {
			return ErrAlreadyCancelled
		}
		if !b.Status.CanTransitionTo(StatusCancelled) {
			return ErrInvalidTransition
		}

		if _, err := tx.UpdateBookingStatus(ctx, b.ID, b.Status, StatusCancelled, nil); err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}

		if err := tx.ReleaseSlot(ctx, b.SlotID); err != nil {
			return fmt.Errorf("release slot: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logEvent(ctx, id, EventBookingCancelled, map[string]any{})
	s.invalidateSlotListings(ctx)

	return nil
}

// SweepExpired reclaims bookings stuck in PENDING for longer than
// threshold, marking them FAILED and freeing their slots. The reserve
// protocol confirms in the same transaction that creates the booking, so
// under normal operation this finds nothing; it exists to recover from a
// crash between booking-insert and slot-confirm. Returns the number of
// bookings reclaimed.
func (s *Service) SweepExpired(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold <= 0 {
		threshold = DefaultSweepThreshold
	}

	cutoff := s.now().Add(-threshold)
	var swept []Booking

	err := s.store.InTx(ctx, func(tx Tx) error {
		expired, err := tx.ExpiredPendingForUpdate(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("find expired pending bookings: %w", err)
		}
		if len(expired) == 0 {
			return nil
		}

		for _, b := range expired {
			if _, err := tx.UpdateBookingStatus(ctx, b.ID, StatusPending, StatusFailed, nil); err != nil {
				return fmt.Errorf("fail booking %s: %w", b.ID, err)
			}
			if err := tx.ReleaseSlot(ctx, b.SlotID); err != nil {
				return fmt.Errorf("release slot %s: %w", b.SlotID, err)
			}
		}

		swept = expired
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, b := range swept {
		s.logEvent(ctx, b.ID, EventBookingFailed, map[string]any{
			"reason":  "sweep",
			"slot_id": b.SlotID.String(),
		})
	}
	if len(swept) > 0 {
		s.invalidateSlotListings(ctx)
	}

	return len(swept), nil
}

// GetBooking retrieves the fully joined booking view by id.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (*BookingDetail, error) {
	return s.store.GetBookingDetail(ctx, id)
}

// ListBookings retrieves joined booking views, most recent first.
func (s *Service) ListBookings(ctx context.Context, f BookingFilter) ([]BookingDetail, error) {
	return s.store.ListBookings(ctx, f)
}

func (s *Service) logEvent(ctx context.Context, bookingID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	id := bookingID

	ev := EventLog{
		EventType: eventType,
		BookingID: &id,
		Payload:   data,
		CreatedAt: s.now(),
	}

	if err := s.store.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for booking %s: %v", eventType, bookingID, err)
	}
}

func (s *Service) invalidateSlotListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPrefix(ctx, SlotListingPrefix); err != nil {
		log.Printf("failed to invalidate slot listings: %v", err)
	}
}
