package booking

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store. Transactions are serialized by a single
// mutex, which trivially satisfies the serializable-isolation contract, and
// operate on copies of the row maps so that an error from the transaction
// body rolls back every write. It backs the test suites and local
// development without a Postgres instance.
type MemStore struct {
	mu       sync.Mutex
	doctors  map[uuid.UUID]Doctor
	slots    map[uuid.UUID]Slot
	bookings map[uuid.UUID]Booking
	events   []EventLog

	// Now is the clock used for timestamps and open-slot filtering.
	// Overridable in tests.
	Now func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		doctors:  make(map[uuid.UUID]Doctor),
		slots:    make(map[uuid.UUID]Slot),
		bookings: make(map[uuid.UUID]Booking),
		Now:      time.Now,
	}
}

type memTx struct {
	store    *MemStore
	slots    map[uuid.UUID]Slot
	bookings map[uuid.UUID]Booking
}

func (s *MemStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:    s,
		slots:    cloneMap(s.slots),
		bookings: cloneMap(s.bookings),
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.slots = tx.slots
	s.bookings = tx.bookings
	return nil
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t *memTx) SlotForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	slot, ok := t.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &slot, nil
}

func (t *memTx) MarkSlotReserved(ctx context.Context, id uuid.UUID, expectedVersion int64) (bool, error) {
	slot, ok := t.slots[id]
	if !ok || slot.Version != expectedVersion {
		return false, nil
	}

	slot.Reserved = true
	slot.Version++
	slot.UpdatedAt = t.store.Now()
	t.slots[id] = slot
	return true, nil
}

func (t *memTx) ReleaseSlot(ctx context.Context, id uuid.UUID) error {
	slot, ok := t.slots[id]
	if !ok {
		return ErrSlotNotFound
	}

	slot.Reserved = false
	slot.Version++
	slot.UpdatedAt = t.store.Now()
	t.slots[id] = slot
	return nil
}

func (t *memTx) InsertPendingBooking(ctx context.Context, nb NewBooking) (*Booking, error) {
	now := t.store.Now()
	b := Booking{
		ID:           uuid.New(),
		SlotID:       nb.SlotID,
		PatientName:  nb.PatientName,
		PatientEmail: nb.PatientEmail,
		PatientPhone: nb.PatientPhone,
		Status:       StatusPending,
		BookingTime:  now,
		UpdatedAt:    now,
	}
	t.bookings[b.ID] = b
	return &b, nil
}

func (t *memTx) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus, confirmedAt *time.Time) (*Booking, error) {
	b, ok := t.bookings[id]
	if !ok || b.Status != from {
		return nil, ErrBookingNotFound
	}

	b.Status = to
	if confirmedAt != nil {
		at := *confirmedAt
		b.ConfirmedAt = &at
	}
	b.UpdatedAt = t.store.Now()
	t.bookings[id] = b
	return &b, nil
}

func (t *memTx) BookingForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, ok := t.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return &b, nil
}

func (t *memTx) ExpiredPendingForUpdate(ctx context.Context, cutoff time.Time) ([]Booking, error) {
	var result []Booking
	for _, b := range t.bookings {
		if b.Status == StatusPending && !b.BookingTime.After(cutoff) {
			result = append(result, b)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BookingTime.Before(result[j].BookingTime)
	})
	return result, nil
}

// Reads

func (s *MemStore) GetBookingDetail(ctx context.Context, id uuid.UUID) (*BookingDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return s.detailLocked(b)
}

func (s *MemStore) detailLocked(b Booking) (*BookingDetail, error) {
	slot, ok := s.slots[b.SlotID]
	if !ok {
		return nil, ErrSlotNotFound
	}
	doctor, ok := s.doctors[slot.DoctorID]
	if !ok {
		return nil, ErrDoctorNotFound
	}

	return &BookingDetail{
		Booking:         b,
		SlotTime:        slot.SlotTime,
		DurationMinutes: slot.DurationMinutes,
		DoctorID:        doctor.ID,
		DoctorName:      doctor.Name,
		Specialization:  doctor.Specialization,
	}, nil
}

func (s *MemStore) ListBookings(ctx context.Context, f BookingFilter) ([]BookingDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []BookingDetail
	for _, b := range s.bookings {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.PatientEmail != "" && !strings.EqualFold(b.PatientEmail, f.PatientEmail) {
			continue
		}
		d, err := s.detailLocked(b)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].BookingTime.After(result[j].BookingTime)
	})
	return result, nil
}

// Catalog

func (s *MemStore) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (s *MemStore) ListDoctors(ctx context.Context) ([]Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]Doctor, 0, len(s.doctors))
	for _, d := range s.doctors {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

func (s *MemStore) CreateDoctor(ctx context.Context, d *Doctor) (*Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.doctors {
		if strings.EqualFold(existing.Email, d.Email) {
			return nil, ErrDuplicateDoctor
		}
	}

	now := s.Now()
	created := *d
	created.ID = uuid.New()
	created.CreatedAt = now
	created.UpdatedAt = now
	s.doctors[created.ID] = created
	return &created, nil
}

func (s *MemStore) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	return &slot, nil
}

func (s *MemStore) ListOpenSlots(ctx context.Context, f SlotFilter) ([]SlotView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	var result []SlotView
	for _, slot := range s.slots {
		if slot.Reserved || !slot.SlotTime.After(now) {
			continue
		}
		if f.DoctorID != uuid.Nil && slot.DoctorID != f.DoctorID {
			continue
		}
		if !f.Date.IsZero() {
			y1, m1, d1 := slot.SlotTime.Date()
			y2, m2, d2 := f.Date.Date()
			if y1 != y2 || m1 != m2 || d1 != d2 {
				continue
			}
		}

		doctor, ok := s.doctors[slot.DoctorID]
		if !ok {
			return nil, ErrDoctorNotFound
		}
		result = append(result, SlotView{
			Slot:           slot,
			DoctorName:     doctor.Name,
			Specialization: doctor.Specialization,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].SlotTime.Before(result[j].SlotTime)
	})
	return result, nil
}

func (s *MemStore) CreateSlot(ctx context.Context, sl *Slot) (*Slot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.createSlotLocked(sl)
}

func (s *MemStore) createSlotLocked(sl *Slot) (*Slot, error) {
	for _, existing := range s.slots {
		if existing.DoctorID == sl.DoctorID && existing.SlotTime.Equal(sl.SlotTime) {
			return nil, ErrDuplicateSlot
		}
	}

	now := s.Now()
	created := *sl
	created.ID = uuid.New()
	created.Reserved = false
	created.Version = 0
	created.CreatedAt = now
	created.UpdatedAt = now
	s.slots[created.ID] = created
	return &created, nil
}

func (s *MemStore) CreateSlots(ctx context.Context, slots []Slot) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for i := range slots {
		if _, err := s.createSlotLocked(&slots[i]); err != nil {
			if err == ErrDuplicateSlot {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

func (s *MemStore) InsertEvent(ctx context.Context, ev EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev.ID = int64(len(s.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.Now()
	}
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (s *MemStore) Events() []EventLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]EventLog, len(s.events))
	copy(out, s.events)
	return out
}
