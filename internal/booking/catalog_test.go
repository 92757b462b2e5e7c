package booking

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// fakeCache is an in-process ListingCache for exercising the read-through
// and invalidation paths.
type fakeCache struct {
	entries map[string][]byte
	gets    int
	hits    int
	sets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	c.gets++
	data, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	c.hits++
	return true, json.Unmarshal(data, dest)
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, v any) error {
	c.sets++
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.entries[key] = data
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *fakeCache) DeleteByPrefix(ctx context.Context, prefix string) error {
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

func newCatalogEnv(t *testing.T) (*MemStore, *Catalog, *Doctor) {
	t.Helper()

	now := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	store := NewMemStore()
	store.Now = func() time.Time { return now }

	catalog := NewCatalog(store, nil)

	doctor, err := store.CreateDoctor(context.Background(), &Doctor{
		Name:           "Alice Nguyen",
		Specialization: "Cardiology",
		Email:          "alice@clinic.test",
	})
	if err != nil {
		t.Fatalf("create doctor: %v", err)
	}

	return store, catalog, doctor
}

func TestGenerateSlotsWeekdayWindow(t *testing.T) {
	_, catalog, doctor := newCatalogEnv(t)

	// Monday through Sunday; weekends excluded leaves 5 days, with a
	// one-hour window holding two 30-minute slots per day.
	count, err := catalog.GenerateSlots(context.Background(), SlotGeneration{
		DoctorID:        doctor.ID,
		StartDate:       time.Date(2025, time.March, 17, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, time.March, 23, 0, 0, 0, 0, time.UTC),
		StartTime:       "09:00",
		EndTime:         "10:00",
		DurationMinutes: 30,
		ExcludeWeekends: true,
	})
	if err != nil {
		t.Fatalf("generate slots: %v", err)
	}
	if count != 10 {
		t.Errorf("created = %d, want 10", count)
	}
}

func TestGenerateSlotsIsIdempotent(t *testing.T) {
	_, catalog, doctor := newCatalogEnv(t)

	gen := SlotGeneration{
		DoctorID:        doctor.ID,
		StartDate:       time.Date(2025, time.March, 17, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2025, time.March, 17, 0, 0, 0, 0, time.UTC),
		StartTime:       "09:00",
		EndTime:         "11:00",
		DurationMinutes: 30,
	}

	first, err := catalog.GenerateSlots(context.Background(), gen)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first != 4 {
		t.Errorf("first run created = %d, want 4", first)
	}

	second, err := catalog.GenerateSlots(context.Background(), gen)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second != 0 {
		t.Errorf("second run created = %d, want 0", second)
	}
}

func TestGenerateSlotsValidation(t *testing.T) {
	_, catalog, doctor := newCatalogEnv(t)
	ctx := context.Background()

	monday := time.Date(2025, time.March, 17, 0, 0, 0, 0, time.UTC)

	_, err := catalog.GenerateSlots(ctx, SlotGeneration{
		DoctorID:  doctor.ID,
		StartDate: monday,
		EndDate:   monday.AddDate(0, 0, -1),
		StartTime: "09:00",
		EndTime:   "10:00",
	})
	if !errors.Is(err, ErrBadDateRange) {
		t.Errorf("reversed dates err = %v, want ErrBadDateRange", err)
	}

	_, err = catalog.GenerateSlots(ctx, SlotGeneration{
		DoctorID:  doctor.ID,
		StartDate: monday,
		EndDate:   monday,
		StartTime: "10:00",
		EndTime:   "09:00",
	})
	if !errors.Is(err, ErrBadTimeWindow) {
		t.Errorf("reversed window err = %v, want ErrBadTimeWindow", err)
	}

	_, err = catalog.GenerateSlots(ctx, SlotGeneration{
		DoctorID:  doctor.ID,
		StartDate: monday,
		EndDate:   monday,
		StartTime: "late",
		EndTime:   "10:00",
	})
	if !errors.Is(err, ErrBadTimeWindow) {
		t.Errorf("unparseable clock err = %v, want ErrBadTimeWindow", err)
	}

	_, err = catalog.GenerateSlots(ctx, SlotGeneration{
		DoctorID:  uuid.New(),
		StartDate: monday,
		EndDate:   monday,
		StartTime: "09:00",
		EndTime:   "10:00",
	})
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("unknown doctor err = %v, want ErrDoctorNotFound", err)
	}
}

func TestCreateSlotDefaultsAndDuplicates(t *testing.T) {
	_, catalog, doctor := newCatalogEnv(t)
	ctx := context.Background()

	at := time.Date(2025, time.March, 17, 9, 0, 0, 0, time.UTC)

	created, err := catalog.CreateSlot(ctx, doctor.ID, at, 0)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}
	if created.DurationMinutes != 30 {
		t.Errorf("duration = %d, want default 30", created.DurationMinutes)
	}
	if created.Version != 0 || created.Reserved {
		t.Errorf("new slot should start free at version 0, got reserved=%v version=%d", created.Reserved, created.Version)
	}

	_, err = catalog.CreateSlot(ctx, doctor.ID, at, 30)
	if !errors.Is(err, ErrDuplicateSlot) {
		t.Errorf("duplicate err = %v, want ErrDuplicateSlot", err)
	}

	_, err = catalog.CreateSlot(ctx, uuid.New(), at.Add(time.Hour), 30)
	if !errors.Is(err, ErrDoctorNotFound) {
		t.Errorf("unknown doctor err = %v, want ErrDoctorNotFound", err)
	}
}

func TestListOpenSlotsFilters(t *testing.T) {
	store, catalog, doctor := newCatalogEnv(t)
	ctx := context.Background()

	other, err := store.CreateDoctor(ctx, &Doctor{
		Name:           "Ben Ortiz",
		Specialization: "Dermatology",
		Email:          "ben@clinic.test",
	})
	if err != nil {
		t.Fatalf("create doctor: %v", err)
	}

	day1 := time.Date(2025, time.March, 17, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, time.March, 18, 9, 0, 0, 0, time.UTC)

	if _, err := catalog.CreateSlot(ctx, doctor.ID, day1, 30); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	if _, err := catalog.CreateSlot(ctx, doctor.ID, day2, 30); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	if _, err := catalog.CreateSlot(ctx, other.ID, day1, 30); err != nil {
		t.Fatalf("create slot: %v", err)
	}

	all, err := catalog.ListOpenSlots(ctx, SlotFilter{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all = %d, want 3", len(all))
	}

	byDoctor, err := catalog.ListOpenSlots(ctx, SlotFilter{DoctorID: other.ID})
	if err != nil {
		t.Fatalf("list by doctor: %v", err)
	}
	if len(byDoctor) != 1 || byDoctor[0].DoctorName != other.Name {
		t.Errorf("doctor filter returned %d rows", len(byDoctor))
	}

	byDate, err := catalog.ListOpenSlots(ctx, SlotFilter{Date: day2})
	if err != nil {
		t.Fatalf("list by date: %v", err)
	}
	if len(byDate) != 1 || !byDate[0].SlotTime.Equal(day2) {
		t.Errorf("date filter returned %d rows", len(byDate))
	}
}

func TestDoctorListingUsesCache(t *testing.T) {
	store, _, _ := newCatalogEnv(t)
	cache := newFakeCache()
	catalog := NewCatalog(store, cache)
	ctx := context.Background()

	first, err := catalog.ListDoctors(ctx)
	if err != nil {
		t.Fatalf("first list: %v", err)
	}
	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}

	second, err := catalog.ListDoctors(ctx)
	if err != nil {
		t.Fatalf("second list: %v", err)
	}
	if cache.hits != 1 {
		t.Errorf("cache hits = %d, want 1", cache.hits)
	}
	if len(first) != len(second) {
		t.Errorf("cached listing length %d != %d", len(second), len(first))
	}

	// A new doctor drops the cached listing.
	if _, err := catalog.CreateDoctor(ctx, Doctor{
		Name:           "Cara Lin",
		Specialization: "Neurology",
		Email:          "cara@clinic.test",
	}); err != nil {
		t.Fatalf("create doctor: %v", err)
	}

	third, err := catalog.ListDoctors(ctx)
	if err != nil {
		t.Fatalf("third list: %v", err)
	}
	if len(third) != len(first)+1 {
		t.Errorf("listing after invalidation = %d doctors, want %d", len(third), len(first)+1)
	}
}

func TestSlotListingInvalidatedByReserve(t *testing.T) {
	store, _, doctor := newCatalogEnv(t)
	cache := newFakeCache()
	catalog := NewCatalog(store, cache)
	svc := NewService(store, cache)
	svc.now = store.Now
	ctx := context.Background()

	at := store.Now().Add(24 * time.Hour)
	slot, err := catalog.CreateSlot(ctx, doctor.ID, at, 30)
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	open, err := catalog.ListOpenSlots(ctx, SlotFilter{})
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 {
		t.Fatalf("open = %d, want 1", len(open))
	}

	if _, err := svc.Reserve(ctx, NewBooking{
		SlotID:       slot.ID,
		PatientName:  "Bob Jones",
		PatientEmail: "bob@example.com",
	}); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	// The reservation must have dropped the cached listing; a fresh read
	// sees the slot gone.
	openAfter, err := catalog.ListOpenSlots(ctx, SlotFilter{})
	if err != nil {
		t.Fatalf("list open after reserve: %v", err)
	}
	if len(openAfter) != 0 {
		t.Errorf("open after reserve = %d, want 0", len(openAfter))
	}
}
