package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Cache key layout for catalog listings.
const (
	SlotListingPrefix = "slots:open:"
	doctorsListingKey = "doctors:all"
)

// ListingCache is a read-through cache for catalog listings. Implementations
// are best-effort: a miss or an error must never fail the read path.
type ListingCache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, keys ...string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

var (
	ErrBadTimeWindow = errors.New("end time must be after start time")
	ErrBadDateRange  = errors.New("end date must not precede start date")
)

// SlotGeneration describes a bulk slot-creation request: one slot every
// DurationMinutes inside the daily [StartTime, EndTime) window, for every
// day of [StartDate, EndDate].
type SlotGeneration struct {
	DoctorID        uuid.UUID
	StartDate       time.Time
	EndDate         time.Time
	StartTime       string // "HH:MM"
	EndTime         string // "HH:MM"
	DurationMinutes int
	ExcludeWeekends bool
}

// Catalog serves the doctor and slot administration surface. It performs
// plain reads and writes only; nothing here touches booking-lifecycle state
// or the reservation flags.
type Catalog struct {
	store Store
	cache ListingCache
}

func NewCatalog(store Store, cache ListingCache) *Catalog {
	return &Catalog{
		store: store,
		cache: cache,
	}
}

func (c *Catalog) ListDoctors(ctx context.Context) ([]Doctor, error) {
	if c.cache != nil {
		var cached []Doctor
		if ok, err := c.cache.GetJSON(ctx, doctorsListingKey, &cached); err == nil && ok {
			return cached, nil
		}
	}

	doctors, err := c.store.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, doctorsListingKey, doctors); err != nil {
			log.Printf("failed to cache doctor listing: %v", err)
		}
	}

	return doctors, nil
}

func (c *Catalog) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return c.store.GetDoctor(ctx, id)
}

func (c *Catalog) CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	created, err := c.store.CreateDoctor(ctx, &d)
	if err != nil {
		return nil, err
	}

	c.invalidate(ctx, doctorsListingKey)
	return created, nil
}

func (c *Catalog) ListOpenSlots(ctx context.Context, f SlotFilter) ([]SlotView, error) {
	key := slotListingKey(f)

	if c.cache != nil {
		var cached []SlotView
		if ok, err := c.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	slots, err := c.store.ListOpenSlots(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list open slots: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, key, slots); err != nil {
			log.Printf("failed to cache slot listing: %v", err)
		}
	}

	return slots, nil
}

func (c *Catalog) CreateSlot(ctx context.Context, doctorID uuid.UUID, slotTime time.Time, durationMinutes int) (*Slot, error) {
	if durationMinutes <= 0 {
		durationMinutes = 30
	}

	if _, err := c.store.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}

	created, err := c.store.CreateSlot(ctx, &Slot{
		DoctorID:        doctorID,
		SlotTime:        slotTime,
		DurationMinutes: durationMinutes,
	})
	if err != nil {
		return nil, err
	}

	c.invalidateSlots(ctx)
	return created, nil
}

// GenerateSlots bulk-creates slots for the given generation plan. Slots that
// already exist for a (doctor, time) pair are skipped, so re-running the
// same plan is idempotent. Returns the number of slots actually created.
func (c *Catalog) GenerateSlots(ctx context.Context, g SlotGeneration) (int, error) {
	if g.DurationMinutes <= 0 {
		g.DurationMinutes = 30
	}
	if g.EndDate.Before(g.StartDate) {
		return 0, ErrBadDateRange
	}

	startClock, err := parseClock(g.StartTime)
	if err != nil {
		return 0, fmt.Errorf("%w: bad start time %q", ErrBadTimeWindow, g.StartTime)
	}
	endClock, err := parseClock(g.EndTime)
	if err != nil {
		return 0, fmt.Errorf("%w: bad end time %q", ErrBadTimeWindow, g.EndTime)
	}
	if endClock <= startClock {
		return 0, ErrBadTimeWindow
	}

	if _, err := c.store.GetDoctor(ctx, g.DoctorID); err != nil {
		return 0, err
	}

	step := time.Duration(g.DurationMinutes) * time.Minute
	var slots []Slot

	for day := g.StartDate; !day.After(g.EndDate); day = day.AddDate(0, 0, 1) {
		if g.ExcludeWeekends && (day.Weekday() == time.Saturday || day.Weekday() == time.Sunday) {
			continue
		}

		dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
		for at := dayStart.Add(startClock); at.Before(dayStart.Add(endClock)); at = at.Add(step) {
			slots = append(slots, Slot{
				DoctorID:        g.DoctorID,
				SlotTime:        at,
				DurationMinutes: g.DurationMinutes,
			})
		}
	}

	if len(slots) == 0 {
		return 0, nil
	}

	count, err := c.store.CreateSlots(ctx, slots)
	if err != nil {
		return count, fmt.Errorf("bulk create slots: %w", err)
	}

	if count > 0 {
		c.invalidateSlots(ctx)
	}

	return count, nil
}

func (c *Catalog) invalidate(ctx context.Context, keys ...string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Delete(ctx, keys...); err != nil {
		log.Printf("failed to invalidate cache keys %v: %v", keys, err)
	}
}

func (c *Catalog) invalidateSlots(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.DeleteByPrefix(ctx, SlotListingPrefix); err != nil {
		log.Printf("failed to invalidate slot listings: %v", err)
	}
}

func slotListingKey(f SlotFilter) string {
	doctor := "any"
	if f.DoctorID != uuid.Nil {
		doctor = f.DoctorID.String()
	}
	date := "any"
	if !f.Date.IsZero() {
		date = f.Date.Format("2006-01-02")
	}
	return SlotListingPrefix + doctor + ":" + date
}

// parseClock turns "HH:MM" into an offset from midnight.
func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}
