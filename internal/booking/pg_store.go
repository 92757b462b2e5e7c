package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var phone *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Specialization,
		&d.Email,
		&phone,
		&d.ExperienceYears,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Phone = phone
	return &d, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.SlotTime,
		&s.DurationMinutes,
		&s.Reserved,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	return &s, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var phone *string
	var confirmedAt *time.Time

	err := row.Scan(
		&b.ID,
		&b.SlotID,
		&b.PatientName,
		&b.PatientEmail,
		&phone,
		&b.Status,
		&b.BookingTime,
		&confirmedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	b.PatientPhone = phone
	b.ConfirmedAt = confirmedAt
	return &b, nil
}

func scanBookingDetail(row pgx.Row) (*BookingDetail, error) {
	var d BookingDetail
	var phone *string
	var confirmedAt *time.Time

	err := row.Scan(
		&d.ID,
		&d.SlotID,
		&d.PatientName,
		&d.PatientEmail,
		&phone,
		&d.Status,
		&d.BookingTime,
		&confirmedAt,
		&d.UpdatedAt,
		&d.SlotTime,
		&d.DurationMinutes,
		&d.DoctorID,
		&d.DoctorName,
		&d.Specialization,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	d.PatientPhone = phone
	d.ConfirmedAt = confirmedAt
	return &d, nil
}

// isRetryableTxError reports whether the engine aborted the transaction for
// a concurrency reason (serialization failure or deadlock). Both collapse to
// the same conflict outcome for callers.
func isRetryableTxError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Transactions

type pgTx struct {
	tx pgx.Tx
}

// InTx opens a serializable transaction and runs fn against it. Any error
// from fn or from commit rolls everything back; engine-level serialization
// failures surface as ErrVersionConflict so every concurrent-writer outcome
// looks the same to callers.
func (s *PgStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		if isRetryableTxError(err) {
			return fmt.Errorf("%w: %v", ErrVersionConflict, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isRetryableTxError(err) {
			return fmt.Errorf("%w: %v", ErrVersionConflict, err)
		}
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

func (t *pgTx) SlotForUpdate(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, doctor_id, slot_time, duration_minutes, reserved, version, created_at, updated_at
		FROM appointment_slots
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanSlot(row)
}

func (t *pgTx) MarkSlotReserved(ctx context.Context, id uuid.UUID, expectedVersion int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointment_slots
		SET reserved = TRUE,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
	`, id, expectedVersion)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) ReleaseSlot(ctx context.Context, id uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointment_slots
		SET reserved = FALSE,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (t *pgTx) InsertPendingBooking(ctx context.Context, nb NewBooking) (*Booking, error) {
	id := uuid.New()

	row := t.tx.QueryRow(ctx, `
		INSERT INTO bookings (id, slot_id, patient_name, patient_email, patient_phone, status, booking_time, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'PENDING', now(), now())
		RETURNING id, slot_id, patient_name, patient_email, patient_phone, status, booking_time, confirmed_at, updated_at
	`, id, nb.SlotID, nb.PatientName, nb.PatientEmail, nb.PatientPhone)

	return scanBooking(row)
}

func (t *pgTx) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus, confirmedAt *time.Time) (*Booking, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    confirmed_at = COALESCE($4, confirmed_at),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, slot_id, patient_name, patient_email, patient_phone, status, booking_time, confirmed_at, updated_at
	`, id, to, from, confirmedAt)

	return scanBooking(row)
}

func (t *pgTx) BookingForUpdate(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT id, slot_id, patient_name, patient_email, patient_phone, status, booking_time, confirmed_at, updated_at
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, id)
	return scanBooking(row)
}

func (t *pgTx) ExpiredPendingForUpdate(ctx context.Context, cutoff time.Time) ([]Booking, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, slot_id, patient_name, patient_email, patient_phone, status, booking_time, confirmed_at, updated_at
		FROM bookings
		WHERE status = 'PENDING'
		  AND booking_time <= $1
		FOR UPDATE
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Booking reads

const bookingDetailColumns = `
	b.id, b.slot_id, b.patient_name, b.patient_email, b.patient_phone,
	b.status, b.booking_time, b.confirmed_at, b.updated_at,
	s.slot_time, s.duration_minutes,
	d.id, d.name, d.specialization`

func (s *PgStore) GetBookingDetail(ctx context.Context, id uuid.UUID) (*BookingDetail, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+bookingDetailColumns+`
		FROM bookings b
		JOIN appointment_slots s ON b.slot_id = s.id
		JOIN doctors d ON s.doctor_id = d.id
		WHERE b.id = $1
	`, id)
	return scanBookingDetail(row)
}

func (s *PgStore) ListBookings(ctx context.Context, f BookingFilter) ([]BookingDetail, error) {
	query := `
		SELECT ` + bookingDetailColumns + `
		FROM bookings b
		JOIN appointment_slots s ON b.slot_id = s.id
		JOIN doctors d ON s.doctor_id = d.id
		WHERE 1=1`
	var args []any

	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND b.status = $%d", len(args))
	}
	if f.PatientEmail != "" {
		args = append(args, f.PatientEmail)
		query += fmt.Sprintf(" AND b.patient_email = $%d", len(args))
	}

	query += " ORDER BY b.booking_time DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BookingDetail
	for rows.Next() {
		d, err := scanBookingDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Catalog

func (s *PgStore) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, specialization, email, phone, experience_years, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (s *PgStore) ListDoctors(ctx context.Context) ([]Doctor, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, specialization, email, phone, experience_years, created_at, updated_at
		FROM doctors
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) CreateDoctor(ctx context.Context, d *Doctor) (*Doctor, error) {
	id := uuid.New()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO doctors (id, name, specialization, email, phone, experience_years, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, name, specialization, email, phone, experience_years, created_at, updated_at
	`, id, d.Name, d.Specialization, d.Email, d.Phone, d.ExperienceYears)

	created, err := scanDoctor(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateDoctor
		}
		return nil, err
	}
	return created, nil
}

func (s *PgStore) GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, doctor_id, slot_time, duration_minutes, reserved, version, created_at, updated_at
		FROM appointment_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (s *PgStore) ListOpenSlots(ctx context.Context, f SlotFilter) ([]SlotView, error) {
	query := `
		SELECT s.id, s.doctor_id, s.slot_time, s.duration_minutes, s.reserved, s.version,
		       s.created_at, s.updated_at,
		       d.name, d.specialization
		FROM appointment_slots s
		JOIN doctors d ON s.doctor_id = d.id
		WHERE s.reserved = FALSE AND s.slot_time > now()`
	var args []any

	if f.DoctorID != uuid.Nil {
		args = append(args, f.DoctorID)
		query += fmt.Sprintf(" AND s.doctor_id = $%d", len(args))
	}
	if !f.Date.IsZero() {
		args = append(args, f.Date)
		query += fmt.Sprintf(" AND DATE(s.slot_time) = DATE($%d)", len(args))
	}

	query += " ORDER BY s.slot_time"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SlotView
	for rows.Next() {
		var v SlotView
		err := rows.Scan(
			&v.ID,
			&v.DoctorID,
			&v.SlotTime,
			&v.DurationMinutes,
			&v.Reserved,
			&v.Version,
			&v.CreatedAt,
			&v.UpdatedAt,
			&v.DoctorName,
			&v.Specialization,
		)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) CreateSlot(ctx context.Context, sl *Slot) (*Slot, error) {
	id := uuid.New()

	row := s.pool.QueryRow(ctx, `
		INSERT INTO appointment_slots (id, doctor_id, slot_time, duration_minutes, reserved, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, 0, now(), now())
		RETURNING id, doctor_id, slot_time, duration_minutes, reserved, version, created_at, updated_at
	`, id, sl.DoctorID, sl.SlotTime, sl.DurationMinutes)

	created, err := scanSlot(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateSlot
		}
		return nil, err
	}
	return created, nil
}

func (s *PgStore) CreateSlots(ctx context.Context, slots []Slot) (int, error) {
	count := 0
	for _, sl := range slots {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO appointment_slots (id, doctor_id, slot_time, duration_minutes, reserved, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, FALSE, 0, now(), now())
			ON CONFLICT (doctor_id, slot_time) DO NOTHING
		`, uuid.New(), sl.DoctorID, sl.SlotTime, sl.DurationMinutes)
		if err != nil {
			return count, err
		}
		count += int(tag.RowsAffected())
	}
	return count, nil
}

func (s *PgStore) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, booking_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.BookingID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
