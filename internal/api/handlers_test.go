package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/careslot/booking-platform/internal/booking"
)

const testAdminToken = "test-admin-token"

type testAPI struct {
	store   *booking.MemStore
	handler http.Handler
	doctor  *booking.Doctor
	slot    *booking.Slot
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	store := booking.NewMemStore()
	svc := booking.NewService(store, nil)
	catalog := booking.NewCatalog(store, nil)

	handler := NewRouter(RouterConfig{
		Service:        svc,
		Catalog:        catalog,
		AdminToken:     testAdminToken,
		SweepThreshold: 2 * time.Minute,
		Env:            "test",
		Version:        "test",
	})

	ctx := context.Background()

	doctor, err := store.CreateDoctor(ctx, &booking.Doctor{
		Name:            "Alice Nguyen",
		Specialization:  "Cardiology",
		Email:           "alice@clinic.test",
		ExperienceYears: 12,
	})
	if err != nil {
		t.Fatalf("create doctor: %v", err)
	}

	slot, err := store.CreateSlot(ctx, &booking.Slot{
		DoctorID:        doctor.ID,
		SlotTime:        time.Now().Add(24 * time.Hour),
		DurationMinutes: 30,
	})
	if err != nil {
		t.Fatalf("create slot: %v", err)
	}

	return &testAPI{store: store, handler: handler, doctor: doctor, slot: slot}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, admin bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Admin-Token", testAdminToken)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestReserveEndpoint(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, "POST", "/bookings", CreateBookingRequest{
		SlotID:       a.slot.ID.String(),
		PatientName:  "Bob Jones",
		PatientEmail: "bob@example.com",
	}, false)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}

	resp := decode[BookingResponse](t, rec)
	if resp.Status != string(booking.StatusConfirmed) {
		t.Errorf("status = %s, want CONFIRMED", resp.Status)
	}
	if resp.DoctorName != a.doctor.Name {
		t.Errorf("doctor_name = %q, want %q", resp.DoctorName, a.doctor.Name)
	}
	if resp.ConfirmedAt == nil {
		t.Error("confirmed_at missing")
	}
}

func TestReserveEndpointConflict(t *testing.T) {
	a := newTestAPI(t)

	first := a.do(t, "POST", "/bookings", CreateBookingRequest{
		SlotID:       a.slot.ID.String(),
		PatientName:  "Bob Jones",
		PatientEmail: "bob@example.com",
	}, false)
	if first.Code != http.StatusCreated {
		t.Fatalf("first status = %d, want 201", first.Code)
	}

	second := a.do(t, "POST", "/bookings", CreateBookingRequest{
		SlotID:       a.slot.ID.String(),
		PatientName:  "Carol Smith",
		PatientEmail: "carol@example.com",
	}, false)
	if second.Code != http.StatusConflict {
		t.Errorf("second status = %d, want 409", second.Code)
	}

	errResp := decode[ErrorResponse](t, second)
	if errResp.Error != "slot_already_reserved" {
		t.Errorf("error code = %q, want slot_already_reserved", errResp.Error)
	}
}

func TestReserveEndpointValidation(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name string
		req  CreateBookingRequest
		code string
	}{
		{"bad slot id", CreateBookingRequest{SlotID: "nope", PatientName: "B", PatientEmail: "b@x.com"}, "invalid_slot_id"},
		{"missing name", CreateBookingRequest{SlotID: a.slot.ID.String(), PatientEmail: "b@x.com"}, "missing_patient_name"},
		{"missing email", CreateBookingRequest{SlotID: a.slot.ID.String(), PatientName: "B"}, "missing_patient_email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, "POST", "/bookings", tt.req, false)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			errResp := decode[ErrorResponse](t, rec)
			if errResp.Error != tt.code {
				t.Errorf("error code = %q, want %q", errResp.Error, tt.code)
			}
		})
	}
}

func TestReserveEndpointUnknownSlot(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, "POST", "/bookings", CreateBookingRequest{
		SlotID:       uuid.NewString(),
		PatientName:  "Bob Jones",
		PatientEmail: "bob@example.com",
	}, false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetBookingEndpoint(t *testing.T) {
	a := newTestAPI(t)

	created := decode[BookingResponse](t, a.do(t, "POST", "/bookings", CreateBookingRequest{
		SlotID:       a.slot.ID.String(),
		PatientName:  "Bob Jones",
		PatientEmail: "bob@example.com",
	}, false))

	rec := a.do(t, "GET", "/bookings/"+created.ID.String(), nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	fetched := decode[BookingResponse](t, rec)
	if fetched.ID != created.ID {
		t.Errorf("id = %s, want %s", fetched.ID, created.ID)
	}

	missing := a.do(t, "GET", "/bookings/"+uuid.NewString(), nil, false)
	if missing.Code != http.StatusNotFound {
		t.Errorf("missing status = %d, want 404", missing.Code)
	}
}

func TestCancelEndpointRejectsSecondCancel(t *testing.T) {
	a := newTestAPI(t)

	created := decode[BookingResponse](t, a.do(t, "POST", "/bookings", CreateBookingRequest{
		SlotID:       a.slot.ID.String(),
		PatientName:  "Bob Jones",
		PatientEmail: "bob@example.com",
	}, false))

	first := a.do(t, "PATCH", fmt.Sprintf("/bookings/%s/cancel", created.ID), nil, false)
	if first.Code != http.StatusOK {
		t.Fatalf("first cancel status = %d, want 200", first.Code)
	}

	second := a.do(t, "PATCH", fmt.Sprintf("/bookings/%s/cancel", created.ID), nil, false)
	if second.Code != http.StatusBadRequest {
		t.Errorf("second cancel status = %d, want 400", second.Code)
	}
	errResp := decode[ErrorResponse](t, second)
	if errResp.Error != "already_cancelled" {
		t.Errorf("error code = %q, want already_cancelled", errResp.Error)
	}
}

func TestSweepEndpointRequiresAdmin(t *testing.T) {
	a := newTestAPI(t)

	anon := a.do(t, "POST", "/bookings/expire-pending", nil, false)
	if anon.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", anon.Code)
	}

	admin := a.do(t, "POST", "/bookings/expire-pending", nil, true)
	if admin.Code != http.StatusOK {
		t.Fatalf("admin status = %d, want 200 (%s)", admin.Code, admin.Body.String())
	}

	resp := decode[SweepResponse](t, admin)
	if resp.Count != 0 {
		t.Errorf("count = %d, want 0", resp.Count)
	}
}

func TestSweepEndpointThresholdOverride(t *testing.T) {
	a := newTestAPI(t)

	bad := a.do(t, "POST", "/bookings/expire-pending", SweepRequest{Threshold: "soon"}, true)
	if bad.Code != http.StatusBadRequest {
		t.Errorf("bad threshold status = %d, want 400", bad.Code)
	}

	ok := a.do(t, "POST", "/bookings/expire-pending", SweepRequest{Threshold: "5m"}, true)
	if ok.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", ok.Code)
	}
}

func TestCreateDoctorEndpoint(t *testing.T) {
	a := newTestAPI(t)

	req := CreateDoctorRequest{
		Name:           "Ben Ortiz",
		Specialization: "Dermatology",
		Email:          "ben@clinic.test",
	}

	anon := a.do(t, "POST", "/doctors", req, false)
	if anon.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", anon.Code)
	}

	created := a.do(t, "POST", "/doctors", req, true)
	if created.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", created.Code, created.Body.String())
	}

	dup := a.do(t, "POST", "/doctors", req, true)
	if dup.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", dup.Code)
	}
}

func TestListSlotsEndpoint(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, "GET", "/slots", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	resp := decode[SlotListResponse](t, rec)
	if len(resp.Slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(resp.Slots))
	}
	if resp.Slots[0].DoctorName != a.doctor.Name {
		t.Errorf("doctor_name = %q, want %q", resp.Slots[0].DoctorName, a.doctor.Name)
	}

	// Reserving the only slot empties the open listing.
	if rec := a.do(t, "POST", "/bookings", CreateBookingRequest{
		SlotID:       a.slot.ID.String(),
		PatientName:  "Bob Jones",
		PatientEmail: "bob@example.com",
	}, false); rec.Code != http.StatusCreated {
		t.Fatalf("reserve status = %d, want 201", rec.Code)
	}

	after := decode[SlotListResponse](t, a.do(t, "GET", "/slots", nil, false))
	if len(after.Slots) != 0 {
		t.Errorf("slots after reserve = %d, want 0", len(after.Slots))
	}
}

func TestBulkSlotsEndpoint(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, "POST", "/slots/bulk", BulkSlotsRequest{
		DoctorID:        a.doctor.ID.String(),
		StartDate:       "2030-06-03",
		EndDate:         "2030-06-04",
		StartTime:       "09:00",
		EndTime:         "10:00",
		DurationMinutes: 30,
	}, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}

	resp := decode[BulkSlotsResponse](t, rec)
	if resp.Count != 4 {
		t.Errorf("count = %d, want 4", resp.Count)
	}
}

func TestListBookingsEndpointStatusFilter(t *testing.T) {
	a := newTestAPI(t)

	if rec := a.do(t, "POST", "/bookings", CreateBookingRequest{
		SlotID:       a.slot.ID.String(),
		PatientName:  "Bob Jones",
		PatientEmail: "bob@example.com",
	}, false); rec.Code != http.StatusCreated {
		t.Fatalf("reserve status = %d, want 201", rec.Code)
	}

	bad := a.do(t, "GET", "/bookings?status=nonsense", nil, false)
	if bad.Code != http.StatusBadRequest {
		t.Errorf("bad status filter = %d, want 400", bad.Code)
	}

	rec := a.do(t, "GET", "/bookings?status=CONFIRMED&patient_email=bob@example.com", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decode[BookingListResponse](t, rec)
	if len(resp.Bookings) != 1 {
		t.Errorf("bookings = %d, want 1", len(resp.Bookings))
	}

	empty := decode[BookingListResponse](t, a.do(t, "GET", "/bookings?status=CANCELLED", nil, false))
	if len(empty.Bookings) != 0 {
		t.Errorf("cancelled bookings = %d, want 0", len(empty.Bookings))
	}
}
