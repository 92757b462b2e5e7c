package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/careslot/booking-platform/internal/booking"
)

type CreateBookingRequest struct {
	SlotID       string  `json:"slot_id"`
	PatientName  string  `json:"patient_name"`
	PatientEmail string  `json:"patient_email"`
	PatientPhone *string `json:"patient_phone,omitempty"`
}

type BookingResponse struct {
	ID              uuid.UUID  `json:"id"`
	SlotID          uuid.UUID  `json:"slot_id"`
	PatientName     string     `json:"patient_name"`
	PatientEmail    string     `json:"patient_email"`
	PatientPhone    *string    `json:"patient_phone,omitempty"`
	Status          string     `json:"status"`
	BookingTime     time.Time  `json:"booking_time"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	SlotTime        time.Time  `json:"slot_time"`
	DurationMinutes int        `json:"duration_minutes"`
	DoctorID        uuid.UUID  `json:"doctor_id"`
	DoctorName      string     `json:"doctor_name"`
	Specialization  string     `json:"specialization"`
}

func toBookingResponse(d *booking.BookingDetail) BookingResponse {
	return BookingResponse{
		ID:              d.ID,
		SlotID:          d.SlotID,
		PatientName:     d.PatientName,
		PatientEmail:    d.PatientEmail,
		PatientPhone:    d.PatientPhone,
		Status:          string(d.Status),
		BookingTime:     d.BookingTime,
		ConfirmedAt:     d.ConfirmedAt,
		SlotTime:        d.SlotTime,
		DurationMinutes: d.DurationMinutes,
		DoctorID:        d.DoctorID,
		DoctorName:      d.DoctorName,
		Specialization:  d.Specialization,
	}
}

type BookingListResponse struct {
	Bookings []BookingResponse `json:"bookings"`
}

type CancelResponse struct {
	Message string `json:"message"`
}

type SweepRequest struct {
	Threshold string `json:"threshold,omitempty"` // Go duration string, e.g. "2m"
}

type SweepResponse struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

type CreateDoctorRequest struct {
	Name            string  `json:"name"`
	Specialization  string  `json:"specialization"`
	Email           string  `json:"email"`
	Phone           *string `json:"phone,omitempty"`
	ExperienceYears int     `json:"experience_years"`
}

type DoctorResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Specialization  string    `json:"specialization"`
	Email           string    `json:"email"`
	Phone           *string   `json:"phone,omitempty"`
	ExperienceYears int       `json:"experience_years"`
}

func toDoctorResponse(d *booking.Doctor) DoctorResponse {
	return DoctorResponse{
		ID:              d.ID,
		Name:            d.Name,
		Specialization:  d.Specialization,
		Email:           d.Email,
		Phone:           d.Phone,
		ExperienceYears: d.ExperienceYears,
	}
}

type DoctorListResponse struct {
	Doctors []DoctorResponse `json:"doctors"`
}

type CreateSlotRequest struct {
	DoctorID        string    `json:"doctor_id"`
	SlotTime        time.Time `json:"slot_time"`
	DurationMinutes int       `json:"duration_minutes,omitempty"`
}

type SlotResponse struct {
	ID              uuid.UUID `json:"id"`
	DoctorID        uuid.UUID `json:"doctor_id"`
	SlotTime        time.Time `json:"slot_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Reserved        bool      `json:"reserved"`
	DoctorName      string    `json:"doctor_name,omitempty"`
	Specialization  string    `json:"specialization,omitempty"`
}

type SlotListResponse struct {
	Slots []SlotResponse `json:"slots"`
}

type BulkSlotsRequest struct {
	DoctorID        string `json:"doctor_id"`
	StartDate       string `json:"start_date"` // "2006-01-02"
	EndDate         string `json:"end_date"`
	StartTime       string `json:"start_time"` // "HH:MM"
	EndTime         string `json:"end_time"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	ExcludeWeekends *bool  `json:"exclude_weekends,omitempty"` // default true
}

type BulkSlotsResponse struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
