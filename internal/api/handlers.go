package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careslot/booking-platform/internal/booking"
)

func createBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}
		if req.PatientName == "" {
			writeError(w, http.StatusBadRequest, "missing_patient_name", "patient_name is required")
			return
		}
		if req.PatientEmail == "" {
			writeError(w, http.StatusBadRequest, "missing_patient_email", "patient_email is required")
			return
		}

		detail, err := svc.Reserve(r.Context(), booking.NewBooking{
			SlotID:       slotID,
			PatientName:  req.PatientName,
			PatientEmail: req.PatientEmail,
			PatientPhone: req.PatientPhone,
		})
		if err != nil {
			handleReserveError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toBookingResponse(detail))
	}
}

func getBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.GetBooking(r.Context(), id)
		if err != nil {
			if errors.Is(err, booking.ErrBookingNotFound) {
				writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to fetch booking")
			return
		}

		writeJSON(w, http.StatusOK, toBookingResponse(detail))
	}
}

func listBookingsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := booking.BookingFilter{
			PatientEmail: r.URL.Query().Get("patient_email"),
		}

		if status := r.URL.Query().Get("status"); status != "" {
			bs := booking.BookingStatus(status)
			if !bs.Valid() {
				writeError(w, http.StatusBadRequest, "invalid_status", "status must be one of PENDING, CONFIRMED, FAILED, CANCELLED")
				return
			}
			f.Status = bs
		}

		details, err := svc.ListBookings(r.Context(), f)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to fetch bookings")
			return
		}

		resp := BookingListResponse{Bookings: make([]BookingResponse, 0, len(details))}
		for i := range details {
			resp.Bookings = append(resp.Bookings, toBookingResponse(&details[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func cancelBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_booking_id", "id must be a valid UUID")
			return
		}

		if err := svc.Cancel(r.Context(), id); err != nil {
			handleCancelError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, CancelResponse{Message: "booking cancelled successfully"})
	}
}

func sweepExpiredHandler(svc *booking.Service, defaultThreshold time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		threshold := defaultThreshold

		if r.Body != nil && r.ContentLength != 0 {
			var req SweepRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
				return
			}
			if req.Threshold != "" {
				d, err := time.ParseDuration(req.Threshold)
				if err != nil || d <= 0 {
					writeError(w, http.StatusBadRequest, "invalid_threshold", "threshold must be a positive duration like \"2m\"")
					return
				}
				threshold = d
			}
		}

		count, err := svc.SweepExpired(r.Context(), threshold)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to expire bookings")
			return
		}

		msg := "no expired bookings found"
		if count > 0 {
			msg = "expired pending bookings reclaimed"
		}
		writeJSON(w, http.StatusOK, SweepResponse{Count: count, Message: msg})
	}
}

func handleReserveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotAlreadyReserved):
		writeError(w, http.StatusConflict, "slot_already_reserved", err.Error())
	case errors.Is(err, booking.ErrVersionConflict):
		writeError(w, http.StatusConflict, "slot_conflict", "slot was modified by another request, please retry")
	case errors.Is(err, booking.ErrSlotInPast):
		writeError(w, http.StatusBadRequest, "slot_in_past", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "booking failed")
	}
}

func handleCancelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrBookingNotFound):
		writeError(w, http.StatusNotFound, "booking_not_found", err.Error())
	case errors.Is(err, booking.ErrAlreadyCancelled):
		writeError(w, http.StatusBadRequest, "already_cancelled", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusBadRequest, "invalid_status_transition", "only confirmed bookings can be cancelled")
	case errors.Is(err, booking.ErrVersionConflict):
		writeError(w, http.StatusConflict, "booking_conflict", "booking was modified by another request, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "cancellation failed")
	}
}
