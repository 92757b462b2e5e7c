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

func listDoctorsHandler(cat *booking.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctors, err := cat.ListDoctors(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to fetch doctors")
			return
		}

		resp := DoctorListResponse{Doctors: make([]DoctorResponse, 0, len(doctors))}
		for i := range doctors {
			resp.Doctors = append(resp.Doctors, toDoctorResponse(&doctors[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getDoctorHandler(cat *booking.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		doctor, err := cat.GetDoctor(r.Context(), id)
		if err != nil {
			if errors.Is(err, booking.ErrDoctorNotFound) {
				writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to fetch doctor")
			return
		}

		writeJSON(w, http.StatusOK, toDoctorResponse(doctor))
	}
}

func createDoctorHandler(cat *booking.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDoctorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Name == "" || req.Specialization == "" || req.Email == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "name, specialization and email are required")
			return
		}

		created, err := cat.CreateDoctor(r.Context(), booking.Doctor{
			Name:            req.Name,
			Specialization:  req.Specialization,
			Email:           req.Email,
			Phone:           req.Phone,
			ExperienceYears: req.ExperienceYears,
		})
		if err != nil {
			if errors.Is(err, booking.ErrDuplicateDoctor) {
				writeError(w, http.StatusConflict, "duplicate_doctor", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to create doctor")
			return
		}

		writeJSON(w, http.StatusCreated, toDoctorResponse(created))
	}
}

func listSlotsHandler(cat *booking.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f booking.SlotFilter

		if raw := r.URL.Query().Get("doctor_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			f.DoctorID = id
		}
		if raw := r.URL.Query().Get("date"); raw != "" {
			date, err := time.Parse("2006-01-02", raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must look like 2006-01-02")
				return
			}
			f.Date = date
		}

		slots, err := cat.ListOpenSlots(r.Context(), f)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to fetch slots")
			return
		}

		resp := SlotListResponse{Slots: make([]SlotResponse, 0, len(slots))}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{
				ID:              s.ID,
				DoctorID:        s.DoctorID,
				SlotTime:        s.SlotTime,
				DurationMinutes: s.DurationMinutes,
				Reserved:        s.Reserved,
				DoctorName:      s.DoctorName,
				Specialization:  s.Specialization,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func createSlotHandler(cat *booking.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		if req.SlotTime.IsZero() {
			writeError(w, http.StatusBadRequest, "missing_slot_time", "slot_time is required")
			return
		}

		created, err := cat.CreateSlot(r.Context(), doctorID, req.SlotTime, req.DurationMinutes)
		if err != nil {
			handleCreateSlotError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, SlotResponse{
			ID:              created.ID,
			DoctorID:        created.DoctorID,
			SlotTime:        created.SlotTime,
			DurationMinutes: created.DurationMinutes,
			Reserved:        created.Reserved,
		})
	}
}

func bulkSlotsHandler(cat *booking.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BulkSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		startDate, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_date", "start_date must look like 2006-01-02")
			return
		}
		endDate, err := time.Parse("2006-01-02", req.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_end_date", "end_date must look like 2006-01-02")
			return
		}

		excludeWeekends := true
		if req.ExcludeWeekends != nil {
			excludeWeekends = *req.ExcludeWeekends
		}

		count, err := cat.GenerateSlots(r.Context(), booking.SlotGeneration{
			DoctorID:        doctorID,
			StartDate:       startDate,
			EndDate:         endDate,
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
			DurationMinutes: req.DurationMinutes,
			ExcludeWeekends: excludeWeekends,
		})
		if err != nil {
			handleCreateSlotError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, BulkSlotsResponse{
			Count:   count,
			Message: "appointment slots created",
		})
	}
}

func handleCreateSlotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrDuplicateSlot):
		writeError(w, http.StatusConflict, "duplicate_slot", err.Error())
	case errors.Is(err, booking.ErrBadDateRange), errors.Is(err, booking.ErrBadTimeWindow):
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create slots")
	}
}
