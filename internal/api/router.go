package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/careslot/booking-platform/internal/booking"
)

type RouterConfig struct {
	Service        *booking.Service
	Catalog        *booking.Catalog
	PgPool         *pgxpool.Pool
	Redis          *redis.Client
	AdminToken     string
	SweepThreshold time.Duration
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	adminOnly := AdminOnlyMiddleware(cfg.AdminToken)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Doctor catalog
	r.Get("/doctors", listDoctorsHandler(cfg.Catalog))
	r.Get("/doctors/{id}", getDoctorHandler(cfg.Catalog))
	r.With(adminOnly).Post("/doctors", createDoctorHandler(cfg.Catalog))

	// Slot catalog
	r.Get("/slots", listSlotsHandler(cfg.Catalog))
	r.With(adminOnly).Post("/slots", createSlotHandler(cfg.Catalog))
	r.With(adminOnly).Post("/slots/bulk", bulkSlotsHandler(cfg.Catalog))

	// Booking lifecycle
	r.Post("/bookings", createBookingHandler(cfg.Service))
	r.Get("/bookings", listBookingsHandler(cfg.Service))
	r.Get("/bookings/{id}", getBookingHandler(cfg.Service))
	r.Patch("/bookings/{id}/cancel", cancelBookingHandler(cfg.Service))
	r.With(adminOnly).Post("/bookings/expire-pending", sweepExpiredHandler(cfg.Service, cfg.SweepThreshold))

	return r
}
