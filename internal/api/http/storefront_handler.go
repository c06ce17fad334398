package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/logger"
	"gearbox-rental-backend/internal/service"
	"gearbox-rental-backend/internal/utils"
)

const maxBodyBytes = 1 << 20

// HealthChecker reports whether the backing store answers.
type HealthChecker func(ctx context.Context) error

// StorefrontHandler serves the public booking wizard.
type StorefrontHandler struct {
	availability service.AvailabilityService
	bookings     service.BookingService
	health       HealthChecker
}

func NewStorefrontHandler(availability service.AvailabilityService, bookings service.BookingService, health HealthChecker) *StorefrontHandler {
	return &StorefrontHandler{availability: availability, bookings: bookings, health: health}
}

// RegisterStorefrontRoutes mounts the public routes on router.
func RegisterStorefrontRoutes(router *mux.Router, h *StorefrontHandler) {
	router.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/availability", h.HandleCheckAvailability).Methods(http.MethodPost)
	api.HandleFunc("/bookings", h.HandleCreateBooking).Methods(http.MethodPost)
}

type availabilityRequest struct {
	PickupDate   string   `json:"pickup_date"`
	ReturnDate   string   `json:"return_date"`
	EquipmentIDs []string `json:"equipment_ids"`
}

// HandleCheckAvailability answers, per equipment id, whether a unit is free
// for the requested dates.
func (h *StorefrontHandler) HandleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	var req availabilityRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	pickup, err := parseDate("pickup_date", req.PickupDate)
	if err != nil {
		writeError(w, err)
		return
	}
	ret, err := parseDate("return_date", req.ReturnDate)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.availability.CheckAvailability(r.Context(), pickup, ret, req.EquipmentIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"availability": result})
}

type createBookingRequest struct {
	PackageID       string          `json:"package_id"`
	EquipmentIDs    []string        `json:"equipment_ids"`
	AddOnIDs        []string        `json:"add_on_ids"`
	PickupDate      string          `json:"pickup_date"`
	ReturnDate      string          `json:"return_date"`
	TotalPriceCents int64           `json:"total_price_cents"`
	DepositCents    int64           `json:"deposit_cents"`
	DeliveryOption  string          `json:"delivery_option"`
	Customer        domain.Customer `json:"customer"`
}

// HandleCreateBooking records a Pending booking. Capacity is not reserved
// until an admin confirms it.
func (h *StorefrontHandler) HandleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	pickup, err := parseDate("pickup_date", req.PickupDate)
	if err != nil {
		writeError(w, err)
		return
	}
	ret, err := parseDate("return_date", req.ReturnDate)
	if err != nil {
		writeError(w, err)
		return
	}

	b, err := h.bookings.Create(r.Context(), &domain.NewBookingRequest{
		PackageID:       req.PackageID,
		EquipmentIDs:    req.EquipmentIDs,
		AddOnIDs:        req.AddOnIDs,
		PickupDate:      pickup,
		ReturnDate:      ret,
		TotalPriceCents: req.TotalPriceCents,
		DepositCents:    req.DepositCents,
		DeliveryOption:  domain.DeliveryOption(req.DeliveryOption),
		Customer:        req.Customer,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"booking_id": b.ID, "status": b.Status})
}

func (h *StorefrontHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			logger.Warn("Health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.NewValidationError("body", err.Error())
	}
	return nil
}

func parseDate(field, value string) (t time.Time, err error) {
	t, err = utils.ParseDate(value)
	if err != nil {
		return t, domain.NewValidationError(field, err.Error())
	}
	return t, nil
}

type errorBody struct {
	Code       string             `json:"code"`
	Message    string             `json:"message"`
	Shortfalls []domain.Shortfall `json:"shortfalls,omitempty"`
}

// writeError renders a domain failure with a stable machine-readable code.
func writeError(w http.ResponseWriter, err error) {
	status, body := http.StatusInternalServerError, errorBody{Code: "INTERNAL", Message: "internal error"}

	var oversold *domain.OversoldError
	switch {
	case errors.As(err, &oversold):
		status, body = http.StatusConflict, errorBody{Code: "OVERSOLD", Message: err.Error(), Shortfalls: oversold.Shortfalls}
	case errors.Is(err, domain.ErrValidation):
		status, body = http.StatusBadRequest, errorBody{Code: "VALIDATION", Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		status, body = http.StatusNotFound, errorBody{Code: "NOT_FOUND", Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidTransition):
		status, body = http.StatusConflict, errorBody{Code: "INVALID_TRANSITION", Message: err.Error()}
	case errors.Is(err, domain.ErrAlreadyRefunded):
		status, body = http.StatusConflict, errorBody{Code: "ALREADY_REFUNDED", Message: err.Error()}
	case errors.Is(err, domain.ErrArchivalFailure):
		status, body = http.StatusConflict, errorBody{Code: "ARCHIVAL_FAILURE", Message: err.Error()}
	case errors.Is(err, domain.ErrStoreUnavailable):
		status, body = http.StatusServiceUnavailable, errorBody{Code: "STORE_UNAVAILABLE", Message: err.Error()}
	default:
		logger.Error("Unhandled storefront error", "error", err)
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response", "error", err)
	}
}
