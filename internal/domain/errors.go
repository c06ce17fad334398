package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrOversold           = errors.New("equipment oversold")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInspectionRequired = fmt.Errorf("%w: inspection must be completed before refund", ErrInvalidTransition)
	ErrAlreadyRefunded    = errors.New("deposit already refunded")
	ErrArchivalFailure    = errors.New("archival failed")
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrUnauthorized       = errors.New("unauthorized")
)

type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Shortfall describes one equipment id that cannot absorb a confirmation.
type Shortfall struct {
	EquipmentID string `json:"equipment_id"`
	Capacity    int    `json:"capacity"`
	Booked      int    `json:"booked"`
	Requested   int    `json:"requested"`
}

type OversoldError struct {
	BookingID  string
	Shortfalls []Shortfall
}

func (e *OversoldError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("%s (capacity %d, booked %d, requested %d)", s.EquipmentID, s.Capacity, s.Booked, s.Requested))
	}
	return fmt.Sprintf("equipment oversold for booking %s: %s", e.BookingID, strings.Join(parts, "; "))
}

func (e *OversoldError) Is(target error) bool {
	return target == ErrOversold
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}
