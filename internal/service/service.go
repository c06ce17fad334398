package service

import (
	"context"
	"time"

	"gearbox-rental-backend/internal/domain"
)

type AvailabilityService interface {
	// CheckAvailability reports, per equipment id, whether at least one unit
	// is free for the whole range. Unknown or inactive ids report false.
	CheckAvailability(ctx context.Context, pickup, ret time.Time, equipmentIDs []string) (map[string]bool, error)
	InventorySnapshot(ctx context.Context, date time.Time) (map[string]domain.InventoryLine, error)
	BookedQuantity(ctx context.Context, equipmentID string, interval domain.Interval) (int, error)
}

type BookingService interface {
	Create(ctx context.Context, req *domain.NewBookingRequest) (*domain.Booking, error)
	Confirm(ctx context.Context, bookingID string) (*domain.Booking, error)
	Activate(ctx context.Context, bookingID string) (*domain.Booking, error)
	Complete(ctx context.Context, bookingID string) (*domain.Booking, error)
	Reject(ctx context.Context, bookingID, actor, reason string) (*domain.PastBooking, error)
	Delete(ctx context.Context, bookingID, actor, reason string) (*domain.PastBooking, error)
	SubmitInspection(ctx context.Context, bookingID, actor string, in domain.InspectionInput) (*domain.InspectionChecklist, error)
	RefundDeposit(ctx context.Context, bookingID string) (*domain.Booking, error)
	AssessLateFee(ctx context.Context, bookingID string, returnedAt time.Time) (*domain.Booking, error)
	// AccrueLateFees reprices every overdue Active booking and returns how
	// many fees changed.
	AccrueLateFees(ctx context.Context) (int, error)
	GetBooking(ctx context.Context, bookingID string) (*domain.BookingDetail, error)
}

type BackOfficeService interface {
	ListCalendar(ctx context.Context, from, to time.Time) ([]domain.CalendarEntry, error)
	ListPastBookings(ctx context.Context, filter domain.PastBookingFilter) ([]domain.PastBooking, int, error)
	RecordMaintenance(ctx context.Context, equipmentID string, status domain.EquipmentStatus, notes, repairedBy string) (*domain.MaintenanceLog, error)
	ListMaintenance(ctx context.Context, equipmentID string) ([]domain.MaintenanceLog, error)
}

// Notifier emails customers about admin decisions. Delivery is best effort.
type Notifier interface {
	BookingConfirmed(ctx context.Context, customer *domain.Customer, b *domain.Booking) error
	BookingRejected(ctx context.Context, pb *domain.PastBooking) error
	DepositRefunded(ctx context.Context, customer *domain.Customer, b *domain.Booking) error
}

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time
