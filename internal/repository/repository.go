package repository

import (
	"context"
	"time"

	"gearbox-rental-backend/internal/domain"
)

// Lookups that miss return an error wrapping domain.ErrNotFound.

type EquipmentRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Equipment, error)
	ListActive(ctx context.Context) ([]domain.Equipment, error)
	// LockByIDs loads the rows in id order and holds a row lock on each until
	// the surrounding transaction ends. Missing ids are absent from the map.
	LockByIDs(ctx context.Context, ids []string) (map[string]domain.Equipment, error)
	UpdateStatus(ctx context.Context, id string, status domain.EquipmentStatus) error
}

type PackageRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Package, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Package, error)
}

type AddOnRepository interface {
	GetByID(ctx context.Context, id string) (*domain.AddOn, error)
}

type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	// GetOrCreate looks the customer up by email and inserts it when absent.
	// On return c.ID is set.
	GetOrCreate(ctx context.Context, c *domain.Customer) error
}

type BookingRepository interface {
	// Create inserts the booking and its items.
	Create(ctx context.Context, b *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	// GetForUpdate is GetByID with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) error
	SetInspectionCompleted(ctx context.Context, id string) error
	SetDepositRefunded(ctx context.Context, id string) error
	SetLateFee(ctx context.Context, id string, cents int64) error
	// Delete removes the booking; items and inspection cascade.
	Delete(ctx context.Context, id string) error
	// ListByStatus returns bookings in any of the statuses whose range
	// intersects window, items included, ordered by pickup date.
	ListByStatus(ctx context.Context, statuses []domain.BookingStatus, window domain.Interval) ([]domain.Booking, error)
	// ListOverdue returns Active bookings whose return date is before now.
	ListOverdue(ctx context.Context, now time.Time) ([]domain.Booking, error)
}

type InspectionRepository interface {
	// Upsert creates or replaces the checklist keyed by booking id.
	Upsert(ctx context.Context, c *domain.InspectionChecklist) error
	GetByBookingID(ctx context.Context, bookingID string) (*domain.InspectionChecklist, error)
}

type PastBookingRepository interface {
	Create(ctx context.Context, pb *domain.PastBooking) error
	GetByID(ctx context.Context, id string) (*domain.PastBooking, error)
	List(ctx context.Context, filter domain.PastBookingFilter) ([]domain.PastBooking, int, error)
}

type MaintenanceRepository interface {
	Create(ctx context.Context, log *domain.MaintenanceLog) error
	List(ctx context.Context, equipmentID string) ([]domain.MaintenanceLog, error)
}

// Store groups the repositories bound to one connection or transaction.
type Store interface {
	Equipment() EquipmentRepository
	Packages() PackageRepository
	AddOns() AddOnRepository
	Customers() CustomerRepository
	Bookings() BookingRepository
	Inspections() InspectionRepository
	PastBookings() PastBookingRepository
	Maintenance() MaintenanceRepository

	// WithTx runs fn in a single transaction and commits when fn returns nil.
	// Called on a Store that is already transactional, fn joins that transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
