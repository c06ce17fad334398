package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/logger"
	"gearbox-rental-backend/internal/repository"
)

type backOfficeService struct {
	store repository.Store
	now   Clock
}

func NewBackOfficeService(store repository.Store, now Clock) BackOfficeService {
	if now == nil {
		now = time.Now
	}
	return &backOfficeService{store: store, now: now}
}

// ListCalendar projects Confirmed, Active and Completed bookings that touch
// [from, to] onto calendar entries, earliest pickup first.
func (s *backOfficeService) ListCalendar(ctx context.Context, from, to time.Time) ([]domain.CalendarEntry, error) {
	window, err := domain.NewInterval(from, to)
	if err != nil {
		return nil, err
	}
	bookings, err := s.store.Bookings().ListByStatus(ctx, domain.CalendarStatuses, window)
	if err != nil {
		return nil, fmt.Errorf("list calendar bookings: %w", err)
	}

	var packageIDs []string
	for _, b := range bookings {
		if b.PackageID != nil {
			packageIDs = append(packageIDs, *b.PackageID)
		}
	}
	packages, err := s.store.Packages().GetByIDs(ctx, packageIDs)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.CalendarEntry, 0, len(bookings))
	for _, b := range bookings {
		entry := domain.CalendarEntry{
			BookingID:  b.ID,
			Status:     b.Status,
			PickupDate: b.PickupDate,
			ReturnDate: b.ReturnDate,
			PackageID:  b.PackageID,
			Items:      b.Items,
		}
		if b.PackageID != nil {
			entry.PackageName = packages[*b.PackageID].Name
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *backOfficeService) ListPastBookings(ctx context.Context, filter domain.PastBookingFilter) ([]domain.PastBooking, int, error) {
	if filter.Action != "" && !filter.Action.Valid() {
		return nil, 0, domain.NewValidationError("action", "must be deleted or rejected")
	}
	if filter.Limit > 200 {
		filter.Limit = 200
	}
	filter.Normalize()
	return s.store.PastBookings().List(ctx, filter)
}

// RecordMaintenance logs a repair note and, when status is set, moves the
// equipment to that status in the same transaction. Quantity is never touched.
func (s *backOfficeService) RecordMaintenance(ctx context.Context, equipmentID string, status domain.EquipmentStatus, notes, repairedBy string) (*domain.MaintenanceLog, error) {
	if equipmentID == "" {
		return nil, domain.NewValidationError("equipment_id", "is required")
	}
	if status != "" && !status.Valid() {
		return nil, domain.NewValidationError("status", "unknown equipment status "+string(status))
	}

	entry := &domain.MaintenanceLog{
		ID:          uuid.NewString(),
		EquipmentID: equipmentID,
		Status:      status,
		Notes:       notes,
		RepairedBy:  repairedBy,
		Date:        s.now(),
	}
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Equipment().GetByID(ctx, equipmentID); err != nil {
			return err
		}
		if err := tx.Maintenance().Create(ctx, entry); err != nil {
			return err
		}
		if status != "" {
			return tx.Equipment().UpdateStatus(ctx, equipmentID, status)
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to record maintenance", "equipmentID", equipmentID, "error", err)
		return nil, err
	}
	logger.Info("Maintenance recorded", "equipmentID", equipmentID, "status", status, "repairedBy", repairedBy)
	return entry, nil
}

// ListMaintenance returns the log newest first; an empty id lists every item.
func (s *backOfficeService) ListMaintenance(ctx context.Context, equipmentID string) ([]domain.MaintenanceLog, error) {
	return s.store.Maintenance().List(ctx, equipmentID)
}
