package service

import (
	"context"
	"errors"
	"time"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/logger"
	"gearbox-rental-backend/internal/repository"
)

type availabilityService struct {
	store   repository.Store
	overlap OverlapCalculator
}

func NewAvailabilityService(store repository.Store) AvailabilityService {
	return &availabilityService{store: store}
}

func (s *availabilityService) CheckAvailability(ctx context.Context, pickup, ret time.Time, equipmentIDs []string) (map[string]bool, error) {
	logger.EnterMethod("availabilityService.CheckAvailability", "pickup", pickup, "return", ret, "equipmentIDs", equipmentIDs)

	interval, err := domain.NewInterval(pickup, ret)
	if err != nil {
		return nil, err
	}
	if len(equipmentIDs) == 0 {
		return nil, domain.NewValidationError("equipment_ids", "at least one id is required")
	}

	booked, err := s.overlap.BookedQuantities(ctx, s.store, interval, equipmentIDs, "")
	if err != nil {
		logger.ExitMethodWithError("availabilityService.CheckAvailability", err)
		return nil, err
	}

	result := make(map[string]bool, len(equipmentIDs))
	for _, id := range equipmentIDs {
		e, err := s.store.Equipment().GetByID(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			result[id] = false
			continue
		}
		if err != nil {
			logger.ExitMethodWithError("availabilityService.CheckAvailability", err)
			return nil, err
		}
		result[id] = e.Offerable() && e.Quantity-booked[id] > 0
	}

	logger.ExitMethod("availabilityService.CheckAvailability", "result", result)
	return result, nil
}

func (s *availabilityService) InventorySnapshot(ctx context.Context, date time.Time) (map[string]domain.InventoryLine, error) {
	if date.IsZero() {
		return nil, domain.NewValidationError("date", "is required")
	}
	equipment, err := s.store.Equipment().ListActive(ctx)
	if err != nil {
		return nil, err
	}
	booked, err := s.overlap.BookedQuantities(ctx, s.store, domain.Day(date), nil, "")
	if err != nil {
		return nil, err
	}

	snapshot := make(map[string]domain.InventoryLine, len(equipment))
	for _, e := range equipment {
		line := domain.InventoryLine{Total: e.Quantity, Booked: booked[e.ID]}
		line.Available = max(0, line.Total-line.Booked)
		snapshot[e.ID] = line
	}
	return snapshot, nil
}

func (s *availabilityService) BookedQuantity(ctx context.Context, equipmentID string, interval domain.Interval) (int, error) {
	booked, err := s.overlap.BookedQuantities(ctx, s.store, interval, []string{equipmentID}, "")
	if err != nil {
		return 0, err
	}
	return booked[equipmentID], nil
}
