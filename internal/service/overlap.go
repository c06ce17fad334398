package service

import (
	"context"
	"fmt"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/repository"
)

// OverlapCalculator sums the units held against equipment by bookings in a
// holding status whose range intersects a query interval. It reads through
// whatever Store it is handed, so inside a transaction it sees that
// transaction's view.
type OverlapCalculator struct{}

// BookedQuantities returns held units per equipment id. A nil equipmentIDs
// counts every id. excludeBookingID, when set, is left out of the sum.
func (OverlapCalculator) BookedQuantities(ctx context.Context, store repository.Store, interval domain.Interval, equipmentIDs []string, excludeBookingID string) (map[string]int, error) {
	bookings, err := store.Bookings().ListByStatus(ctx, domain.HoldingStatuses, interval)
	if err != nil {
		return nil, fmt.Errorf("list holding bookings: %w", err)
	}

	var packageIDs []string
	seen := make(map[string]bool)
	for _, b := range bookings {
		if b.PackageID != nil && !seen[*b.PackageID] {
			seen[*b.PackageID] = true
			packageIDs = append(packageIDs, *b.PackageID)
		}
	}
	packages, err := store.Packages().GetByIDs(ctx, packageIDs)
	if err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}

	return tallyHolds(bookings, packages, interval, equipmentIDs, excludeBookingID), nil
}

// tallyHolds adds explicit item quantities and one unit per package
// keyEquipment occurrence for every holding booking overlapping interval.
func tallyHolds(bookings []domain.Booking, packages map[string]domain.Package, interval domain.Interval, equipmentIDs []string, excludeBookingID string) map[string]int {
	var wanted map[string]bool
	if equipmentIDs != nil {
		wanted = make(map[string]bool, len(equipmentIDs))
		for _, id := range equipmentIDs {
			wanted[id] = true
		}
	}

	booked := make(map[string]int)
	add := func(id string, n int) {
		if wanted == nil || wanted[id] {
			booked[id] += n
		}
	}
	for _, b := range bookings {
		if b.ID == excludeBookingID && excludeBookingID != "" {
			continue
		}
		if !b.Status.Holding() || !b.Interval().Overlaps(interval) {
			continue
		}
		for id, n := range b.EquipmentUnits() {
			add(id, n)
		}
		if b.PackageID != nil {
			pkg := packages[*b.PackageID]
			for id, n := range pkg.UnitsByEquipment() {
				add(id, n)
			}
		}
	}
	for id := range wanted {
		if _, ok := booked[id]; !ok {
			booked[id] = 0
		}
	}
	return booked
}
