package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/logger"
	"gearbox-rental-backend/internal/repository"
)

// Archiver moves a terminated booking into past_bookings. It must run inside
// the caller's transaction: the snapshot insert and the booking delete commit
// together or not at all.
type Archiver struct {
	now Clock
}

func NewArchiver(now Clock) *Archiver {
	return &Archiver{now: now}
}

// Archive snapshots b with the catalog names it currently resolves to, then
// deletes it. Items and the inspection go with it by cascade. Any failure is
// reported as domain.ErrArchivalFailure.
func (a *Archiver) Archive(ctx context.Context, tx repository.Store, b *domain.Booking, action domain.ArchiveAction, actor, reason string) (*domain.PastBooking, error) {
	if !action.Valid() {
		return nil, domain.NewValidationError("action", "unknown archive action "+string(action))
	}

	pb, err := a.snapshot(ctx, tx, b, action, actor, reason)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot booking %s: %w", domain.ErrArchivalFailure, b.ID, err)
	}
	if err := tx.PastBookings().Create(ctx, pb); err != nil {
		return nil, fmt.Errorf("%w: insert past booking: %w", domain.ErrArchivalFailure, err)
	}
	if err := tx.Bookings().Delete(ctx, b.ID); err != nil {
		return nil, fmt.Errorf("%w: delete booking %s: %w", domain.ErrArchivalFailure, b.ID, err)
	}

	logger.WithBooking(b.ID).Info("Booking archived", "action", action, "actor", actor, "pastBookingID", pb.ID)
	return pb, nil
}

func (a *Archiver) snapshot(ctx context.Context, tx repository.Store, b *domain.Booking, action domain.ArchiveAction, actor, reason string) (*domain.PastBooking, error) {
	pb := &domain.PastBooking{
		ID:                  uuid.NewString(),
		OriginalBookingID:   b.ID,
		CustomerID:          b.CustomerID,
		PickupDate:          b.PickupDate,
		ReturnDate:          b.ReturnDate,
		TotalPriceCents:     b.TotalPriceCents,
		DepositCents:        b.DepositCents,
		LateFeeCents:        b.LateFeeCents,
		DeliveryOption:      b.DeliveryOption,
		OriginalStatus:      b.Status,
		Action:              action,
		ActionBy:            actor,
		ActionReason:        reason,
		InspectionCompleted: b.InspectionCompleted,
		DepositRefunded:     b.DepositRefunded,
		BookedAt:            b.CreatedAt,
		ArchivedAt:          a.now(),
	}

	customer, err := tx.Customers().GetByID(ctx, b.CustomerID)
	switch {
	case err == nil:
		pb.CustomerName = customer.Name
		pb.CustomerEmail = customer.Email
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	if b.PackageID != nil {
		id := *b.PackageID
		pb.PackageID = &id
		pkg, err := tx.Packages().GetByID(ctx, id)
		switch {
		case err == nil:
			pb.PackageName = pkg.Name
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		}
	}

	for _, it := range b.Items {
		item := domain.PastBookingItem{
			ID:            uuid.NewString(),
			PastBookingID: pb.ID,
			Quantity:      it.Quantity,
		}
		if it.Ref.IsEquipment() {
			item.EquipmentID, item.EquipmentName = it.Ref.ID, it.Name
		} else {
			item.AddOnID, item.AddOnName = it.Ref.ID, it.Name
		}
		pb.Items = append(pb.Items, item)
	}
	return pb, nil
}
