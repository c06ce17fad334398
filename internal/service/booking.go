package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/logger"
	"gearbox-rental-backend/internal/repository"
	"gearbox-rental-backend/internal/utils"
)

type bookingService struct {
	store    repository.Store
	overlap  OverlapCalculator
	archiver *Archiver
	notifier Notifier
	lateFees utils.LateFeePolicy
	now      Clock
}

func NewBookingService(store repository.Store, notifier Notifier, lateFees utils.LateFeePolicy, now Clock) BookingService {
	if now == nil {
		now = time.Now
	}
	return &bookingService{
		store:    store,
		archiver: NewArchiver(now),
		notifier: notifier,
		lateFees: lateFees,
		now:      now,
	}
}

func (s *bookingService) Create(ctx context.Context, req *domain.NewBookingRequest) (*domain.Booking, error) {
	logger.EnterMethod("bookingService.Create", "packageID", req.PackageID, "equipmentIDs", req.EquipmentIDs, "addOnIDs", req.AddOnIDs)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	delivery := req.DeliveryOption
	if delivery == "" {
		delivery = domain.DeliveryWarehousePickup
	}

	now := s.now()
	b := &domain.Booking{
		ID:              uuid.NewString(),
		PickupDate:      req.PickupDate,
		ReturnDate:      req.ReturnDate,
		TotalPriceCents: req.TotalPriceCents,
		DepositCents:    req.DepositCents,
		DeliveryOption:  delivery,
		Status:          domain.BookingStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		customer := &domain.Customer{
			ID:    uuid.NewString(),
			Name:  strings.TrimSpace(req.Customer.Name),
			Email: strings.ToLower(strings.TrimSpace(req.Customer.Email)),
			Phone: strings.TrimSpace(req.Customer.Phone),
		}
		if err := tx.Customers().GetOrCreate(ctx, customer); err != nil {
			return fmt.Errorf("upsert customer: %w", err)
		}
		b.CustomerID = customer.ID

		if req.PackageID != "" {
			if _, err := tx.Packages().GetByID(ctx, req.PackageID); err != nil {
				return err
			}
			id := req.PackageID
			b.PackageID = &id
		}

		b.Items = b.Items[:0]
		for _, ref := range aggregateRefs(req.EquipmentIDs, domain.EquipmentRef) {
			e, err := tx.Equipment().GetByID(ctx, ref.ref.ID)
			if err != nil {
				return err
			}
			b.Items = append(b.Items, domain.BookingItem{ID: uuid.NewString(), BookingID: b.ID, Ref: ref.ref, Quantity: ref.count, Name: e.Name})
		}
		for _, ref := range aggregateRefs(req.AddOnIDs, domain.AddOnRef) {
			a, err := tx.AddOns().GetByID(ctx, ref.ref.ID)
			if err != nil {
				return err
			}
			b.Items = append(b.Items, domain.BookingItem{ID: uuid.NewString(), BookingID: b.ID, Ref: ref.ref, Quantity: ref.count, Name: a.Name})
		}

		return tx.Bookings().Create(ctx, b)
	})
	if err != nil {
		logger.ExitMethodWithError("bookingService.Create", err)
		return nil, err
	}

	logger.WithBooking(b.ID).Info("Booking created", "customerID", b.CustomerID, "items", len(b.Items))
	logger.ExitMethod("bookingService.Create", "bookingID", b.ID)
	return b, nil
}

type countedRef struct {
	ref   domain.ItemRef
	count int
}

// aggregateRefs folds repeated ids into one reference with a count, keeping
// first-seen order.
func aggregateRefs(ids []string, mk func(string) domain.ItemRef) []countedRef {
	var out []countedRef
	index := make(map[string]int)
	for _, id := range ids {
		if i, ok := index[id]; ok {
			out[i].count++
			continue
		}
		index[id] = len(out)
		out = append(out, countedRef{ref: mk(id), count: 1})
	}
	return out
}

// Confirm moves a Pending booking to Confirmed. The capacity re-check and the
// status write share one transaction, and the implicated equipment rows are
// locked in id order before the re-check so concurrent confirms of the same
// equipment serialize.
func (s *bookingService) Confirm(ctx context.Context, bookingID string) (*domain.Booking, error) {
	logger.EnterMethod("bookingService.Confirm", "bookingID", bookingID)
	log := logger.WithBooking(bookingID)

	var confirmed *domain.Booking
	var changed bool
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		changed = false
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		switch b.Status {
		case domain.BookingStatusConfirmed:
			confirmed = b
			return nil
		case domain.BookingStatusPending:
		default:
			return fmt.Errorf("%w: cannot confirm a %s booking", domain.ErrInvalidTransition, b.Status)
		}

		demand, err := s.demand(ctx, tx, b)
		if err != nil {
			return err
		}
		if len(demand) > 0 {
			if err := s.checkCapacity(ctx, tx, b, demand); err != nil {
				return err
			}
		}

		if err := tx.Bookings().UpdateStatus(ctx, b.ID, domain.BookingStatusConfirmed); err != nil {
			return err
		}
		b.Status = domain.BookingStatusConfirmed
		confirmed = b
		changed = true
		return nil
	})
	if err != nil {
		s.logFailure(log, "Confirm", err)
		return nil, err
	}

	if changed {
		log.Info("Booking confirmed")
		s.notify(ctx, "confirmation", bookingID, func() error {
			customer, err := s.store.Customers().GetByID(ctx, confirmed.CustomerID)
			if err != nil {
				return err
			}
			return s.notifier.BookingConfirmed(ctx, customer, confirmed)
		})
	} else {
		log.Info("Booking already confirmed")
	}
	logger.ExitMethod("bookingService.Confirm", "bookingID", bookingID, "changed", changed)
	return confirmed, nil
}

// demand is the units per equipment id the booking would hold: explicit
// items plus one per package keyEquipment occurrence.
func (s *bookingService) demand(ctx context.Context, tx repository.Store, b *domain.Booking) (map[string]int, error) {
	units := b.EquipmentUnits()
	if b.PackageID != nil {
		pkg, err := tx.Packages().GetByID(ctx, *b.PackageID)
		if err != nil {
			return nil, err
		}
		for id, n := range pkg.UnitsByEquipment() {
			units[id] += n
		}
	}
	return units, nil
}

func (s *bookingService) checkCapacity(ctx context.Context, tx repository.Store, b *domain.Booking, demand map[string]int) error {
	ids := make([]string, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	equipment, err := tx.Equipment().LockByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("lock equipment: %w", err)
	}
	booked, err := s.overlap.BookedQuantities(ctx, tx, b.Interval(), ids, b.ID)
	if err != nil {
		return err
	}

	var shortfalls []domain.Shortfall
	for _, id := range ids {
		e, ok := equipment[id]
		if !ok {
			return domain.NotFoundf("equipment %s", id)
		}
		capacity := e.Quantity
		if !e.Offerable() {
			capacity = 0
		}
		if booked[id]+demand[id] > capacity {
			shortfalls = append(shortfalls, domain.Shortfall{
				EquipmentID: id,
				Capacity:    capacity,
				Booked:      booked[id],
				Requested:   demand[id],
			})
		}
	}
	if len(shortfalls) > 0 {
		return &domain.OversoldError{BookingID: b.ID, Shortfalls: shortfalls}
	}
	return nil
}

func (s *bookingService) Activate(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return s.transition(ctx, "Activate", bookingID, domain.BookingStatusConfirmed, domain.BookingStatusActive)
}

func (s *bookingService) Complete(ctx context.Context, bookingID string) (*domain.Booking, error) {
	return s.transition(ctx, "Complete", bookingID, domain.BookingStatusActive, domain.BookingStatusCompleted)
}

// transition moves a booking along a single edge. A booking already in the
// target status is returned unchanged.
func (s *bookingService) transition(ctx context.Context, op, bookingID string, from, to domain.BookingStatus) (*domain.Booking, error) {
	log := logger.WithBooking(bookingID)
	var out *domain.Booking
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		switch b.Status {
		case to:
		case from:
			if err := tx.Bookings().UpdateStatus(ctx, b.ID, to); err != nil {
				return err
			}
			b.Status = to
		default:
			return fmt.Errorf("%w: cannot move a %s booking to %s", domain.ErrInvalidTransition, b.Status, to)
		}
		out = b
		return nil
	})
	if err != nil {
		s.logFailure(log, op, err)
		return nil, err
	}
	log.Info("Booking status updated", "status", out.Status)
	return out, nil
}

func (s *bookingService) Reject(ctx context.Context, bookingID, actor, reason string) (*domain.PastBooking, error) {
	if actor == "" {
		return nil, domain.NewValidationError("actor", "is required to reject a booking")
	}
	pb, err := s.archive(ctx, "Reject", bookingID, domain.ArchiveActionRejected, actor, reason, func(b *domain.Booking) error {
		if b.Status.Terminal() {
			return fmt.Errorf("%w: cannot reject a %s booking", domain.ErrInvalidTransition, b.Status)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notify(ctx, "rejection", bookingID, func() error {
		return s.notifier.BookingRejected(ctx, pb)
	})
	return pb, nil
}

func (s *bookingService) Delete(ctx context.Context, bookingID, actor, reason string) (*domain.PastBooking, error) {
	return s.archive(ctx, "Delete", bookingID, domain.ArchiveActionDeleted, actor, reason, nil)
}

func (s *bookingService) archive(ctx context.Context, op, bookingID string, action domain.ArchiveAction, actor, reason string, guard func(*domain.Booking) error) (*domain.PastBooking, error) {
	logger.EnterMethod("bookingService."+op, "bookingID", bookingID, "actor", actor)
	log := logger.WithBooking(bookingID)

	var pb *domain.PastBooking
	var archived bool
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		archived = false
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(b); err != nil {
				return err
			}
		}
		pb, err = s.archiver.Archive(ctx, tx, b, action, actor, reason)
		if err != nil {
			return err
		}
		archived = true
		return nil
	})
	if err != nil && archived && !errors.Is(err, domain.ErrArchivalFailure) {
		// The archive steps succeeded but the commit did not.
		err = fmt.Errorf("%w: commit: %w", domain.ErrArchivalFailure, err)
	}
	if err != nil {
		s.logFailure(log, op, err)
		return nil, err
	}
	logger.ExitMethod("bookingService."+op, "bookingID", bookingID, "pastBookingID", pb.ID)
	return pb, nil
}

func (s *bookingService) SubmitInspection(ctx context.Context, bookingID, actor string, in domain.InspectionInput) (*domain.InspectionChecklist, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if actor == "" {
		return nil, domain.NewValidationError("actor", "is required to submit an inspection")
	}
	log := logger.WithBooking(bookingID)

	checklist := &domain.InspectionChecklist{
		ID:                uuid.NewString(),
		BookingID:         bookingID,
		PhysicalCondition: in.PhysicalCondition,
		AudioTest:         in.AudioTest,
		AccessoryCount:    in.AccessoryCount,
		Notes:             in.Notes,
		CompletedBy:       actor,
		CompletedAt:       s.now(),
	}
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingStatusCompleted {
			return fmt.Errorf("%w: inspection requires a Completed booking, got %s", domain.ErrInvalidTransition, b.Status)
		}
		if err := tx.Inspections().Upsert(ctx, checklist); err != nil {
			return err
		}
		return tx.Bookings().SetInspectionCompleted(ctx, bookingID)
	})
	if err != nil {
		s.logFailure(log, "SubmitInspection", err)
		return nil, err
	}
	log.Info("Inspection recorded", "condition", checklist.PhysicalCondition, "by", actor)
	return checklist, nil
}

func (s *bookingService) RefundDeposit(ctx context.Context, bookingID string) (*domain.Booking, error) {
	log := logger.WithBooking(bookingID)
	var out *domain.Booking
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if !b.InspectionCompleted {
			return domain.ErrInspectionRequired
		}
		if b.DepositRefunded {
			return domain.ErrAlreadyRefunded
		}
		if err := tx.Bookings().SetDepositRefunded(ctx, bookingID); err != nil {
			return err
		}
		b.DepositRefunded = true
		out = b
		return nil
	})
	if err != nil {
		s.logFailure(log, "RefundDeposit", err)
		return nil, err
	}

	log.Info("Deposit refunded", "depositCents", out.DepositCents)
	s.notify(ctx, "refund", bookingID, func() error {
		customer, err := s.store.Customers().GetByID(ctx, out.CustomerID)
		if err != nil {
			return err
		}
		return s.notifier.DepositRefunded(ctx, customer, out)
	})
	return out, nil
}

// AssessLateFee prices a return at returnedAt and stores it on the booking.
func (s *bookingService) AssessLateFee(ctx context.Context, bookingID string, returnedAt time.Time) (*domain.Booking, error) {
	if returnedAt.IsZero() {
		return nil, domain.NewValidationError("returned_at", "is required")
	}
	log := logger.WithBooking(bookingID)
	var out *domain.Booking
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		b, err := tx.Bookings().GetForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if b.Status != domain.BookingStatusActive && b.Status != domain.BookingStatusCompleted {
			return fmt.Errorf("%w: late fees apply to Active or Completed bookings, got %s", domain.ErrInvalidTransition, b.Status)
		}
		b.LateFeeCents = s.lateFees.FeeBetween(b.ReturnDate, returnedAt)
		if err := tx.Bookings().SetLateFee(ctx, b.ID, b.LateFeeCents); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		s.logFailure(log, "AssessLateFee", err)
		return nil, err
	}
	log.Info("Late fee assessed", "lateFeeCents", out.LateFeeCents, "returnedAt", returnedAt)
	return out, nil
}

func (s *bookingService) AccrueLateFees(ctx context.Context) (int, error) {
	now := s.now()
	overdue, err := s.store.Bookings().ListOverdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list overdue bookings: %w", err)
	}

	updated := 0
	for _, b := range overdue {
		fee := s.lateFees.FeeBetween(b.ReturnDate, now)
		if fee <= b.LateFeeCents {
			continue
		}
		if err := s.store.Bookings().SetLateFee(ctx, b.ID, fee); err != nil {
			logger.Error("Failed to accrue late fee", "bookingID", b.ID, "error", err)
			return updated, err
		}
		logger.WithBooking(b.ID).Info("Late fee accrued", "lateFeeCents", fee)
		updated++
	}
	return updated, nil
}

func (s *bookingService) GetBooking(ctx context.Context, bookingID string) (*domain.BookingDetail, error) {
	b, err := s.store.Bookings().GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	detail := &domain.BookingDetail{Booking: *b}

	if detail.Customer, err = s.store.Customers().GetByID(ctx, b.CustomerID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if b.PackageID != nil {
		pkg, err := s.store.Packages().GetByID(ctx, *b.PackageID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if pkg != nil {
			detail.PackageName = pkg.Name
		}
	}
	if detail.Inspection, err = s.store.Inspections().GetByBookingID(ctx, bookingID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return detail, nil
}

// notify runs send and logs a failure; the transition has already committed.
func (s *bookingService) notify(ctx context.Context, kind, bookingID string, send func() error) {
	if s.notifier == nil {
		return
	}
	if err := send(); err != nil {
		logger.WarnContext(ctx, "Customer notification failed", "kind", kind, "bookingID", bookingID, "error", err)
	}
}

func (s *bookingService) logFailure(log *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrOversold),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyRefunded),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrValidation):
		log.Warn("Booking operation rejected", "operation", op, "error", err)
	default:
		log.Error("Booking operation failed", "operation", op, "error", err)
	}
}
