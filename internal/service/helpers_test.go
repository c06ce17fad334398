package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/repository/memory"
	"gearbox-rental-backend/internal/utils"
)

// day returns midnight UTC of the given March 2026 day.
func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

type fixture struct {
	store    *memory.Store
	bookings BookingService
	avail    AvailabilityService
	office   BackOfficeService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.PutEquipment(domain.Equipment{ID: "mic", Name: "Shure SM58", Category: "Microphones", Quantity: 1, Status: domain.EquipmentStatusActive, DayRateCents: 1500})
	store.PutEquipment(domain.Equipment{ID: "spk", Name: "QSC K12", Category: "Speakers", Quantity: 3, Status: domain.EquipmentStatusActive, DayRateCents: 6000})
	store.PutEquipment(domain.Equipment{ID: "sub", Name: "QSC KS118", Category: "Speakers", Quantity: 1, Status: domain.EquipmentStatusActive, DayRateCents: 8000})
	store.PutEquipment(domain.Equipment{ID: "broken", Name: "Old Mixer", Category: "Mixers", Quantity: 2, Status: domain.EquipmentStatusInRepair})
	store.PutPackage(domain.Package{ID: "party", Name: "Party PA", BasePriceCents: 25000, KeyEquipment: []string{"spk", "spk", "sub"}})
	store.PutAddOn(domain.AddOn{ID: "cables", Name: "Cable kit", Category: "Cables", PriceCents: 1500})

	now := fixedClock(day(1))
	return &fixture{
		store:    store,
		bookings: NewBookingService(store, NewLogNotifier(), utils.DefaultLateFeePolicy, now),
		avail:    NewAvailabilityService(store),
		office:   NewBackOfficeService(store, now),
	}
}

func (f *fixture) request(from, to int, equipment ...string) *domain.NewBookingRequest {
	return &domain.NewBookingRequest{
		EquipmentIDs:    equipment,
		PickupDate:      day(from),
		ReturnDate:      day(to),
		TotalPriceCents: 10000,
		DepositCents:    5000,
		Customer:        domain.Customer{Name: "Dana", Email: "dana@example.com", Phone: "555-0100"},
	}
}

// book creates a booking and moves it to status through the real transitions.
func (f *fixture) book(t *testing.T, req *domain.NewBookingRequest, status domain.BookingStatus) *domain.Booking {
	t.Helper()
	ctx := context.Background()
	b, err := f.bookings.Create(ctx, req)
	require.NoError(t, err)

	steps := map[domain.BookingStatus][]func(context.Context, string) (*domain.Booking, error){
		domain.BookingStatusPending:   nil,
		domain.BookingStatusConfirmed: {f.bookings.Confirm},
		domain.BookingStatusActive:    {f.bookings.Confirm, f.bookings.Activate},
		domain.BookingStatusCompleted: {f.bookings.Confirm, f.bookings.Activate, f.bookings.Complete},
	}
	for _, step := range steps[status] {
		b, err = step(ctx, b.ID)
		require.NoError(t, err)
	}
	return b
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) BookingConfirmed(ctx context.Context, c *domain.Customer, b *domain.Booking) error {
	args := m.Called(ctx, c, b)
	return args.Error(0)
}

func (m *mockNotifier) BookingRejected(ctx context.Context, pb *domain.PastBooking) error {
	args := m.Called(ctx, pb)
	return args.Error(0)
}

func (m *mockNotifier) DepositRefunded(ctx context.Context, c *domain.Customer, b *domain.Booking) error {
	args := m.Called(ctx, c, b)
	return args.Error(0)
}
