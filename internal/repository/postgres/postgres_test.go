package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/repository"
	"gearbox-rental-backend/internal/repository/postgres"
)

var bookingCols = []string{"id", "customer_id", "package_id", "pickup_date", "return_date", "total_price_cents",
	"deposit_cents", "late_fee_cents", "delivery_option", "status", "inspection_completed", "deposit_refunded",
	"created_at", "updated_at"}

var itemCols = []string{"id", "booking_id", "equipment_id", "add_on_id", "quantity", "name"}

func newMockStore(t *testing.T) (*postgres.Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error opening mock database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return postgres.NewStoreWithBackoff(db, time.Millisecond), mock
}

func bookingRow(id string, status domain.BookingStatus) *sqlmock.Rows {
	pickup := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(bookingCols).AddRow(id, "cust-1", "pkg-1", pickup, pickup.AddDate(0, 0, 2),
		int64(45000), int64(10000), int64(0), "WarehousePickup", string(status), false, false, pickup, pickup)
}

func TestBookingRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("Success with items", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1").
			WithArgs("b-1").
			WillReturnRows(bookingRow("b-1", domain.BookingStatusConfirmed))
		mock.ExpectQuery("FROM booking_items bi").
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows(itemCols).
				AddRow("i-1", "b-1", "eq-1", nil, 2, "Shure SM58").
				AddRow("i-2", "b-1", nil, "ao-1", 1, "Cable kit"))

		b, err := store.Bookings().GetByID(ctx, "b-1")
		require.NoError(t, err)
		assert.Equal(t, domain.BookingStatusConfirmed, b.Status)
		require.NotNil(t, b.PackageID)
		assert.Equal(t, "pkg-1", *b.PackageID)
		require.Len(t, b.Items, 2)
		assert.Equal(t, domain.EquipmentRef("eq-1"), b.Items[0].Ref)
		assert.Equal(t, 2, b.Items[0].Quantity)
		assert.Equal(t, domain.AddOnRef("ao-1"), b.Items[1].Ref)
		assert.Equal(t, "Cable kit", b.Items[1].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Not found", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1").
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(bookingCols))

		_, err := store.Bookings().GetByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_RetriesTransientFailureOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("Second attempt succeeds", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT (.+) FROM add_ons WHERE id = \\$1").
			WithArgs("ao-1").
			WillReturnError(&pq.Error{Code: "08006"})
		mock.ExpectQuery("SELECT (.+) FROM add_ons WHERE id = \\$1").
			WithArgs("ao-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "price_cents"}).
				AddRow("ao-1", "Cable kit", "Cables", int64(1500)))

		a, err := store.AddOns().GetByID(ctx, "ao-1")
		require.NoError(t, err)
		assert.Equal(t, "Cable kit", a.Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Two failures surface as store unavailable", func(t *testing.T) {
		store, mock := newMockStore(t)
		for i := 0; i < 2; i++ {
			mock.ExpectQuery("SELECT (.+) FROM add_ons WHERE id = \\$1").
				WithArgs("ao-1").
				WillReturnError(&pq.Error{Code: "57P01"})
		}

		_, err := store.AddOns().GetByID(ctx, "ao-1")
		assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Permanent failure is not retried", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery("SELECT (.+) FROM add_ons WHERE id = \\$1").
			WithArgs("ao-1").
			WillReturnError(&pq.Error{Code: "42P01"})

		_, err := store.AddOns().GetByID(ctx, "ao-1")
		require.Error(t, err)
		assert.False(t, errors.Is(err, domain.ErrStoreUnavailable))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestStore_WithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("Commit", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE bookings SET status = \\$2").
			WithArgs("b-1", "Confirmed").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := store.WithTx(ctx, func(tx repository.Store) error {
			return tx.Bookings().UpdateStatus(ctx, "b-1", domain.BookingStatusConfirmed)
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rollback on error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("DELETE FROM bookings WHERE id = \\$1").
			WithArgs("b-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := store.WithTx(ctx, func(tx repository.Store) error {
			return tx.Bookings().Delete(ctx, "b-1")
		})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Serialization failure re-runs the whole transaction", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE bookings SET deposit_refunded = TRUE").
			WithArgs("b-1").
			WillReturnError(&pq.Error{Code: "40001"})
		mock.ExpectRollback()
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE bookings SET deposit_refunded = TRUE").
			WithArgs("b-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		calls := 0
		err := store.WithTx(ctx, func(tx repository.Store) error {
			calls++
			return tx.Bookings().SetDepositRefunded(ctx, "b-1")
		})
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBookingRepository_Create(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	b := &domain.Booking{
		ID:             "b-1",
		CustomerID:     "cust-1",
		PickupDate:     now.AddDate(0, 0, 9),
		ReturnDate:     now.AddDate(0, 0, 11),
		DeliveryOption: domain.DeliveryWarehousePickup,
		Status:         domain.BookingStatusPending,
		Items: []domain.BookingItem{
			{ID: "i-1", Ref: domain.EquipmentRef("eq-1"), Quantity: 2},
			{ID: "i-2", Ref: domain.AddOnRef("ao-1"), Quantity: 1},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_items").
		WithArgs("i-1", "b-1", sqlmock.AnyArg(), sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_items").
		WithArgs("i-2", "b-1", sqlmock.AnyArg(), sqlmock.AnyArg(), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assert.NoError(t, store.Bookings().Create(ctx, b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepository_ListByStatus(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()
	window := domain.Day(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC))

	mock.ExpectQuery("WHERE status = ANY\\(\\$1\\) AND pickup_date <= \\$3 AND return_date >= \\$2").
		WithArgs(sqlmock.AnyArg(), window.Start, window.End).
		WillReturnRows(bookingRow("b-1", domain.BookingStatusActive))
	mock.ExpectQuery("FROM booking_items bi").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(itemCols).AddRow("i-1", "b-1", "eq-1", nil, 1, "Shure SM58"))

	list, err := store.Bookings().ListByStatus(ctx, domain.HoldingStatuses, window)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, map[string]int{"eq-1": 1}, list[0].EquipmentUnits())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEquipmentRepository_LockByIDs(t *testing.T) {
	store, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM equipment WHERE id = ANY\\(\\$1\\) ORDER BY id FOR UPDATE").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "quantity", "status", "day_rate_cents", "specs"}).
			AddRow("eq-1", "Shure SM58", "Microphones", 4, "Active", int64(1500), []byte(`{"pattern":"cardioid"}`)).
			AddRow("eq-2", "QSC K12", "Speakers", 2, "InRepair", int64(6000), []byte(`{}`)))
	mock.ExpectCommit()

	var got map[string]domain.Equipment
	err := store.WithTx(ctx, func(tx repository.Store) error {
		var err error
		got, err = tx.Equipment().LockByIDs(ctx, []string{"eq-1", "eq-2"})
		return err
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 4, got["eq-1"].Quantity)
	assert.Equal(t, "cardioid", got["eq-1"].Specs["pattern"])
	eq2 := got["eq-2"]
	assert.False(t, eq2.Offerable())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPackageRepository_DecodesKeyEquipment(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM packages WHERE id = \\$1").
		WithArgs("pkg-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "base_price_cents", "key_equipment"}).
			AddRow("pkg-1", "Party PA", int64(25000), []byte(`["eq-1","eq-1","eq-2"]`)))

	p, err := store.Packages().GetByID(context.Background(), "pkg-1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"eq-1": 2, "eq-2": 1}, p.UnitsByEquipment())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerRepository_GetOrCreate(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO customers (.+) ON CONFLICT \\(email\\)").
		WithArgs("new-id", "Dana", "dana@example.com", "555-0100").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone"}).AddRow("existing-id", "Dana R", "555-0199"))

	c := &domain.Customer{ID: "new-id", Name: "Dana", Email: "dana@example.com", Phone: "555-0100"}
	require.NoError(t, store.Customers().GetOrCreate(context.Background(), c))
	assert.Equal(t, "existing-id", c.ID)
	assert.Equal(t, "Dana R", c.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPastBookingRepository_List(t *testing.T) {
	store, mock := newMockStore(t)
	archived := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	cols := []string{"id", "original_booking_id", "customer_id", "customer_name", "customer_email", "package_id",
		"package_name", "pickup_date", "return_date", "total_price_cents", "deposit_cents", "late_fee_cents",
		"delivery_option", "original_status", "action", "action_by", "action_reason", "inspection_completed",
		"deposit_refunded", "booked_at", "archived_at"}

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM past_bookings WHERE action = \\$1 AND \\(customer_name ILIKE \\$2").
		WithArgs("rejected", "%sm58%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("FROM past_bookings WHERE (.+) ORDER BY archived_at DESC, id LIMIT \\$3 OFFSET \\$4").
		WithArgs("rejected", "%sm58%", 2, 2).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("pb-3", "b-3", "cust-1", "Dana", "dana@example.com", nil, nil,
			archived, archived, int64(1000), int64(0), int64(0), "WarehousePickup", "Pending", "rejected", "admin-1",
			"double booked", false, false, archived, archived))
	mock.ExpectQuery("FROM past_booking_items WHERE past_booking_id = ANY\\(\\$1\\)").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "past_booking_id", "equipment_id", "equipment_name", "add_on_id", "add_on_name", "quantity"}).
			AddRow("pbi-1", "pb-3", "eq-1", "Shure SM58", nil, nil, 1))

	list, total, err := store.PastBookings().List(context.Background(), domain.PastBookingFilter{
		Query: "sm58", Action: domain.ArchiveActionRejected, Page: 2, Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].PackageID)
	assert.Equal(t, "admin-1", list[0].ActionBy)
	require.Len(t, list[0].Items, 1)
	assert.Equal(t, "Shure SM58", list[0].Items[0].EquipmentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}
