package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/logger"
	"gearbox-rental-backend/internal/repository"
)

type bookingRepository struct {
	s *Store
}

const bookingColumns = `id, customer_id, package_id, pickup_date, return_date, total_price_cents, deposit_cents,
	late_fee_cents, delivery_option, status, inspection_completed, deposit_refunded, created_at, updated_at`

func scanBooking(row rowScanner) (domain.Booking, error) {
	var b domain.Booking
	var packageID sql.NullString
	err := row.Scan(&b.ID, &b.CustomerID, &packageID, &b.PickupDate, &b.ReturnDate, &b.TotalPriceCents,
		&b.DepositCents, &b.LateFeeCents, &b.DeliveryOption, &b.Status, &b.InspectionCompleted,
		&b.DepositRefunded, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return b, err
	}
	if packageID.Valid {
		id := packageID.String
		b.PackageID = &id
	}
	return b, nil
}

func (r *bookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	logger.EnterMethod("bookingRepository.Create", "bookingID", b.ID, "items", len(b.Items))
	query := `INSERT INTO bookings (id, customer_id, package_id, pickup_date, return_date, total_price_cents,
	          deposit_cents, late_fee_cents, delivery_option, status, inspection_completed, deposit_refunded,
	          created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	itemQuery := `INSERT INTO booking_items (id, booking_id, equipment_id, add_on_id, quantity) VALUES ($1, $2, $3, $4, $5)`

	err := r.s.WithTx(ctx, func(txStore repository.Store) error {
		tx := txStore.(*Store)
		if _, err := tx.q.ExecContext(ctx, query, b.ID, b.CustomerID, nullStringPtr(b.PackageID), b.PickupDate,
			b.ReturnDate, b.TotalPriceCents, b.DepositCents, b.LateFeeCents, b.DeliveryOption, b.Status,
			b.InspectionCompleted, b.DepositRefunded, b.CreatedAt, b.UpdatedAt); err != nil {
			return err
		}
		for _, it := range b.Items {
			if _, err := tx.q.ExecContext(ctx, itemQuery, it.ID, b.ID, nullString(it.Ref.EquipmentID()),
				nullString(it.Ref.AddOnID()), it.Quantity); err != nil {
				return fmt.Errorf("insert item %s: %w", it.Ref.ID, err)
			}
		}
		return nil
	})
	logger.ExitMethodWithError("bookingRepository.Create", err, "bookingID", b.ID)
	return err
}

func (r *bookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	return r.get(ctx, "bookings.GetByID", `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *bookingRepository) GetForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	return r.get(ctx, "bookings.GetForUpdate", `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *bookingRepository) get(ctx context.Context, op, query, id string) (*domain.Booking, error) {
	var b domain.Booking
	err := r.s.run(ctx, op, func(ctx context.Context) error {
		var err error
		b, err = scanBooking(r.s.q.QueryRowContext(ctx, query, id))
		if err != nil {
			return err
		}
		items, err := r.itemsFor(ctx, []string{b.ID})
		if err != nil {
			return err
		}
		b.Items = items[b.ID]
		return nil
	})
	if err != nil {
		return nil, notFound(err, "booking", id)
	}
	return &b, nil
}

// itemsFor loads items for the given bookings keyed by booking id, with the
// current catalog name of each referenced row.
func (r *bookingRepository) itemsFor(ctx context.Context, bookingIDs []string) (map[string][]domain.BookingItem, error) {
	out := make(map[string][]domain.BookingItem, len(bookingIDs))
	if len(bookingIDs) == 0 {
		return out, nil
	}
	rows, err := r.s.q.QueryContext(ctx, `
		SELECT bi.id, bi.booking_id, bi.equipment_id, bi.add_on_id, bi.quantity, COALESCE(e.name, a.name, '')
		FROM booking_items bi
		LEFT JOIN equipment e ON e.id = bi.equipment_id
		LEFT JOIN add_ons a ON a.id = bi.add_on_id
		WHERE bi.booking_id = ANY($1)
		ORDER BY bi.booking_id, bi.id`, pq.Array(bookingIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.BookingItem
		var equipmentID, addOnID sql.NullString
		if err := rows.Scan(&it.ID, &it.BookingID, &equipmentID, &addOnID, &it.Quantity, &it.Name); err != nil {
			return nil, err
		}
		if equipmentID.Valid {
			it.Ref = domain.EquipmentRef(equipmentID.String)
		} else {
			it.Ref = domain.AddOnRef(addOnID.String)
		}
		out[it.BookingID] = append(out[it.BookingID], it)
	}
	return out, rows.Err()
}

func (r *bookingRepository) update(ctx context.Context, op, id, query string, args ...any) error {
	return r.s.run(ctx, op, func(ctx context.Context) error {
		res, err := r.s.q.ExecContext(ctx, query, append([]any{id}, args...)...)
		if err != nil {
			return err
		}
		return expectOneRow(res, "booking", id)
	})
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) error {
	logger.DatabaseCall("UPDATE", "bookings.status", "bookingID", id, "status", status)
	return r.update(ctx, "bookings.UpdateStatus", id,
		`UPDATE bookings SET status = $2, updated_at = NOW() WHERE id = $1`, status)
}

func (r *bookingRepository) SetInspectionCompleted(ctx context.Context, id string) error {
	return r.update(ctx, "bookings.SetInspectionCompleted", id,
		`UPDATE bookings SET inspection_completed = TRUE, updated_at = NOW() WHERE id = $1`)
}

func (r *bookingRepository) SetDepositRefunded(ctx context.Context, id string) error {
	return r.update(ctx, "bookings.SetDepositRefunded", id,
		`UPDATE bookings SET deposit_refunded = TRUE, updated_at = NOW() WHERE id = $1`)
}

func (r *bookingRepository) SetLateFee(ctx context.Context, id string, cents int64) error {
	return r.update(ctx, "bookings.SetLateFee", id,
		`UPDATE bookings SET late_fee_cents = $2, updated_at = NOW() WHERE id = $1`, cents)
}

func (r *bookingRepository) Delete(ctx context.Context, id string) error {
	logger.DatabaseCall("DELETE", "bookings", "bookingID", id)
	return r.update(ctx, "bookings.Delete", id, `DELETE FROM bookings WHERE id = $1`)
}

func (r *bookingRepository) ListByStatus(ctx context.Context, statuses []domain.BookingStatus, window domain.Interval) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE status = ANY($1) AND pickup_date <= $3 AND return_date >= $2
	          ORDER BY pickup_date, id`
	return r.list(ctx, "bookings.ListByStatus", query, pq.Array(statusStrings(statuses)), window.Start, window.End)
}

func (r *bookingRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
	          WHERE status = $1 AND return_date < $2
	          ORDER BY return_date, id`
	return r.list(ctx, "bookings.ListOverdue", query, domain.BookingStatusActive, now)
}

func (r *bookingRepository) list(ctx context.Context, op, query string, args ...any) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := r.s.run(ctx, op, func(ctx context.Context) error {
		bookings = nil
		rows, err := r.s.q.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		var ids []string
		for rows.Next() {
			b, err := scanBooking(rows)
			if err != nil {
				rows.Close()
				return err
			}
			bookings = append(bookings, b)
			ids = append(ids, b.ID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		items, err := r.itemsFor(ctx, ids)
		if err != nil {
			return err
		}
		for i := range bookings {
			bookings[i].Items = items[bookings[i].ID]
		}
		return nil
	})
	logger.DatabaseResult("SELECT", int64(len(bookings)), err, "operation", op)
	return bookings, err
}
