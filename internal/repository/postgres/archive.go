package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/logger"
	"gearbox-rental-backend/internal/repository"
)

type inspectionRepository struct {
	s *Store
}

func (r *inspectionRepository) Upsert(ctx context.Context, c *domain.InspectionChecklist) error {
	query := `INSERT INTO inspection_checklists
	          (id, booking_id, physical_condition, audio_test, accessory_count, notes, completed_by, completed_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          ON CONFLICT (booking_id) DO UPDATE SET
	              physical_condition = EXCLUDED.physical_condition,
	              audio_test = EXCLUDED.audio_test,
	              accessory_count = EXCLUDED.accessory_count,
	              notes = EXCLUDED.notes,
	              completed_by = EXCLUDED.completed_by,
	              completed_at = EXCLUDED.completed_at
	          RETURNING id`
	return r.s.run(ctx, "inspections.Upsert", func(ctx context.Context) error {
		return r.s.q.QueryRowContext(ctx, query, c.ID, c.BookingID, c.PhysicalCondition, c.AudioTest,
			c.AccessoryCount, nullString(c.Notes), c.CompletedBy, c.CompletedAt).Scan(&c.ID)
	})
}

func (r *inspectionRepository) GetByBookingID(ctx context.Context, bookingID string) (*domain.InspectionChecklist, error) {
	var c domain.InspectionChecklist
	var notes sql.NullString
	err := r.s.run(ctx, "inspections.GetByBookingID", func(ctx context.Context) error {
		return r.s.q.QueryRowContext(ctx, `
			SELECT id, booking_id, physical_condition, audio_test, accessory_count, notes, completed_by, completed_at
			FROM inspection_checklists WHERE booking_id = $1`, bookingID).
			Scan(&c.ID, &c.BookingID, &c.PhysicalCondition, &c.AudioTest, &c.AccessoryCount, &notes,
				&c.CompletedBy, &c.CompletedAt)
	})
	if err != nil {
		return nil, notFound(err, "inspection for booking", bookingID)
	}
	c.Notes = notes.String
	return &c, nil
}

type pastBookingRepository struct {
	s *Store
}

const pastBookingColumns = `id, original_booking_id, customer_id, customer_name, customer_email, package_id,
	package_name, pickup_date, return_date, total_price_cents, deposit_cents, late_fee_cents, delivery_option,
	original_status, action, action_by, action_reason, inspection_completed, deposit_refunded, booked_at, archived_at`

func (r *pastBookingRepository) Create(ctx context.Context, pb *domain.PastBooking) error {
	logger.EnterMethod("pastBookingRepository.Create", "pastBookingID", pb.ID, "originalBookingID", pb.OriginalBookingID)
	query := `INSERT INTO past_bookings (` + pastBookingColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`
	itemQuery := `INSERT INTO past_booking_items
	              (id, past_booking_id, equipment_id, equipment_name, add_on_id, add_on_name, quantity)
	              VALUES ($1, $2, $3, $4, $5, $6, $7)`

	err := r.s.WithTx(ctx, func(txStore repository.Store) error {
		tx := txStore.(*Store)
		if _, err := tx.q.ExecContext(ctx, query, pb.ID, pb.OriginalBookingID, nullString(pb.CustomerID),
			nullString(pb.CustomerName), nullString(pb.CustomerEmail), nullStringPtr(pb.PackageID),
			nullString(pb.PackageName), pb.PickupDate, pb.ReturnDate, pb.TotalPriceCents, pb.DepositCents,
			pb.LateFeeCents, pb.DeliveryOption, pb.OriginalStatus, pb.Action, nullString(pb.ActionBy),
			nullString(pb.ActionReason), pb.InspectionCompleted, pb.DepositRefunded, pb.BookedAt,
			pb.ArchivedAt); err != nil {
			return err
		}
		for _, it := range pb.Items {
			if _, err := tx.q.ExecContext(ctx, itemQuery, it.ID, pb.ID, nullString(it.EquipmentID),
				nullString(it.EquipmentName), nullString(it.AddOnID), nullString(it.AddOnName), it.Quantity); err != nil {
				return fmt.Errorf("insert past item %s: %w", it.ID, err)
			}
		}
		return nil
	})
	logger.ExitMethodWithError("pastBookingRepository.Create", err, "pastBookingID", pb.ID)
	return err
}

func scanPastBooking(row rowScanner) (domain.PastBooking, error) {
	var pb domain.PastBooking
	var customerID, customerName, customerEmail, packageID, packageName, actionBy, actionReason sql.NullString
	err := row.Scan(&pb.ID, &pb.OriginalBookingID, &customerID, &customerName, &customerEmail, &packageID,
		&packageName, &pb.PickupDate, &pb.ReturnDate, &pb.TotalPriceCents, &pb.DepositCents, &pb.LateFeeCents,
		&pb.DeliveryOption, &pb.OriginalStatus, &pb.Action, &actionBy, &actionReason, &pb.InspectionCompleted,
		&pb.DepositRefunded, &pb.BookedAt, &pb.ArchivedAt)
	if err != nil {
		return pb, err
	}
	pb.CustomerID = customerID.String
	pb.CustomerName = customerName.String
	pb.CustomerEmail = customerEmail.String
	if packageID.Valid {
		id := packageID.String
		pb.PackageID = &id
	}
	pb.PackageName = packageName.String
	pb.ActionBy = actionBy.String
	pb.ActionReason = actionReason.String
	return pb, nil
}

func (r *pastBookingRepository) GetByID(ctx context.Context, id string) (*domain.PastBooking, error) {
	var pb domain.PastBooking
	err := r.s.run(ctx, "pastBookings.GetByID", func(ctx context.Context) error {
		var err error
		pb, err = scanPastBooking(r.s.q.QueryRowContext(ctx,
			`SELECT `+pastBookingColumns+` FROM past_bookings WHERE id = $1`, id))
		if err != nil {
			return err
		}
		items, err := r.itemsFor(ctx, []string{pb.ID})
		pb.Items = items[pb.ID]
		return err
	})
	if err != nil {
		return nil, notFound(err, "past booking", id)
	}
	return &pb, nil
}

func (r *pastBookingRepository) itemsFor(ctx context.Context, ids []string) (map[string][]domain.PastBookingItem, error) {
	out := make(map[string][]domain.PastBookingItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.s.q.QueryContext(ctx, `
		SELECT id, past_booking_id, equipment_id, equipment_name, add_on_id, add_on_name, quantity
		FROM past_booking_items WHERE past_booking_id = ANY($1) ORDER BY past_booking_id, id`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.PastBookingItem
		var equipmentID, equipmentName, addOnID, addOnName sql.NullString
		if err := rows.Scan(&it.ID, &it.PastBookingID, &equipmentID, &equipmentName, &addOnID, &addOnName, &it.Quantity); err != nil {
			return nil, err
		}
		it.EquipmentID, it.EquipmentName = equipmentID.String, equipmentName.String
		it.AddOnID, it.AddOnName = addOnID.String, addOnName.String
		out[it.PastBookingID] = append(out[it.PastBookingID], it)
	}
	return out, rows.Err()
}

// List pages through archived bookings, newest first. The query text matches
// customer name or email, package name and item names.
func (r *pastBookingRepository) List(ctx context.Context, filter domain.PastBookingFilter) ([]domain.PastBooking, int, error) {
	filter.Normalize()

	var where []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.OriginalStatus != "" {
		add("original_status = $%d", filter.OriginalStatus)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		add(`(customer_name ILIKE $%[1]d OR customer_email ILIKE $%[1]d OR package_name ILIKE $%[1]d
		      OR EXISTS (SELECT 1 FROM past_booking_items pi WHERE pi.past_booking_id = past_bookings.id
		                 AND (pi.equipment_name ILIKE $%[1]d OR pi.add_on_name ILIKE $%[1]d)))`, "%"+q+"%")
	}
	whereSQL := ""
	if len(where) > 0 {
		whereSQL = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	var list []domain.PastBooking
	err := r.s.run(ctx, "pastBookings.List", func(ctx context.Context) error {
		list = nil
		if err := r.s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM past_bookings`+whereSQL, args...).Scan(&total); err != nil {
			return err
		}
		pageArgs := append(append([]any{}, args...), filter.Limit, (filter.Page-1)*filter.Limit)
		query := fmt.Sprintf(`SELECT %s FROM past_bookings%s ORDER BY archived_at DESC, id LIMIT $%d OFFSET $%d`,
			pastBookingColumns, whereSQL, len(args)+1, len(args)+2)
		rows, err := r.s.q.QueryContext(ctx, query, pageArgs...)
		if err != nil {
			return err
		}
		var ids []string
		for rows.Next() {
			pb, err := scanPastBooking(rows)
			if err != nil {
				rows.Close()
				return err
			}
			list = append(list, pb)
			ids = append(ids, pb.ID)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		items, err := r.itemsFor(ctx, ids)
		if err != nil {
			return err
		}
		for i := range list {
			list[i].Items = items[list[i].ID]
		}
		return nil
	})
	return list, total, err
}

type maintenanceRepository struct {
	s *Store
}

func (r *maintenanceRepository) Create(ctx context.Context, log *domain.MaintenanceLog) error {
	logger.DatabaseCall("INSERT", "maintenance_logs", "equipmentID", log.EquipmentID)
	return r.s.run(ctx, "maintenance.Create", func(ctx context.Context) error {
		_, err := r.s.q.ExecContext(ctx,
			`INSERT INTO maintenance_logs (id, equipment_id, status, notes, repaired_by, date) VALUES ($1, $2, $3, $4, $5, $6)`,
			log.ID, log.EquipmentID, nullString(string(log.Status)), log.Notes, nullString(log.RepairedBy), log.Date)
		return err
	})
}

func (r *maintenanceRepository) List(ctx context.Context, equipmentID string) ([]domain.MaintenanceLog, error) {
	var logs []domain.MaintenanceLog
	err := r.s.run(ctx, "maintenance.List", func(ctx context.Context) error {
		logs = nil
		rows, err := r.s.q.QueryContext(ctx, `
			SELECT id, equipment_id, status, notes, repaired_by, date
			FROM maintenance_logs WHERE $1 = '' OR equipment_id = $1 ORDER BY date DESC, id`, equipmentID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var l domain.MaintenanceLog
			var status, repairedBy sql.NullString
			if err := rows.Scan(&l.ID, &l.EquipmentID, &status, &l.Notes, &repairedBy, &l.Date); err != nil {
				return err
			}
			l.Status = domain.EquipmentStatus(status.String)
			l.RepairedBy = repairedBy.String
			logs = append(logs, l)
		}
		return rows.Err()
	})
	return logs, err
}
