package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/logger"
)

type equipmentRepository struct {
	s *Store
}

const equipmentColumns = `id, name, category, quantity, status, day_rate_cents, specs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEquipment(row rowScanner) (domain.Equipment, error) {
	var e domain.Equipment
	var specs []byte
	if err := row.Scan(&e.ID, &e.Name, &e.Category, &e.Quantity, &e.Status, &e.DayRateCents, &specs); err != nil {
		return e, err
	}
	if len(specs) > 0 {
		if err := json.Unmarshal(specs, &e.Specs); err != nil {
			return e, err
		}
	}
	return e, nil
}

func (r *equipmentRepository) GetByID(ctx context.Context, id string) (*domain.Equipment, error) {
	var e domain.Equipment
	err := r.s.run(ctx, "equipment.GetByID", func(ctx context.Context) error {
		var err error
		row := r.s.q.QueryRowContext(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = $1`, id)
		e, err = scanEquipment(row)
		return err
	})
	if err != nil {
		return nil, notFound(err, "equipment", id)
	}
	return &e, nil
}

func (r *equipmentRepository) ListActive(ctx context.Context) ([]domain.Equipment, error) {
	var list []domain.Equipment
	err := r.s.run(ctx, "equipment.ListActive", func(ctx context.Context) error {
		list = nil
		rows, err := r.s.q.QueryContext(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE status = $1 ORDER BY category, name`, domain.EquipmentStatusActive)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanEquipment(rows)
			if err != nil {
				return err
			}
			list = append(list, e)
		}
		return rows.Err()
	})
	return list, err
}

func (r *equipmentRepository) LockByIDs(ctx context.Context, ids []string) (map[string]domain.Equipment, error) {
	logger.DatabaseCall("SELECT FOR UPDATE", "equipment", "ids", ids)
	out := make(map[string]domain.Equipment, len(ids))
	err := r.s.run(ctx, "equipment.LockByIDs", func(ctx context.Context) error {
		rows, err := r.s.q.QueryContext(ctx,
			`SELECT `+equipmentColumns+` FROM equipment WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
			pq.Array(ids))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			e, err := scanEquipment(rows)
			if err != nil {
				return err
			}
			out[e.ID] = e
		}
		return rows.Err()
	})
	logger.DatabaseResult("SELECT FOR UPDATE", int64(len(out)), err)
	return out, err
}

func (r *equipmentRepository) UpdateStatus(ctx context.Context, id string, status domain.EquipmentStatus) error {
	return r.s.run(ctx, "equipment.UpdateStatus", func(ctx context.Context) error {
		res, err := r.s.q.ExecContext(ctx, `UPDATE equipment SET status = $1 WHERE id = $2`, status, id)
		if err != nil {
			return err
		}
		return expectOneRow(res, "equipment", id)
	})
}

func expectOneRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFoundf("%s %s", what, id)
	}
	return nil
}

type packageRepository struct {
	s *Store
}

func scanPackage(row rowScanner) (domain.Package, error) {
	var p domain.Package
	var keyEquipment []byte
	if err := row.Scan(&p.ID, &p.Name, &p.BasePriceCents, &keyEquipment); err != nil {
		return p, err
	}
	// key_equipment is decoded here so callers never see the JSON text.
	if len(keyEquipment) > 0 {
		if err := json.Unmarshal(keyEquipment, &p.KeyEquipment); err != nil {
			return p, err
		}
	}
	return p, nil
}

func (r *packageRepository) GetByID(ctx context.Context, id string) (*domain.Package, error) {
	var p domain.Package
	err := r.s.run(ctx, "packages.GetByID", func(ctx context.Context) error {
		var err error
		p, err = scanPackage(r.s.q.QueryRowContext(ctx,
			`SELECT id, name, base_price_cents, key_equipment FROM packages WHERE id = $1`, id))
		return err
	})
	if err != nil {
		return nil, notFound(err, "package", id)
	}
	return &p, nil
}

func (r *packageRepository) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Package, error) {
	out := make(map[string]domain.Package, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	err := r.s.run(ctx, "packages.GetByIDs", func(ctx context.Context) error {
		rows, err := r.s.q.QueryContext(ctx,
			`SELECT id, name, base_price_cents, key_equipment FROM packages WHERE id = ANY($1)`, pq.Array(ids))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			p, err := scanPackage(rows)
			if err != nil {
				return err
			}
			out[p.ID] = p
		}
		return rows.Err()
	})
	return out, err
}

type addOnRepository struct {
	s *Store
}

func (r *addOnRepository) GetByID(ctx context.Context, id string) (*domain.AddOn, error) {
	var a domain.AddOn
	err := r.s.run(ctx, "addOns.GetByID", func(ctx context.Context) error {
		return r.s.q.QueryRowContext(ctx,
			`SELECT id, name, category, price_cents FROM add_ons WHERE id = $1`, id).
			Scan(&a.ID, &a.Name, &a.Category, &a.PriceCents)
	})
	if err != nil {
		return nil, notFound(err, "add-on", id)
	}
	return &a, nil
}

type customerRepository struct {
	s *Store
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	var c domain.Customer
	err := r.s.run(ctx, "customers.GetByID", func(ctx context.Context) error {
		return r.s.q.QueryRowContext(ctx, `SELECT id, name, email, phone FROM customers WHERE id = $1`, id).
			Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
	})
	if err != nil {
		return nil, notFound(err, "customer", id)
	}
	return &c, nil
}

func (r *customerRepository) GetOrCreate(ctx context.Context, c *domain.Customer) error {
	// ON CONFLICT keeps the stored profile and still returns its id.
	query := `INSERT INTO customers (id, name, email, phone) VALUES ($1, $2, $3, $4)
	          ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
	          RETURNING id, name, phone`
	return r.s.run(ctx, "customers.GetOrCreate", func(ctx context.Context) error {
		return r.s.q.QueryRowContext(ctx, query, c.ID, c.Name, c.Email, c.Phone).Scan(&c.ID, &c.Name, &c.Phone)
	})
}
