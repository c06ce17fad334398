// Package catalog loads the equipment, package and add-on catalog from YAML
// for development environments. Production catalogs are maintained by the
// storefront's catalog management and are only read by this service.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/logger"
	"gearbox-rental-backend/internal/repository/memory"
)

type Equipment struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Category     string            `yaml:"category"`
	Quantity     int               `yaml:"quantity"`
	Status       string            `yaml:"status"`
	DayRateCents int64             `yaml:"day_rate_cents"`
	Specs        map[string]string `yaml:"specs"`
}

type Package struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	BasePriceCents int64    `yaml:"base_price_cents"`
	KeyEquipment   []string `yaml:"key_equipment"`
}

type AddOn struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Category   string `yaml:"category"`
	PriceCents int64  `yaml:"price_cents"`
}

// Seed is the YAML document layout.
type Seed struct {
	Equipment []Equipment `yaml:"equipment"`
	Packages  []Package   `yaml:"packages"`
	AddOns    []AddOn     `yaml:"add_ons"`
}

// Load reads and validates a catalog file.
func Load(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate fills the default equipment status and checks that every package
// only references equipment defined in the same file.
func (s *Seed) Validate() error {
	known := make(map[string]bool, len(s.Equipment))
	for i := range s.Equipment {
		e := &s.Equipment[i]
		if e.ID == "" || e.Name == "" {
			return domain.NewValidationError("equipment", fmt.Sprintf("entry %d needs an id and a name", i))
		}
		if known[e.ID] {
			return domain.NewValidationError("equipment", "duplicate id "+e.ID)
		}
		if e.Quantity < 0 {
			return domain.NewValidationError("equipment", e.ID+" quantity must not be negative")
		}
		if e.Status == "" {
			e.Status = string(domain.EquipmentStatusActive)
		}
		if !domain.EquipmentStatus(e.Status).Valid() {
			return domain.NewValidationError("equipment", e.ID+" has unknown status "+e.Status)
		}
		known[e.ID] = true
	}
	for _, p := range s.Packages {
		if p.ID == "" || p.Name == "" {
			return domain.NewValidationError("packages", "every package needs an id and a name")
		}
		for _, id := range p.KeyEquipment {
			if !known[id] {
				return domain.NewValidationError("packages", fmt.Sprintf("%s references unknown equipment %s", p.ID, id))
			}
		}
	}
	for _, a := range s.AddOns {
		if a.ID == "" || a.Name == "" {
			return domain.NewValidationError("add_ons", "every add-on needs an id and a name")
		}
	}
	return nil
}

func (e Equipment) toDomain() domain.Equipment {
	return domain.Equipment{
		ID:           e.ID,
		Name:         e.Name,
		Category:     e.Category,
		Quantity:     e.Quantity,
		Status:       domain.EquipmentStatus(e.Status),
		DayRateCents: e.DayRateCents,
		Specs:        e.Specs,
	}
}

// ApplyMemory loads the catalog into an in-memory store.
func ApplyMemory(store *memory.Store, s *Seed) {
	for _, e := range s.Equipment {
		store.PutEquipment(e.toDomain())
	}
	for _, p := range s.Packages {
		store.PutPackage(domain.Package{ID: p.ID, Name: p.Name, BasePriceCents: p.BasePriceCents, KeyEquipment: p.KeyEquipment})
	}
	for _, a := range s.AddOns {
		store.PutAddOn(domain.AddOn{ID: a.ID, Name: a.Name, Category: a.Category, PriceCents: a.PriceCents})
	}
	logger.Info("Catalog loaded into memory store", "equipment", len(s.Equipment), "packages", len(s.Packages), "addOns", len(s.AddOns))
}

// ApplyPostgres upserts the catalog in one transaction. Rows not named in
// the file are left alone.
func ApplyPostgres(ctx context.Context, db *sql.DB, s *Seed) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range s.Equipment {
		specs := e.Specs
		if specs == nil {
			specs = map[string]string{}
		}
		raw, err := json.Marshal(specs)
		if err != nil {
			return fmt.Errorf("encode specs for %s: %w", e.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO equipment (id, name, category, quantity, status, day_rate_cents, specs)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, category = EXCLUDED.category, quantity = EXCLUDED.quantity,
				status = EXCLUDED.status, day_rate_cents = EXCLUDED.day_rate_cents, specs = EXCLUDED.specs`,
			e.ID, e.Name, e.Category, e.Quantity, e.Status, e.DayRateCents, raw)
		if err != nil {
			return fmt.Errorf("failed to upsert equipment %s: %w", e.ID, err)
		}
	}

	for _, p := range s.Packages {
		keys := p.KeyEquipment
		if keys == nil {
			keys = []string{}
		}
		raw, err := json.Marshal(keys)
		if err != nil {
			return fmt.Errorf("encode key equipment for %s: %w", p.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO packages (id, name, base_price_cents, key_equipment)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, base_price_cents = EXCLUDED.base_price_cents, key_equipment = EXCLUDED.key_equipment`,
			p.ID, p.Name, p.BasePriceCents, raw)
		if err != nil {
			return fmt.Errorf("failed to upsert package %s: %w", p.ID, err)
		}
	}

	for _, a := range s.AddOns {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO add_ons (id, name, category, price_cents)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name, category = EXCLUDED.category, price_cents = EXCLUDED.price_cents`,
			a.ID, a.Name, a.Category, a.PriceCents)
		if err != nil {
			return fmt.Errorf("failed to upsert add-on %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog: %w", err)
	}
	logger.Info("Catalog upserted", "equipment", len(s.Equipment), "packages", len(s.Packages), "addOns", len(s.AddOns))
	return nil
}
