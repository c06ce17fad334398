package domain

import "time"

type EquipmentStatus string

const (
	EquipmentStatusActive   EquipmentStatus = "Active"
	EquipmentStatusInRepair EquipmentStatus = "InRepair"
	EquipmentStatusRetired  EquipmentStatus = "Retired"
)

func (s EquipmentStatus) Valid() bool {
	switch s {
	case EquipmentStatusActive, EquipmentStatusInRepair, EquipmentStatusRetired:
		return true
	}
	return false
}

// Equipment is a rentable model. Quantity is the number of physical units
// owned and is only changed by inventory edits, never by bookings.
type Equipment struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Category     string            `json:"category"`
	Quantity     int               `json:"quantity"`
	Status       EquipmentStatus   `json:"status"`
	DayRateCents int64             `json:"day_rate_cents"`
	Specs        map[string]string `json:"specs,omitempty"`
}

func (e *Equipment) Offerable() bool {
	return e != nil && e.Status == EquipmentStatusActive
}

// Package bundles equipment. KeyEquipment keeps repetition: an id listed
// twice means the package holds two units of that model.
type Package struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	BasePriceCents int64    `json:"base_price_cents"`
	KeyEquipment   []string `json:"key_equipment"`
}

// UnitsByEquipment counts how many units of each equipment id the package holds.
func (p *Package) UnitsByEquipment() map[string]int {
	units := make(map[string]int)
	if p == nil {
		return units
	}
	for _, id := range p.KeyEquipment {
		units[id]++
	}
	return units
}

type AddOn struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	PriceCents int64  `json:"price_cents"`
}

type MaintenanceLog struct {
	ID          string          `json:"id"`
	EquipmentID string          `json:"equipment_id"`
	Status      EquipmentStatus `json:"status,omitempty"`
	Notes       string          `json:"notes"`
	RepairedBy  string          `json:"repaired_by,omitempty"`
	Date        time.Time       `json:"date"`
}

// InventoryLine is one row of an inventory snapshot. Booked is reported as
// computed and may exceed Total after a race; only Available is clamped.
type InventoryLine struct {
	Total     int `json:"total"`
	Booked    int `json:"booked"`
	Available int `json:"available"`
}
