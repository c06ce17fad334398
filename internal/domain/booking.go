package domain

import (
	"fmt"
	"time"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "Pending"
	BookingStatusConfirmed BookingStatus = "Confirmed"
	BookingStatusActive    BookingStatus = "Active"
	BookingStatusCompleted BookingStatus = "Completed"
	BookingStatusCancelled BookingStatus = "Cancelled"
)

// HoldingStatuses are the statuses whose bookings reduce availability.
// Completed is excluded: the units are assumed returned once the rental is over.
var HoldingStatuses = []BookingStatus{BookingStatusConfirmed, BookingStatusActive}

func (s BookingStatus) Holding() bool {
	return s == BookingStatusConfirmed || s == BookingStatusActive
}

func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

type DeliveryOption string

const (
	DeliveryWarehousePickup DeliveryOption = "WarehousePickup"
	DeliveryLocal           DeliveryOption = "LocalDelivery"
)

func (d DeliveryOption) Valid() bool {
	return d == DeliveryWarehousePickup || d == DeliveryLocal
}

// Interval is a closed date range. Both boundary days belong to the rental,
// so a pickup on the day another booking returns is a conflict.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval validates a rental range and widens it to whole UTC calendar days.
func NewInterval(start, end time.Time) (Interval, error) {
	if start.IsZero() {
		return Interval{}, NewValidationError("pickup_date", "is required")
	}
	if end.IsZero() {
		return Interval{}, NewValidationError("return_date", "is required")
	}
	if end.Before(start) {
		return Interval{}, NewValidationError("return_date", "must not be before pickup date")
	}
	return Interval{Start: startOfDay(start), End: endOfDay(end)}, nil
}

// Day returns the single-day interval covering t's calendar day.
func Day(t time.Time) Interval {
	return Interval{Start: startOfDay(t), End: endOfDay(t)}
}

// startOfDay is midnight UTC of t's UTC calendar day, whatever zone t
// arrives in.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func (i Interval) Overlaps(o Interval) bool {
	return !i.Start.After(o.End) && !i.End.Before(o.Start)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s]", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}

type ItemKind string

const (
	ItemKindEquipment ItemKind = "equipment"
	ItemKindAddOn     ItemKind = "addon"
)

// ItemRef names what a booking item references. Exactly one kind is set,
// which replaces a pair of nullable foreign keys.
type ItemRef struct {
	Kind ItemKind `json:"kind"`
	ID   string   `json:"id"`
}

func EquipmentRef(id string) ItemRef { return ItemRef{Kind: ItemKindEquipment, ID: id} }
func AddOnRef(id string) ItemRef     { return ItemRef{Kind: ItemKindAddOn, ID: id} }

func (r ItemRef) IsEquipment() bool { return r.Kind == ItemKindEquipment }
func (r ItemRef) IsAddOn() bool     { return r.Kind == ItemKindAddOn }

// EquipmentID returns the referenced equipment id, or "" for add-ons.
func (r ItemRef) EquipmentID() string {
	if r.Kind == ItemKindEquipment {
		return r.ID
	}
	return ""
}

// AddOnID returns the referenced add-on id, or "" for equipment.
func (r ItemRef) AddOnID() string {
	if r.Kind == ItemKindAddOn {
		return r.ID
	}
	return ""
}

func (r ItemRef) Validate() error {
	if r.Kind != ItemKindEquipment && r.Kind != ItemKindAddOn {
		return NewValidationError("item", fmt.Sprintf("unknown item kind %q", r.Kind))
	}
	if r.ID == "" {
		return NewValidationError("item", "reference id is required")
	}
	return nil
}

type BookingItem struct {
	ID        string  `json:"id"`
	BookingID string  `json:"booking_id"`
	Ref       ItemRef `json:"ref"`
	Quantity  int     `json:"quantity"`
	// Name is filled by read models only.
	Name string `json:"name,omitempty"`
}

type Customer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Booking struct {
	ID                  string         `json:"id"`
	CustomerID          string         `json:"customer_id"`
	PackageID           *string        `json:"package_id,omitempty"`
	PickupDate          time.Time      `json:"pickup_date"`
	ReturnDate          time.Time      `json:"return_date"`
	TotalPriceCents     int64          `json:"total_price_cents"`
	DepositCents        int64          `json:"deposit_cents"`
	LateFeeCents        int64          `json:"late_fee_cents"`
	DeliveryOption      DeliveryOption `json:"delivery_option"`
	Status              BookingStatus  `json:"status"`
	InspectionCompleted bool           `json:"inspection_completed"`
	DepositRefunded     bool           `json:"deposit_refunded"`
	Items               []BookingItem  `json:"items"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// Interval returns the booking's rental range widened to whole days.
func (b *Booking) Interval() Interval {
	return Interval{Start: startOfDay(b.PickupDate), End: endOfDay(b.ReturnDate)}
}

// EquipmentUnits sums explicit equipment item quantities per equipment id.
func (b *Booking) EquipmentUnits() map[string]int {
	units := make(map[string]int)
	for _, it := range b.Items {
		if it.Ref.IsEquipment() {
			units[it.Ref.ID] += it.Quantity
		}
	}
	return units
}

// BookingDetail is the read model served to the back office.
type BookingDetail struct {
	Booking
	Customer    *Customer            `json:"customer,omitempty"`
	PackageName string               `json:"package_name,omitempty"`
	Inspection  *InspectionChecklist `json:"inspection,omitempty"`
}

// NewBookingRequest carries what the storefront submits when a customer books.
type NewBookingRequest struct {
	PackageID       string         `json:"package_id,omitempty"`
	EquipmentIDs    []string       `json:"equipment_ids"`
	AddOnIDs        []string       `json:"add_on_ids"`
	PickupDate      time.Time      `json:"pickup_date"`
	ReturnDate      time.Time      `json:"return_date"`
	TotalPriceCents int64          `json:"total_price_cents"`
	DepositCents    int64          `json:"deposit_cents"`
	DeliveryOption  DeliveryOption `json:"delivery_option"`
	Customer        Customer       `json:"customer"`
}

func (r *NewBookingRequest) Validate() error {
	if _, err := NewInterval(r.PickupDate, r.ReturnDate); err != nil {
		return err
	}
	if r.PackageID == "" && len(r.EquipmentIDs) == 0 && len(r.AddOnIDs) == 0 {
		return NewValidationError("items", "a package, equipment or add-on is required")
	}
	for _, id := range r.EquipmentIDs {
		if id == "" {
			return NewValidationError("equipment_ids", "must not contain empty ids")
		}
	}
	for _, id := range r.AddOnIDs {
		if id == "" {
			return NewValidationError("add_on_ids", "must not contain empty ids")
		}
	}
	if r.TotalPriceCents < 0 {
		return NewValidationError("total_price_cents", "must not be negative")
	}
	if r.DepositCents < 0 {
		return NewValidationError("deposit_cents", "must not be negative")
	}
	if r.DeliveryOption != "" && !r.DeliveryOption.Valid() {
		return NewValidationError("delivery_option", fmt.Sprintf("unknown delivery option %q", r.DeliveryOption))
	}
	if r.Customer.Email == "" {
		return NewValidationError("customer.email", "is required")
	}
	if r.Customer.Name == "" {
		return NewValidationError("customer.name", "is required")
	}
	return nil
}

// CalendarEntry is a booking projected onto the back-office calendar.
type CalendarEntry struct {
	BookingID   string        `json:"booking_id"`
	Status      BookingStatus `json:"status"`
	PickupDate  time.Time     `json:"pickup_date"`
	ReturnDate  time.Time     `json:"return_date"`
	PackageID   *string       `json:"package_id,omitempty"`
	PackageName string        `json:"package_name,omitempty"`
	Items       []BookingItem `json:"items"`
}

// CalendarStatuses are shown on the calendar; Completed is included for history.
var CalendarStatuses = []BookingStatus{BookingStatusConfirmed, BookingStatusActive, BookingStatusCompleted}
