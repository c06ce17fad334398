package domain

import "time"

type ArchiveAction string

const (
	ArchiveActionDeleted  ArchiveAction = "deleted"
	ArchiveActionRejected ArchiveAction = "rejected"
)

func (a ArchiveAction) Valid() bool {
	return a == ArchiveActionDeleted || a == ArchiveActionRejected
}

// PastBooking is an immutable snapshot taken when a booking is deleted or
// rejected. Names are copied so the record survives catalog deletions, and
// OriginalBookingID is a plain value rather than a foreign key.
type PastBooking struct {
	ID                  string            `json:"id"`
	OriginalBookingID   string            `json:"original_booking_id"`
	CustomerID          string            `json:"customer_id,omitempty"`
	CustomerName        string            `json:"customer_name,omitempty"`
	CustomerEmail       string            `json:"customer_email,omitempty"`
	PackageID           *string           `json:"package_id,omitempty"`
	PackageName         string            `json:"package_name,omitempty"`
	PickupDate          time.Time         `json:"pickup_date"`
	ReturnDate          time.Time         `json:"return_date"`
	TotalPriceCents     int64             `json:"total_price_cents"`
	DepositCents        int64             `json:"deposit_cents"`
	LateFeeCents        int64             `json:"late_fee_cents"`
	DeliveryOption      DeliveryOption    `json:"delivery_option"`
	OriginalStatus      BookingStatus     `json:"original_status"`
	Action              ArchiveAction     `json:"action"`
	ActionBy            string            `json:"action_by,omitempty"`
	ActionReason        string            `json:"action_reason,omitempty"`
	InspectionCompleted bool              `json:"inspection_completed"`
	DepositRefunded     bool              `json:"deposit_refunded"`
	Items               []PastBookingItem `json:"items"`
	BookedAt            time.Time         `json:"booked_at"`
	ArchivedAt          time.Time         `json:"archived_at"`
}

type PastBookingItem struct {
	ID            string `json:"id"`
	PastBookingID string `json:"past_booking_id"`
	EquipmentID   string `json:"equipment_id,omitempty"`
	EquipmentName string `json:"equipment_name,omitempty"`
	AddOnID       string `json:"add_on_id,omitempty"`
	AddOnName     string `json:"add_on_name,omitempty"`
	Quantity      int    `json:"quantity"`
}

type PastBookingFilter struct {
	Query          string
	Action         ArchiveAction
	OriginalStatus BookingStatus
	Page           int
	Limit          int
}

func (f *PastBookingFilter) Normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 50
	}
}
