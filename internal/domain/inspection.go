package domain

import "time"

type PhysicalCondition string

const (
	ConditionExcellent PhysicalCondition = "Excellent"
	ConditionGood      PhysicalCondition = "Good"
	ConditionFair      PhysicalCondition = "Fair"
	ConditionDamaged   PhysicalCondition = "Damaged"
)

func (c PhysicalCondition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionDamaged:
		return true
	}
	return false
}

// InspectionChecklist is keyed by booking; resubmitting updates the same record.
type InspectionChecklist struct {
	ID                string            `json:"id"`
	BookingID         string            `json:"booking_id"`
	PhysicalCondition PhysicalCondition `json:"physical_condition"`
	AudioTest         bool              `json:"audio_test"`
	AccessoryCount    int               `json:"accessory_count"`
	Notes             string            `json:"notes,omitempty"`
	CompletedBy       string            `json:"completed_by"`
	CompletedAt       time.Time         `json:"completed_at"`
}

type InspectionInput struct {
	PhysicalCondition PhysicalCondition `json:"physical_condition"`
	AudioTest         bool              `json:"audio_test"`
	AccessoryCount    int               `json:"accessory_count"`
	Notes             string            `json:"notes"`
}

func (in InspectionInput) Validate() error {
	if !in.PhysicalCondition.Valid() {
		return NewValidationError("physical_condition", "unknown condition "+string(in.PhysicalCondition))
	}
	if in.AccessoryCount < 0 {
		return NewValidationError("accessory_count", "must not be negative")
	}
	return nil
}
