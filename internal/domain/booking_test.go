package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInterval_WidensToUTCDays(t *testing.T) {
	t.Run("Offset timestamps land on their UTC day", func(t *testing.T) {
		est := time.FixedZone("EST", -5*60*60)
		// 21:00 EST on March 10 is 02:00 UTC on March 11.
		i, err := NewInterval(time.Date(2026, 3, 10, 21, 0, 0, 0, est), time.Date(2026, 3, 11, 9, 0, 0, 0, est))
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), i.Start)
		assert.Equal(t, time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), i.End)
		assert.Equal(t, time.UTC, i.Start.Location())
	})

	t.Run("Same instant in different zones widens identically", func(t *testing.T) {
		pickup := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		tokyo := time.FixedZone("JST", 9*60*60)
		stored := Booking{PickupDate: pickup.In(tokyo), ReturnDate: pickup.AddDate(0, 0, 2).In(tokyo)}

		query, err := NewInterval(pickup, pickup.AddDate(0, 0, 2))
		require.NoError(t, err)
		assert.Equal(t, query, stored.Interval())
		assert.Equal(t, Day(pickup), Day(pickup.In(tokyo)))
	})

	t.Run("Touching days overlap", func(t *testing.T) {
		a := Day(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
		b, err := NewInterval(time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC), time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.True(t, a.Overlaps(b))
		assert.False(t, a.Overlaps(Day(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC))))
	})

	t.Run("Missing or reversed dates", func(t *testing.T) {
		_, err := NewInterval(time.Time{}, time.Now())
		assert.ErrorIs(t, err, ErrValidation)

		_, err = NewInterval(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))
		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestNewBookingRequest_ValidateDeliveryOption(t *testing.T) {
	base := func(option DeliveryOption) *NewBookingRequest {
		return &NewBookingRequest{
			EquipmentIDs:   []string{"mic"},
			PickupDate:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			ReturnDate:     time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
			DeliveryOption: option,
			Customer:       Customer{Name: "Dana", Email: "dana@example.com"},
		}
	}

	assert.NoError(t, base("").Validate())
	assert.NoError(t, base(DeliveryWarehousePickup).Validate())
	assert.NoError(t, base(DeliveryLocal).Validate())

	err := base("Drone").Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "delivery_option", verr.Field)
}
