package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLateFeeCents(t *testing.T) {
	tests := []struct {
		minutes  int
		expected int64
	}{
		{0, 0},
		{25, 0},
		{30, 0},
		{31, 2500},
		{60, 2500},
		{61, 2500},
		{90, 2500},
		{119, 2500},
		{120, 3500},
		{180, 4500},
		{600, 11500},
		{1500, 20000},
		{10000, 20000},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			assert.Equal(t, tt.expected, LateFeeCents(tt.minutes), "minutes late: %d", tt.minutes)
		})
	}
}

func TestLateFeePolicy_FeeBetween(t *testing.T) {
	scheduled := time.Date(2025, 3, 5, 18, 0, 0, 0, time.UTC)

	t.Run("Early return", func(t *testing.T) {
		assert.Equal(t, int64(0), DefaultLateFeePolicy.FeeBetween(scheduled, scheduled.Add(-time.Hour)))
	})

	t.Run("Three hours late", func(t *testing.T) {
		assert.Equal(t, int64(4500), DefaultLateFeePolicy.FeeBetween(scheduled, scheduled.Add(3*time.Hour)))
	})

	t.Run("Custom cap", func(t *testing.T) {
		p := DefaultLateFeePolicy
		p.CapCents = 3000
		assert.Equal(t, int64(3000), p.FeeBetween(scheduled, scheduled.Add(10*time.Hour)))
	})
}

func TestParseDate(t *testing.T) {
	t.Run("Date only", func(t *testing.T) {
		d, err := ParseDate("2024-01-15")
		assert.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), d)
	})

	t.Run("RFC 3339", func(t *testing.T) {
		d, err := ParseDate("2024-01-15T10:30:00Z")
		assert.NoError(t, err)
		assert.Equal(t, 10, d.Hour())
	})

	t.Run("Empty", func(t *testing.T) {
		_, err := ParseDate("  ")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "date is required")
	})

	t.Run("Invalid format", func(t *testing.T) {
		_, err := ParseDate("2024/01/15")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid date format")
	})
}
