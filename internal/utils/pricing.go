package utils

import (
	"fmt"
	"strings"
	"time"
)

// LateFeePolicy prices a late return. All amounts are in cents.
type LateFeePolicy struct {
	GraceMinutes   int
	FirstHourCents int64
	HourlyCents    int64
	CapCents       int64
}

// DefaultLateFeePolicy: 30 minute grace, $25 for the first hour, $10 for each
// further full hour, capped at $200. Beyond the cap, daily-rate billing
// happens out of band.
var DefaultLateFeePolicy = LateFeePolicy{
	GraceMinutes:   30,
	FirstHourCents: 2500,
	HourlyCents:    1000,
	CapCents:       20000,
}

// FeeCents returns the late fee for a return minutesLate past the scheduled time.
func (p LateFeePolicy) FeeCents(minutesLate int) int64 {
	if minutesLate <= p.GraceMinutes {
		return 0
	}
	fee := p.FirstHourCents
	if minutesLate > 60 {
		fee += p.HourlyCents * int64((minutesLate-60)/60)
	}
	if fee > p.CapCents {
		fee = p.CapCents
	}
	return fee
}

// FeeBetween prices a return at returnedAt against the scheduled return time.
func (p LateFeePolicy) FeeBetween(scheduled, returnedAt time.Time) int64 {
	if !returnedAt.After(scheduled) {
		return 0
	}
	return p.FeeCents(int(returnedAt.Sub(scheduled) / time.Minute))
}

// LateFeeCents applies the default policy.
func LateFeeCents(minutesLate int) int64 {
	return DefaultLateFeePolicy.FeeCents(minutesLate)
}

// ParseDate accepts either yyyy-mm-dd or an RFC 3339 timestamp.
func ParseDate(dateStr string) (time.Time, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if t, err := time.Parse(time.RFC3339, dateStr); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format, expected yyyy-mm-dd or RFC 3339")
	}
	return t, nil
}
