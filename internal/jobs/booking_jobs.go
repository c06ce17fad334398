package jobs

import (
	"context"

	"gearbox-rental-backend/internal/logger"
)

// AccrueLateFees reprices every Active booking whose return date has passed.
func (jr *JobRunner) AccrueLateFees() {
	jr.runWithRecovery("AccrueLateFees", func() {
		ctx := context.Background()

		updated, err := jr.services.Bookings.AccrueLateFees(ctx)
		if err != nil {
			logger.Error("Failed to accrue late fees", "error", err)
			return
		}
		logger.Info("Late fees accrued", "updated", updated)
	})
}

// AuditOversell compares today's holds with physical stock and warns for
// every equipment id booked beyond its quantity. Such rows can only come from
// data written outside the confirm path.
func (jr *JobRunner) AuditOversell() {
	jr.runWithRecovery("AuditOversell", func() {
		ctx := context.Background()
		today := jr.now().UTC()

		snapshot, err := jr.services.Availability.InventorySnapshot(ctx, today)
		if err != nil {
			logger.Error("Failed to take inventory snapshot", "error", err)
			return
		}

		oversold := 0
		for id, line := range snapshot {
			if line.Booked > line.Total {
				oversold++
				logger.Warn("Equipment oversold",
					"equipmentID", id,
					"date", today.Format("2006-01-02"),
					"total", line.Total,
					"booked", line.Booked,
				)
			}
		}
		logger.Info("Oversell audit finished", "equipment", len(snapshot), "oversold", oversold)
	})
}
