package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gearbox-rental-backend/internal/config"
)

type fakeJobs struct {
	cfg *config.Config
}

func (f *fakeJobs) Config() *config.Config { return f.cfg }
func (f *fakeJobs) AccrueLateFees()        {}
func (f *fakeJobs) AuditOversell()         {}

func TestNewScheduler(t *testing.T) {
	t.Run("Registers both jobs", func(t *testing.T) {
		cfg := &config.Config{Scheduler: config.SchedulerConfig{
			AccrueLateFees: "0 */15 * * * *",
			AuditOversell:  "0 0 6 * * *",
		}}
		s, err := NewScheduler(&fakeJobs{cfg: cfg})
		require.NoError(t, err)
		assert.Len(t, s.Entries(), 2)

		s.Start()
		s.Stop()
	})

	t.Run("Rejects a five-field spec", func(t *testing.T) {
		cfg := &config.Config{Scheduler: config.SchedulerConfig{
			AccrueLateFees: "*/15 * * * *",
			AuditOversell:  "0 0 6 * * *",
		}}
		_, err := NewScheduler(&fakeJobs{cfg: cfg})
		assert.Error(t, err)
	})
}
