package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/repository/memory"
)

const sample = `
equipment:
  - id: spk
    name: QSC K12
    category: Speakers
    quantity: 4
    day_rate_cents: 6000
    specs:
      watts: "1000"
  - id: sub
    name: QSC KS118
    category: Speakers
    quantity: 1
    status: InRepair
packages:
  - id: party
    name: Party PA
    base_price_cents: 25000
    key_equipment: [spk, spk, sub]
add_ons:
  - id: cables
    name: Cable kit
    category: Cables
    price_cents: 1500
`

func TestParse(t *testing.T) {
	seed, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, seed.Equipment, 2)
	assert.Equal(t, "Active", seed.Equipment[0].Status)
	assert.Equal(t, "InRepair", seed.Equipment[1].Status)
	assert.Equal(t, []string{"spk", "spk", "sub"}, seed.Packages[0].KeyEquipment)

	t.Run("Unknown key equipment", func(t *testing.T) {
		_, err := Parse([]byte("packages:\n  - id: p\n    name: P\n    key_equipment: [ghost]\n"))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Duplicate equipment", func(t *testing.T) {
		_, err := Parse([]byte("equipment:\n  - {id: a, name: A}\n  - {id: a, name: B}\n"))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Bad status", func(t *testing.T) {
		_, err := Parse([]byte("equipment:\n  - {id: a, name: A, status: Lost}\n"))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestApplyMemory(t *testing.T) {
	seed, err := Parse([]byte(sample))
	require.NoError(t, err)
	store := memory.NewStore()
	ApplyMemory(store, seed)

	ctx := context.Background()
	pkg, err := store.Packages().GetByID(ctx, "party")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"spk": 2, "sub": 1}, pkg.UnitsByEquipment())

	active, err := store.Equipment().ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "spk", active[0].ID)
}

func TestApplyPostgres(t *testing.T) {
	seed, err := Parse([]byte(sample))
	require.NoError(t, err)

	t.Run("Upserts in one transaction", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO equipment").
			WithArgs("spk", "QSC K12", "Speakers", 4, "Active", int64(6000), []byte(`{"watts":"1000"}`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO equipment").
			WithArgs("sub", "QSC KS118", "Speakers", 1, "InRepair", int64(0), []byte(`{}`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO packages").
			WithArgs("party", "Party PA", int64(25000), []byte(`["spk","spk","sub"]`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO add_ons").
			WithArgs("cables", "Cable kit", "Cables", int64(1500)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, ApplyPostgres(context.Background(), db, seed))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Rolls back on failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO equipment").WillReturnError(errors.New("relation does not exist"))
		mock.ExpectRollback()

		err = ApplyPostgres(context.Background(), db, seed)
		assert.ErrorContains(t, err, "spk")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
