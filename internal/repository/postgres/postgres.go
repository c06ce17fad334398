package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"github.com/lib/pq"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/logger"
	"gearbox-rental-backend/internal/repository"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the PostgreSQL implementation of repository.Store.
type Store struct {
	db      *sql.DB
	q       querier
	tx      *sql.Tx
	retrier *retrier.Retrier
}

// DefaultRetryBackoff is the pause before the single retry of a transient failure.
const DefaultRetryBackoff = 50 * time.Millisecond

func NewStore(db *sql.DB) *Store {
	return NewStoreWithBackoff(db, DefaultRetryBackoff)
}

func NewStoreWithBackoff(db *sql.DB, backoff time.Duration) *Store {
	return &Store{
		db:      db,
		q:       db,
		retrier: retrier.New(retrier.ConstantBackoff(1, backoff), transientClassifier{}),
	}
}

func (s *Store) Equipment() repository.EquipmentRepository { return &equipmentRepository{s} }
func (s *Store) Packages() repository.PackageRepository { return &packageRepository{s} }
func (s *Store) AddOns() repository.AddOnRepository { return &addOnRepository{s} }
func (s *Store) Customers() repository.CustomerRepository { return &customerRepository{s} }
func (s *Store) Bookings() repository.BookingRepository { return &bookingRepository{s} }
func (s *Store) Inspections() repository.InspectionRepository { return &inspectionRepository{s} }
func (s *Store) PastBookings() repository.PastBookingRepository { return &pastBookingRepository{s} }
func (s *Store) Maintenance() repository.MaintenanceRepository { return &maintenanceRepository{s} }

// WithTx runs fn inside a read-committed transaction. A transient failure
// anywhere in the transaction re-runs it once from the start.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	return s.retry(ctx, "transaction", func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := fn(&Store{db: s.db, q: tx, tx: tx, retrier: s.retrier}); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// run executes a single repository operation. Outside a transaction it gets
// the retry; inside, the enclosing WithTx owns it.
func (s *Store) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if s.tx != nil {
		return fn(ctx)
	}
	return s.retry(ctx, op, fn)
}

func (s *Store) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	err := s.retrier.RunCtx(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			logger.Warn("Retrying store operation after transient failure", "operation", op, "attempt", attempt)
		}
		return fn(ctx)
	})
	if err != nil && isTransient(err) {
		logger.Error("Store unavailable", "operation", op, "attempts", attempt, "error", err)
		return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
	}
	return err
}

type transientClassifier struct{}

func (transientClassifier) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}
	if isTransient(err) {
		return retrier.Retry
	}
	return retrier.Fail
}

// isTransient reports connection loss, timeouts and the concurrency aborts
// Postgres asks clients to retry.
func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "08":
			return true
		case pqErr.Code == "40001", pqErr.Code == "40P01", pqErr.Code == "57P01":
			return true
		}
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}

// notFound converts sql.ErrNoRows into domain.ErrNotFound.
func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NotFoundf("%s %s", what, id)
	}
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return nullString(*s)
}

func statusStrings(statuses []domain.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}
