// Package memory is an in-process repository.Store. Transactions run one at a
// time against a private copy of the data that replaces the shared copy on
// commit, so every transaction is serializable.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/repository"
)

type data struct {
	equipment    map[string]domain.Equipment
	packages     map[string]domain.Package
	addOns       map[string]domain.AddOn
	customers    map[string]domain.Customer
	bookings     map[string]domain.Booking
	inspections  map[string]domain.InspectionChecklist
	pastBookings map[string]domain.PastBooking
	maintenance  []domain.MaintenanceLog
}

func newData() *data {
	return &data{
		equipment:    make(map[string]domain.Equipment),
		packages:     make(map[string]domain.Package),
		addOns:       make(map[string]domain.AddOn),
		customers:    make(map[string]domain.Customer),
		bookings:     make(map[string]domain.Booking),
		inspections:  make(map[string]domain.InspectionChecklist),
		pastBookings: make(map[string]domain.PastBooking),
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.equipment {
		c.equipment[k] = copyEquipment(v)
	}
	for k, v := range d.packages {
		c.packages[k] = copyPackage(v)
	}
	for k, v := range d.addOns {
		c.addOns[k] = v
	}
	for k, v := range d.customers {
		c.customers[k] = v
	}
	for k, v := range d.bookings {
		c.bookings[k] = copyBooking(v)
	}
	for k, v := range d.inspections {
		c.inspections[k] = v
	}
	for k, v := range d.pastBookings {
		c.pastBookings[k] = copyPastBooking(v)
	}
	c.maintenance = append([]domain.MaintenanceLog(nil), d.maintenance...)
	return c
}

type shared struct {
	mu sync.Mutex
	d  *data

	faultMu sync.Mutex
	faults  map[string]error
}

// Store implements repository.Store in memory.
type Store struct {
	sh *shared
	tx *data
}

func NewStore() *Store {
	return &Store{sh: &shared{d: newData(), faults: make(map[string]error)}}
}

func (s *Store) Equipment() repository.EquipmentRepository { return equipmentRepo{s} }
func (s *Store) Packages() repository.PackageRepository { return packageRepo{s} }
func (s *Store) AddOns() repository.AddOnRepository { return addOnRepo{s} }
func (s *Store) Customers() repository.CustomerRepository { return customerRepo{s} }
func (s *Store) Bookings() repository.BookingRepository { return bookingRepo{s} }
func (s *Store) Inspections() repository.InspectionRepository { return inspectionRepo{s} }
func (s *Store) PastBookings() repository.PastBookingRepository { return pastBookingRepo{s} }
func (s *Store) Maintenance() repository.MaintenanceRepository { return maintenanceRepo{s} }

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.sh.d.clone()
	if err := fn(&Store{sh: s.sh, tx: work}); err != nil {
		return err
	}
	s.sh.d = work
	return nil
}

// FailOn makes the next call of op return err. Operation names are
// "<repository>.<Method>", for example "bookings.Delete".
func (s *Store) FailOn(op string, err error) {
	s.sh.faultMu.Lock()
	defer s.sh.faultMu.Unlock()
	s.sh.faults[op] = err
}

func (s *Store) takeFault(op string) error {
	s.sh.faultMu.Lock()
	defer s.sh.faultMu.Unlock()
	err, ok := s.sh.faults[op]
	if ok {
		delete(s.sh.faults, op)
	}
	return err
}

// do runs fn against the transaction's data, or against the shared data
// under the store lock.
func (s *Store) do(ctx context.Context, op string, fn func(d *data) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.takeFault(op); err != nil {
		return err
	}
	if s.tx != nil {
		return fn(s.tx)
	}
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	return fn(s.sh.d)
}

// Seeding helpers for the catalog, which this service reads but never edits.

func (s *Store) PutEquipment(e domain.Equipment) {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	s.sh.d.equipment[e.ID] = copyEquipment(e)
}

func (s *Store) DeleteEquipment(id string) {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	delete(s.sh.d.equipment, id)
}

func (s *Store) PutPackage(p domain.Package) {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	s.sh.d.packages[p.ID] = copyPackage(p)
}

func (s *Store) PutAddOn(a domain.AddOn) {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	s.sh.d.addOns[a.ID] = a
}

func (s *Store) PutCustomer(c domain.Customer) {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	s.sh.d.customers[c.ID] = c
}

// PutBooking stores b as is, bypassing every lifecycle check.
func (s *Store) PutBooking(b domain.Booking) {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	s.sh.d.bookings[b.ID] = copyBooking(b)
}

type equipmentRepo struct{ s *Store }

func (r equipmentRepo) GetByID(ctx context.Context, id string) (*domain.Equipment, error) {
	var out domain.Equipment
	err := r.s.do(ctx, "equipment.GetByID", func(d *data) error {
		e, ok := d.equipment[id]
		if !ok {
			return domain.NotFoundf("equipment %s", id)
		}
		out = copyEquipment(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r equipmentRepo) ListActive(ctx context.Context) ([]domain.Equipment, error) {
	var out []domain.Equipment
	err := r.s.do(ctx, "equipment.ListActive", func(d *data) error {
		for _, e := range d.equipment {
			if e.Status == domain.EquipmentStatusActive {
				out = append(out, copyEquipment(e))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, err
}

// LockByIDs needs no row locks here; the transaction already owns the store.
func (r equipmentRepo) LockByIDs(ctx context.Context, ids []string) (map[string]domain.Equipment, error) {
	out := make(map[string]domain.Equipment, len(ids))
	err := r.s.do(ctx, "equipment.LockByIDs", func(d *data) error {
		for _, id := range ids {
			if e, ok := d.equipment[id]; ok {
				out[id] = copyEquipment(e)
			}
		}
		return nil
	})
	return out, err
}

func (r equipmentRepo) UpdateStatus(ctx context.Context, id string, status domain.EquipmentStatus) error {
	return r.s.do(ctx, "equipment.UpdateStatus", func(d *data) error {
		e, ok := d.equipment[id]
		if !ok {
			return domain.NotFoundf("equipment %s", id)
		}
		e.Status = status
		d.equipment[id] = e
		return nil
	})
}

type packageRepo struct{ s *Store }

func (r packageRepo) GetByID(ctx context.Context, id string) (*domain.Package, error) {
	var out domain.Package
	err := r.s.do(ctx, "packages.GetByID", func(d *data) error {
		p, ok := d.packages[id]
		if !ok {
			return domain.NotFoundf("package %s", id)
		}
		out = copyPackage(p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r packageRepo) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Package, error) {
	out := make(map[string]domain.Package, len(ids))
	err := r.s.do(ctx, "packages.GetByIDs", func(d *data) error {
		for _, id := range ids {
			if p, ok := d.packages[id]; ok {
				out[id] = copyPackage(p)
			}
		}
		return nil
	})
	return out, err
}

type addOnRepo struct{ s *Store }

func (r addOnRepo) GetByID(ctx context.Context, id string) (*domain.AddOn, error) {
	var out domain.AddOn
	err := r.s.do(ctx, "addOns.GetByID", func(d *data) error {
		a, ok := d.addOns[id]
		if !ok {
			return domain.NotFoundf("add-on %s", id)
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type customerRepo struct{ s *Store }

func (r customerRepo) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	var out domain.Customer
	err := r.s.do(ctx, "customers.GetByID", func(d *data) error {
		c, ok := d.customers[id]
		if !ok {
			return domain.NotFoundf("customer %s", id)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r customerRepo) GetOrCreate(ctx context.Context, c *domain.Customer) error {
	return r.s.do(ctx, "customers.GetOrCreate", func(d *data) error {
		for _, existing := range d.customers {
			if strings.EqualFold(existing.Email, c.Email) {
				*c = existing
				return nil
			}
		}
		d.customers[c.ID] = *c
		return nil
	})
}

type bookingRepo struct{ s *Store }

func (r bookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	return r.s.do(ctx, "bookings.Create", func(d *data) error {
		d.bookings[b.ID] = copyBooking(*b)
		return nil
	})
}

func (r bookingRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	return r.get(ctx, "bookings.GetByID", id)
}

func (r bookingRepo) GetForUpdate(ctx context.Context, id string) (*domain.Booking, error) {
	return r.get(ctx, "bookings.GetForUpdate", id)
}

func (r bookingRepo) get(ctx context.Context, op, id string) (*domain.Booking, error) {
	var out domain.Booking
	err := r.s.do(ctx, op, func(d *data) error {
		b, ok := d.bookings[id]
		if !ok {
			return domain.NotFoundf("booking %s", id)
		}
		out = d.withItemNames(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// withItemNames copies b and resolves each item's current catalog name.
func (d *data) withItemNames(b domain.Booking) domain.Booking {
	out := copyBooking(b)
	for i, it := range out.Items {
		if it.Ref.IsEquipment() {
			out.Items[i].Name = d.equipment[it.Ref.ID].Name
		} else {
			out.Items[i].Name = d.addOns[it.Ref.ID].Name
		}
	}
	return out
}

func (r bookingRepo) mutate(ctx context.Context, op, id string, fn func(b *domain.Booking)) error {
	return r.s.do(ctx, op, func(d *data) error {
		b, ok := d.bookings[id]
		if !ok {
			return domain.NotFoundf("booking %s", id)
		}
		fn(&b)
		b.UpdatedAt = time.Now()
		d.bookings[id] = b
		return nil
	})
}

func (r bookingRepo) UpdateStatus(ctx context.Context, id string, status domain.BookingStatus) error {
	return r.mutate(ctx, "bookings.UpdateStatus", id, func(b *domain.Booking) { b.Status = status })
}

func (r bookingRepo) SetInspectionCompleted(ctx context.Context, id string) error {
	return r.mutate(ctx, "bookings.SetInspectionCompleted", id, func(b *domain.Booking) { b.InspectionCompleted = true })
}

func (r bookingRepo) SetDepositRefunded(ctx context.Context, id string) error {
	return r.mutate(ctx, "bookings.SetDepositRefunded", id, func(b *domain.Booking) { b.DepositRefunded = true })
}

func (r bookingRepo) SetLateFee(ctx context.Context, id string, cents int64) error {
	return r.mutate(ctx, "bookings.SetLateFee", id, func(b *domain.Booking) { b.LateFeeCents = cents })
}

func (r bookingRepo) Delete(ctx context.Context, id string) error {
	return r.s.do(ctx, "bookings.Delete", func(d *data) error {
		if _, ok := d.bookings[id]; !ok {
			return domain.NotFoundf("booking %s", id)
		}
		delete(d.bookings, id)
		delete(d.inspections, id)
		return nil
	})
}

func (r bookingRepo) ListByStatus(ctx context.Context, statuses []domain.BookingStatus, window domain.Interval) ([]domain.Booking, error) {
	want := make(map[domain.BookingStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	return r.list(ctx, "bookings.ListByStatus", func(b domain.Booking) bool {
		return want[b.Status] && !b.PickupDate.After(window.End) && !b.ReturnDate.Before(window.Start)
	}, func(a, b domain.Booking) bool { return a.PickupDate.Before(b.PickupDate) })
}

func (r bookingRepo) ListOverdue(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	return r.list(ctx, "bookings.ListOverdue", func(b domain.Booking) bool {
		return b.Status == domain.BookingStatusActive && b.ReturnDate.Before(now)
	}, func(a, b domain.Booking) bool { return a.ReturnDate.Before(b.ReturnDate) })
}

func (r bookingRepo) list(ctx context.Context, op string, match func(domain.Booking) bool, less func(a, b domain.Booking) bool) ([]domain.Booking, error) {
	var out []domain.Booking
	err := r.s.do(ctx, op, func(d *data) error {
		for _, b := range d.bookings {
			if match(b) {
				out = append(out, d.withItemNames(b))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if less(out[i], out[j]) {
			return true
		}
		if less(out[j], out[i]) {
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

type inspectionRepo struct{ s *Store }

func (r inspectionRepo) Upsert(ctx context.Context, c *domain.InspectionChecklist) error {
	return r.s.do(ctx, "inspections.Upsert", func(d *data) error {
		if existing, ok := d.inspections[c.BookingID]; ok {
			c.ID = existing.ID
		}
		d.inspections[c.BookingID] = *c
		return nil
	})
}

func (r inspectionRepo) GetByBookingID(ctx context.Context, bookingID string) (*domain.InspectionChecklist, error) {
	var out domain.InspectionChecklist
	err := r.s.do(ctx, "inspections.GetByBookingID", func(d *data) error {
		c, ok := d.inspections[bookingID]
		if !ok {
			return domain.NotFoundf("inspection for booking %s", bookingID)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type pastBookingRepo struct{ s *Store }

func (r pastBookingRepo) Create(ctx context.Context, pb *domain.PastBooking) error {
	return r.s.do(ctx, "pastBookings.Create", func(d *data) error {
		d.pastBookings[pb.ID] = copyPastBooking(*pb)
		return nil
	})
}

func (r pastBookingRepo) GetByID(ctx context.Context, id string) (*domain.PastBooking, error) {
	var out domain.PastBooking
	err := r.s.do(ctx, "pastBookings.GetByID", func(d *data) error {
		pb, ok := d.pastBookings[id]
		if !ok {
			return domain.NotFoundf("past booking %s", id)
		}
		out = copyPastBooking(pb)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r pastBookingRepo) List(ctx context.Context, filter domain.PastBookingFilter) ([]domain.PastBooking, int, error) {
	filter.Normalize()
	q := strings.ToLower(strings.TrimSpace(filter.Query))

	var matched []domain.PastBooking
	err := r.s.do(ctx, "pastBookings.List", func(d *data) error {
		for _, pb := range d.pastBookings {
			if filter.Action != "" && pb.Action != filter.Action {
				continue
			}
			if filter.OriginalStatus != "" && pb.OriginalStatus != filter.OriginalStatus {
				continue
			}
			if q != "" && !pastBookingMatches(pb, q) {
				continue
			}
			matched = append(matched, copyPastBooking(pb))
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ArchivedAt.Equal(matched[j].ArchivedAt) {
			return matched[i].ArchivedAt.After(matched[j].ArchivedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start >= total {
		return nil, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func pastBookingMatches(pb domain.PastBooking, q string) bool {
	fields := []string{pb.CustomerName, pb.CustomerEmail, pb.PackageName}
	for _, it := range pb.Items {
		fields = append(fields, it.EquipmentName, it.AddOnName)
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

type maintenanceRepo struct{ s *Store }

func (r maintenanceRepo) Create(ctx context.Context, log *domain.MaintenanceLog) error {
	return r.s.do(ctx, "maintenance.Create", func(d *data) error {
		if _, ok := d.equipment[log.EquipmentID]; !ok {
			return domain.NotFoundf("equipment %s", log.EquipmentID)
		}
		d.maintenance = append(d.maintenance, *log)
		return nil
	})
}

func (r maintenanceRepo) List(ctx context.Context, equipmentID string) ([]domain.MaintenanceLog, error) {
	var out []domain.MaintenanceLog
	err := r.s.do(ctx, "maintenance.List", func(d *data) error {
		for _, l := range d.maintenance {
			if equipmentID == "" || l.EquipmentID == equipmentID {
				out = append(out, l)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, err
}

func copyEquipment(e domain.Equipment) domain.Equipment {
	if e.Specs != nil {
		specs := make(map[string]string, len(e.Specs))
		for k, v := range e.Specs {
			specs[k] = v
		}
		e.Specs = specs
	}
	return e
}

func copyPackage(p domain.Package) domain.Package {
	p.KeyEquipment = append([]string(nil), p.KeyEquipment...)
	return p
}

func copyBooking(b domain.Booking) domain.Booking {
	b.Items = append([]domain.BookingItem(nil), b.Items...)
	if b.PackageID != nil {
		id := *b.PackageID
		b.PackageID = &id
	}
	return b
}

func copyPastBooking(pb domain.PastBooking) domain.PastBooking {
	pb.Items = append([]domain.PastBookingItem(nil), pb.Items...)
	if pb.PackageID != nil {
		id := *pb.PackageID
		pb.PackageID = &id
	}
	return pb
}
