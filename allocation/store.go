package allocation

import (
	"context"
	"database/sql"
	"time"

	"github.com/sirstudly/littlehotelier-sub001/errors"
)

// Store handles persistence of allocations
type Store struct {
	db      *sql.DB
	timeNow func() time.Time
}

// NewStore creates a new allocation store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, timeNow: time.Now}
}

const allocationColumns = `allocation_id, job_id, room_type_id, room, bed, reservation_id,
	guest_name, checkin_date, checkout_date, payment_total, payment_outstanding,
	rate_plan_name, payment_status, occupancy, status, booking_reference,
	booking_source, booked_date, notes, data_href, created_date`

// Insert writes allocations in one transaction. Every record is validated
// first; one invalid record rejects the batch.
func (s *Store) Insert(ctx context.Context, allocs []*Allocation) error {
	if len(allocs) == 0 {
		return nil
	}
	for _, a := range allocs {
		if err := a.Validate(); err != nil {
			return errors.Wrapf(err, "job %d", a.JobID)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin allocation insert")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO allocations (
			job_id, room_type_id, room, bed, reservation_id, guest_name,
			checkin_date, checkout_date, payment_total, payment_outstanding,
			rate_plan_name, payment_status, occupancy, status, booking_reference,
			booking_source, booked_date, notes, data_href, created_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare allocation insert")
	}
	defer stmt.Close()

	now := s.timeNow().UTC()
	for _, a := range allocs {
		if a.CreatedDate.IsZero() {
			a.CreatedDate = now
		}
		res, err := stmt.ExecContext(ctx,
			a.JobID, nullString(a.RoomTypeID), a.Room, a.Bed, a.ReservationID, nullString(a.GuestName),
			a.CheckinDate.Format(DateLayout), a.CheckoutDate.Format(DateLayout),
			a.PaymentTotal, a.PaymentOutstanding,
			nullString(a.RatePlanName), nullString(a.PaymentStatus), a.Occupancy, nullString(a.Status),
			nullString(a.BookingReference), nullString(a.BookingSource), formatDate(a.BookedDate),
			nullString(a.Notes), nullString(a.DataHref), a.CreatedDate.UTC())
		if err != nil {
			return errors.Wrapf(err, "failed to insert allocation for room %s", a.Room)
		}
		if a.ID, err = res.LastInsertId(); err != nil {
			return errors.Wrap(err, "failed to read allocation id")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit allocation insert")
	}
	return nil
}

// ListByJob returns a job's allocations in insertion order.
func (s *Store) ListByJob(ctx context.Context, jobID int64) ([]*Allocation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+allocationColumns+` FROM allocations WHERE job_id = ? ORDER BY allocation_id ASC`, jobID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list allocations for job %d", jobID)
	}
	defer rows.Close()

	var allocs []*Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocs = append(allocs, a)
	}
	return allocs, errors.Wrap(rows.Err(), "failed to iterate allocations")
}

// CountByJob returns how many allocations a job produced.
func (s *Store) CountByJob(ctx context.Context, jobID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM allocations WHERE job_id = ?`, jobID).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to count allocations for job %d", jobID)
	}
	return n, nil
}

// ReservationIDs returns the distinct reservation ids of a job's allocations.
func (s *Store) ReservationIDs(ctx context.Context, jobID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT reservation_id FROM allocations
		WHERE job_id = ? AND reservation_id IS NOT NULL
		ORDER BY reservation_id`, jobID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list reservations for job %d", jobID)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "failed to scan reservation id")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "failed to iterate reservation ids")
}

// Enrich merges booking detail into every allocation of jobID that belongs
// to reservationID and returns how many rows were updated. Empty fields in e
// leave the stored value unchanged.
func (s *Store) Enrich(ctx context.Context, jobID int64, reservationID string, e Enrichment) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE allocations SET
			booking_reference = COALESCE(?, booking_reference),
			booking_source = COALESCE(?, booking_source),
			booked_date = COALESCE(?, booked_date),
			notes = COALESCE(?, notes)
		WHERE job_id = ? AND reservation_id = ?`,
		nullString(e.BookingReference), nullString(e.BookingSource), formatDate(e.BookedDate),
		nullString(e.Notes), jobID, reservationID)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to enrich reservation %s of job %d", reservationID, jobID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read rows affected")
	}
	return n, nil
}

func scanAllocation(rows *sql.Rows) (*Allocation, error) {
	var a Allocation
	var roomTypeID, bed, reservationID, guestName, ratePlan, paymentStatus, status sql.NullString
	var bookingRef, bookingSource, bookedDate, notes, href sql.NullString
	var checkin, checkout string
	var total, outstanding sql.NullFloat64
	var occupancy sql.NullInt64

	if err := rows.Scan(&a.ID, &a.JobID, &roomTypeID, &a.Room, &bed, &reservationID,
		&guestName, &checkin, &checkout, &total, &outstanding,
		&ratePlan, &paymentStatus, &occupancy, &status, &bookingRef,
		&bookingSource, &bookedDate, &notes, &href, &a.CreatedDate); err != nil {
		return nil, errors.Wrap(err, "failed to scan allocation")
	}

	var err error
	if a.CheckinDate, err = time.Parse(DateLayout, checkin); err != nil {
		return nil, errors.Wrapf(err, "allocation %d: bad checkin_date", a.ID)
	}
	if a.CheckoutDate, err = time.Parse(DateLayout, checkout); err != nil {
		return nil, errors.Wrapf(err, "allocation %d: bad checkout_date", a.ID)
	}
	if bookedDate.Valid {
		t, err := time.Parse(DateLayout, bookedDate.String)
		if err != nil {
			return nil, errors.Wrapf(err, "allocation %d: bad booked_date", a.ID)
		}
		a.BookedDate = &t
	}

	a.RoomTypeID = roomTypeID.String
	if bed.Valid {
		a.Bed = &bed.String
	}
	if reservationID.Valid {
		a.ReservationID = &reservationID.String
	}
	if total.Valid {
		a.PaymentTotal = &total.Float64
	}
	if outstanding.Valid {
		a.PaymentOutstanding = &outstanding.Float64
	}
	if occupancy.Valid {
		n := int(occupancy.Int64)
		a.Occupancy = &n
	}
	a.GuestName = guestName.String
	a.RatePlanName = ratePlan.String
	a.PaymentStatus = paymentStatus.String
	a.Status = status.String
	a.BookingReference = bookingRef.String
	a.BookingSource = bookingSource.String
	a.Notes = notes.String
	a.DataHref = href.String
	return &a, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func formatDate(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(DateLayout)
}
