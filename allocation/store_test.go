package allocation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lhtest "github.com/sirstudly/littlehotelier-sub001/internal/testing"
	"github.com/sirstudly/littlehotelier-sub001/internal/util"
	"github.com/sirstudly/littlehotelier-sub001/job"
)

func date(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func setup(t *testing.T) (*Store, int64) {
	t.Helper()
	database := lhtest.CreateTestDB(t)
	j, err := job.New("allocation-scraper", nil)
	require.NoError(t, err)
	require.NoError(t, job.NewStore(database).CreateJob(context.Background(), j))
	return NewStore(database), j.ID
}

func reservation(jobID int64, id, room string, bed *string, checkin, checkout string) *Allocation {
	return &Allocation{
		JobID:         jobID,
		RoomTypeID:    "rt-1",
		Room:          room,
		Bed:           bed,
		ReservationID: util.Ptr(id),
		GuestName:     "Guest " + id,
		CheckinDate:   date(checkin),
		CheckoutDate:  date(checkout),
		PaymentTotal:  util.Ptr(120.5),
		Occupancy:     util.Ptr(2),
		Status:        StatusConfirmed,
		DataHref:      "/reservations/" + id,
	}
}

func TestInsertAndList(t *testing.T) {
	store, jobID := setup(t)
	ctx := context.Background()

	closure := &Allocation{JobID: jobID, Room: "12", CheckinDate: date("2024-05-01"), CheckoutDate: date("2024-05-03"), Status: StatusClosed, GuestName: "Maintenance"}
	res := reservation(jobID, "R100", "Room 12", util.Ptr("Bed A"), "2024-05-02", "2024-05-05")

	require.NoError(t, store.Insert(ctx, []*Allocation{closure, res}))
	assert.NotZero(t, closure.ID)
	assert.NotZero(t, res.ID)

	got, err := store.ListByJob(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.True(t, got[0].IsClosure())
	assert.Nil(t, got[0].ReservationID)
	assert.Nil(t, got[0].Bed)
	assert.Nil(t, got[0].PaymentTotal)
	assert.Equal(t, 2, got[0].Nights())

	r := got[1]
	require.NotNil(t, r.ReservationID)
	assert.Equal(t, "R100", *r.ReservationID)
	require.NotNil(t, r.Bed)
	assert.Equal(t, "Bed A", *r.Bed)
	assert.Equal(t, "rt-1", r.RoomTypeID)
	assert.Equal(t, 120.5, *r.PaymentTotal)
	assert.Nil(t, r.PaymentOutstanding)
	assert.Equal(t, 2, *r.Occupancy)
	assert.Equal(t, date("2024-05-02"), r.CheckinDate)
	assert.Equal(t, 3, r.Nights())
	assert.Equal(t, "/reservations/R100", r.DataHref)
	assert.False(t, r.CreatedDate.IsZero())

	n, err := store.CountByJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestInsertRejectsInvalidBatch(t *testing.T) {
	store, jobID := setup(t)
	ctx := context.Background()

	good := reservation(jobID, "R1", "Room 1", nil, "2024-05-01", "2024-05-02")
	noRoom := reservation(jobID, "R2", "", nil, "2024-05-01", "2024-05-02")
	backwards := reservation(jobID, "R3", "Room 3", nil, "2024-05-04", "2024-05-02")

	assert.Error(t, store.Insert(ctx, []*Allocation{good, noRoom}))
	assert.Error(t, store.Insert(ctx, []*Allocation{backwards}))

	n, err := store.CountByJob(ctx, jobID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnrich(t *testing.T) {
	store, jobID := setup(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, []*Allocation{
		reservation(jobID, "R1", "Room 1", util.Ptr("Bed A"), "2024-05-01", "2024-05-03"),
		reservation(jobID, "R1", "Room 1", util.Ptr("Bed B"), "2024-05-01", "2024-05-03"),
		reservation(jobID, "R2", "Room 2", nil, "2024-05-01", "2024-05-02"),
	}))

	booked := date("2024-04-20")
	n, err := store.Enrich(ctx, jobID, "R1", Enrichment{
		BookingReference: "BDC-998877",
		BookingSource:    "Booking.com",
		BookedDate:       &booked,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// a later partial enrichment keeps earlier values
	_, err = store.Enrich(ctx, jobID, "R1", Enrichment{Notes: "late arrival"})
	require.NoError(t, err)

	n, err = store.Enrich(ctx, jobID, "R404", Enrichment{BookingSource: "Direct"})
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := store.ListByJob(ctx, jobID)
	require.NoError(t, err)
	for _, a := range got[:2] {
		assert.Equal(t, "BDC-998877", a.BookingReference)
		assert.Equal(t, "Booking.com", a.BookingSource)
		assert.Equal(t, "late arrival", a.Notes)
		require.NotNil(t, a.BookedDate)
		assert.Equal(t, booked, *a.BookedDate)
	}
	assert.Empty(t, got[2].BookingReference)

	ids, err := store.ReservationIDs(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, []string{"R1", "R2"}, ids)
}

func TestKey(t *testing.T) {
	a := reservation(1, "R1", "Room 1", util.Ptr("Bed A"), "2024-05-01", "2024-05-03")
	b := reservation(2, "R1", "Room 1", util.Ptr("Bed A"), "2024-05-01", "2024-05-03")
	c := reservation(1, "R1", "Room 1", util.Ptr("Bed B"), "2024-05-01", "2024-05-03")
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}
