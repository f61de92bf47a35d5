package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domainlisting "driveshare/internal/domain/listing"
	domainreservation "driveshare/internal/domain/reservation"
	"driveshare/internal/domain/shared/daterange"
)

func mustRange(t *testing.T, startDay, endDay int) daterange.DateRange {
	t.Helper()
	dr, err := daterange.New(
		time.Date(2026, time.March, startDay, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.March, endDay, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("daterange.New: %v", err)
	}
	return dr
}

func newReservation(id string, listingID domainlisting.ID, dr daterange.DateRange) *domainreservation.Reservation {
	res, err := domainreservation.New(domainreservation.CreateParams{
		ID:        domainreservation.ID(id),
		ListingID: listingID,
		OwnerID:   "owner-1",
		RenterID:  "renter-" + id,
		Range:     dr,
		Contact:   domainreservation.Contact{Name: "Test Renter", Email: "renter@example.com", Phone: "+15550000000"},
		Now:       time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		panic(err)
	}
	return res
}

func TestCreateIfFreeRejectsOverlap(t *testing.T) {
	repo := NewReservationRepository()
	ctx := context.Background()

	if err := repo.CreateIfFree(ctx, newReservation("a", "lst-1", mustRange(t, 1, 5))); err != nil {
		t.Fatalf("first CreateIfFree: %v", err)
	}

	err := repo.CreateIfFree(ctx, newReservation("b", "lst-1", mustRange(t, 3, 7)))
	var conflict *domainreservation.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("overlapping CreateIfFree error = %v; want *ConflictError", err)
	}
	if len(conflict.Ranges) != 1 || !conflict.Ranges[0].Equal(mustRange(t, 1, 5)) {
		t.Errorf("conflict ranges = %v; want the blocking range", conflict.Ranges)
	}
}

func TestCreateIfFreeAllowsAdjacentRanges(t *testing.T) {
	repo := NewReservationRepository()
	ctx := context.Background()

	if err := repo.CreateIfFree(ctx, newReservation("a", "lst-1", mustRange(t, 1, 5))); err != nil {
		t.Fatalf("first CreateIfFree: %v", err)
	}
	if err := repo.CreateIfFree(ctx, newReservation("b", "lst-1", mustRange(t, 5, 9))); err != nil {
		t.Errorf("back-to-back CreateIfFree: %v; adjacency must not conflict", err)
	}
}

func TestCreateIfFreeIgnoresOtherListings(t *testing.T) {
	repo := NewReservationRepository()
	ctx := context.Background()

	if err := repo.CreateIfFree(ctx, newReservation("a", "lst-1", mustRange(t, 1, 5))); err != nil {
		t.Fatalf("CreateIfFree lst-1: %v", err)
	}
	if err := repo.CreateIfFree(ctx, newReservation("b", "lst-2", mustRange(t, 1, 5))); err != nil {
		t.Errorf("CreateIfFree lst-2: %v; other listings must not conflict", err)
	}
}

func TestCreateIfFreeUnderContention(t *testing.T) {
	repo := NewReservationRepository()
	ctx := context.Background()

	const racers = 32
	var wg sync.WaitGroup
	errs := make([]error, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("race-%d", i)
			errs[i] = repo.CreateIfFree(ctx, newReservation(id, "lst-1", mustRange(t, 10, 15)))
		}(i)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		default:
			var conflict *domainreservation.ConflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("unexpected error under contention: %v", err)
			}
			lost++
		}
	}
	if won != 1 {
		t.Errorf("winners = %d; want exactly 1", won)
	}
	if lost != racers-1 {
		t.Errorf("conflicts = %d; want %d", lost, racers-1)
	}
}

func TestCancelFreesTheRange(t *testing.T) {
	repo := NewReservationRepository()
	ctx := context.Background()

	first := newReservation("a", "lst-1", mustRange(t, 1, 5))
	if err := repo.CreateIfFree(ctx, first); err != nil {
		t.Fatalf("CreateIfFree: %v", err)
	}

	stored, err := repo.ByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if err := stored.Cancel(time.Now()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := repo.Save(ctx, stored); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := repo.CreateIfFree(ctx, newReservation("b", "lst-1", mustRange(t, 1, 5))); err != nil {
		t.Errorf("CreateIfFree after cancel: %v; cancelled reservation must free its range", err)
	}
}

func TestSaveUnknownReservation(t *testing.T) {
	repo := NewReservationRepository()
	res := newReservation("ghost", "lst-1", mustRange(t, 1, 5))
	if err := repo.Save(context.Background(), res); !errors.Is(err, domainreservation.ErrNotFound) {
		t.Errorf("Save() error = %v; want ErrNotFound", err)
	}
}

func TestBlockingRangesFiltersStatusesAndExclusion(t *testing.T) {
	repo := NewReservationRepository()
	ctx := context.Background()

	confirmed := newReservation("a", "lst-1", mustRange(t, 1, 5))
	if err := repo.CreateIfFree(ctx, confirmed); err != nil {
		t.Fatalf("CreateIfFree: %v", err)
	}

	cancelled := newReservation("b", "lst-1", mustRange(t, 6, 9))
	if err := repo.CreateIfFree(ctx, cancelled); err != nil {
		t.Fatalf("CreateIfFree: %v", err)
	}
	if err := cancelled.Cancel(time.Now()); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := repo.Save(ctx, cancelled); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ranges, err := repo.BlockingRanges(ctx, "lst-1", mustRange(t, 1, 10), "")
	if err != nil {
		t.Fatalf("BlockingRanges: %v", err)
	}
	if len(ranges) != 1 || !ranges[0].Equal(mustRange(t, 1, 5)) {
		t.Errorf("ranges = %v; want only the confirmed range", ranges)
	}

	// Excluding the confirmed reservation leaves nothing blocking.
	ranges, err = repo.BlockingRanges(ctx, "lst-1", mustRange(t, 1, 10), confirmed.ID)
	if err != nil {
		t.Fatalf("BlockingRanges: %v", err)
	}
	if len(ranges) != 0 {
		t.Errorf("ranges with exclusion = %v; want none", ranges)
	}
}

func TestListLapsed(t *testing.T) {
	repo := NewReservationRepository()
	ctx := context.Background()

	past := newReservation("past", "lst-1", mustRange(t, 1, 3))
	future := newReservation("future", "lst-1", mustRange(t, 20, 25))
	for _, res := range []*domainreservation.Reservation{past, future} {
		if err := repo.CreateIfFree(ctx, res); err != nil {
			t.Fatalf("CreateIfFree %s: %v", res.ID, err)
		}
	}

	cutoff := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	lapsed, err := repo.ListLapsed(ctx, domainreservation.StatusConfirmed, cutoff)
	if err != nil {
		t.Fatalf("ListLapsed: %v", err)
	}
	if len(lapsed) != 1 || lapsed[0].ID != "past" {
		t.Errorf("lapsed = %v; want only the elapsed reservation", lapsed)
	}
}

func TestStoredReservationsAreIsolated(t *testing.T) {
	repo := NewReservationRepository()
	ctx := context.Background()

	res := newReservation("a", "lst-1", mustRange(t, 1, 5))
	if err := repo.CreateIfFree(ctx, res); err != nil {
		t.Fatalf("CreateIfFree: %v", err)
	}

	// Mutating the returned copy must not leak into the store.
	loaded, err := repo.ByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	loaded.Status = domainreservation.StatusCancelled

	again, err := repo.ByID(ctx, res.ID)
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if again.Status != domainreservation.StatusConfirmed {
		t.Errorf("stored status = %s; want confirmed (copies must be isolated)", again.Status)
	}
	if len(again.PendingEvents()) != 0 {
		t.Errorf("loaded reservation carries %d pending events; want none", len(again.PendingEvents()))
	}
}
