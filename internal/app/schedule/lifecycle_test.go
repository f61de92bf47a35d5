package schedule

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	domainreservation "driveshare/internal/domain/reservation"
	"driveshare/internal/domain/shared/daterange"
	"driveshare/internal/infra/storage/memory"
)

func seedReservation(t *testing.T, repo *memory.ReservationRepository, id string, status domainreservation.Status, startDay, endDay int) {
	t.Helper()
	dr, err := daterange.New(
		time.Date(2026, time.April, startDay, 0, 0, 0, 0, time.UTC),
		time.Date(2026, time.April, endDay, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("daterange.New: %v", err)
	}
	res, err := domainreservation.New(domainreservation.CreateParams{
		ID:        domainreservation.ID(id),
		ListingID: "lst-1",
		OwnerID:   "owner-1",
		RenterID:  "renter-1",
		Range:     dr,
		Contact:   domainreservation.Contact{Name: "Test Renter", Email: "renter@example.com", Phone: "+15550000000"},
		Now:       time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("reservation.New: %v", err)
	}
	res.ClearEvents()
	if err := repo.CreateIfFree(context.Background(), res); err != nil {
		t.Fatalf("CreateIfFree %s: %v", id, err)
	}
	if status != domainreservation.StatusConfirmed {
		stored, err := repo.ByID(context.Background(), res.ID)
		if err != nil {
			t.Fatalf("ByID %s: %v", id, err)
		}
		stored.Status = status
		if err := repo.Save(context.Background(), stored); err != nil {
			t.Fatalf("Save %s: %v", id, err)
		}
	}
}

func TestRunOnceSweepsLapsedReservations(t *testing.T) {
	reservations := memory.NewReservationRepository()
	factory := memory.Factory{
		ListingRepo:     memory.NewListingRepository(),
		ReservationRepo: reservations,
		UserRepo:        memory.NewUserRepository(),
	}

	seedReservation(t, reservations, "done", domainreservation.StatusConfirmed, 1, 5)
	seedReservation(t, reservations, "stale-hold", domainreservation.StatusPending, 6, 9)
	seedReservation(t, reservations, "upcoming", domainreservation.StatusConfirmed, 20, 25)

	job := &LifecycleJob{
		UoWFactory: factory,
		Outbox:     memory.NewOutbox(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock: func() time.Time {
			return time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)
		},
	}

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	want := map[string]domainreservation.Status{
		"done":       domainreservation.StatusCompleted,
		"stale-hold": domainreservation.StatusExpired,
		"upcoming":   domainreservation.StatusConfirmed,
	}
	for id, status := range want {
		res, err := reservations.ByID(context.Background(), domainreservation.ID(id))
		if err != nil {
			t.Fatalf("ByID %s: %v", id, err)
		}
		if res.Status != status {
			t.Errorf("%s status = %s; want %s", id, res.Status, status)
		}
	}
}

func TestRunOnceIsIdempotent(t *testing.T) {
	reservations := memory.NewReservationRepository()
	factory := memory.Factory{
		ListingRepo:     memory.NewListingRepository(),
		ReservationRepo: reservations,
		UserRepo:        memory.NewUserRepository(),
	}
	seedReservation(t, reservations, "done", domainreservation.StatusConfirmed, 1, 5)

	job := &LifecycleJob{
		UoWFactory: factory,
		Outbox:     memory.NewOutbox(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock: func() time.Time {
			return time.Date(2026, time.April, 10, 0, 0, 0, 0, time.UTC)
		},
	}

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("first RunOnce: %v", err)
	}
	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}

	res, err := reservations.ByID(context.Background(), "done")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	if res.Status != domainreservation.StatusCompleted {
		t.Errorf("status after two sweeps = %s; want completed", res.Status)
	}
	if res.Version != 2 {
		t.Errorf("version = %d; want 2 (second sweep must not rewrite)", res.Version)
	}
}
