package reservation

import (
	"context"
	"testing"
	"time"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/dto"
	"driveshare/internal/app/middleware"
	"driveshare/internal/domain/fault"
	domainlisting "driveshare/internal/domain/listing"
	domainpricing "driveshare/internal/domain/pricing"
	domainreservation "driveshare/internal/domain/reservation"
	"driveshare/internal/domain/shared/money"
	"driveshare/internal/infra/storage/memory"
)

var fixedNow = time.Date(2025, time.December, 1, 9, 0, 0, 0, time.UTC)

type bookingFixture struct {
	factory      memory.Factory
	reservations *memory.ReservationRepository
	outbox       *memory.Outbox
	create       *CreateReservationHandler
	cancel       *CancelReservationHandler
	check        *CheckAvailabilityHandler
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()

	listings := memory.NewListingRepository()
	reservations := memory.NewReservationRepository()
	users := memory.NewUserRepository()
	factory := memory.Factory{
		ListingRepo:     listings,
		ReservationRepo: reservations,
		UserRepo:        users,
	}

	lst, err := domainlisting.New(domainlisting.CreateParams{
		ID:          "lst-1",
		Owner:       "owner-1",
		Title:       "Compact city car",
		Vehicle:     domainlisting.Vehicle{Brand: "Toyota", Model: "Yaris", Year: 2022, Seats: 5},
		Location:    domainlisting.Location{City: "Austin", Country: "US"},
		PricePerDay: money.Must(5_000, "USD"),
		Now:         fixedNow,
	})
	if err != nil {
		t.Fatalf("listing.New: %v", err)
	}
	if err := listings.Save(context.Background(), lst); err != nil {
		t.Fatalf("listings.Save: %v", err)
	}

	box := memory.NewOutbox()
	clock := func() time.Time { return fixedNow }
	return &bookingFixture{
		factory:      factory,
		reservations: reservations,
		outbox:       box,
		create: &CreateReservationHandler{
			UoWFactory: factory,
			Pricing:    domainpricing.Engine{},
			Outbox:     box,
			Clock:      clock,
		},
		cancel: &CancelReservationHandler{
			UoWFactory: factory,
			Outbox:     box,
			Clock:      clock,
		},
		check: &CheckAvailabilityHandler{UoWFactory: factory},
	}
}

func bookingCommand(id, renter string, startDay, endDay int) CreateReservationCommand {
	return CreateReservationCommand{
		CommandID: id,
		ListingID: "lst-1",
		RenterID:  renter,
		Start:     time.Date(2026, time.January, startDay, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2026, time.January, endDay, 0, 0, 0, 0, time.UTC),
		Contact: domainreservation.Contact{
			Name:  "Jane Doe",
			Email: "jane@example.com",
			Phone: "+15550001111",
		},
		IdempotencyKeyV: "idem-" + id,
	}
}

func TestCreateReservationPricesTheStay(t *testing.T) {
	fx := newBookingFixture(t)

	res, err := fx.create.Handle(context.Background(), bookingCommand("res-1", "renter-1", 1, 5))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if res.Status != string(domainreservation.StatusConfirmed) {
		t.Errorf("status = %s; want confirmed", res.Status)
	}
	if res.Pricing.Days != 4 {
		t.Errorf("days = %d; want 4", res.Pricing.Days)
	}
	if res.Pricing.Subtotal.Amount != 20_000 {
		t.Errorf("subtotal = %d; want 20000", res.Pricing.Subtotal.Amount)
	}
	if res.Pricing.Taxes.Amount != 2_000 {
		t.Errorf("taxes = %d; want 2000", res.Pricing.Taxes.Amount)
	}
	if res.Pricing.Total.Amount != 22_000 {
		t.Errorf("total = %d; want 22000", res.Pricing.Total.Amount)
	}
}

func TestCreateReservationSnapshotSurvivesRateChange(t *testing.T) {
	fx := newBookingFixture(t)
	ctx := context.Background()

	booked, err := fx.create.Handle(ctx, bookingCommand("res-1", "renter-1", 1, 5))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	// Doubling the listing rate must not touch the frozen snapshot.
	lst, err := fx.factory.ListingRepo.ByID(ctx, "lst-1")
	if err != nil {
		t.Fatalf("ByID: %v", err)
	}
	lst.PricePerDay = money.Must(10_000, "USD")
	if err := fx.factory.ListingRepo.Save(ctx, lst); err != nil {
		t.Fatalf("Save: %v", err)
	}

	stored, err := fx.reservations.ByID(ctx, domainreservation.ID(booked.ID))
	if err != nil {
		t.Fatalf("reservations.ByID: %v", err)
	}
	if stored.Price.Total.Amount != 22_000 {
		t.Errorf("stored total = %d; want the snapshot taken at booking", stored.Price.Total.Amount)
	}
}

func TestCreateReservationConflict(t *testing.T) {
	fx := newBookingFixture(t)
	ctx := context.Background()

	if _, err := fx.create.Handle(ctx, bookingCommand("res-1", "renter-1", 1, 5)); err != nil {
		t.Fatalf("first Handle() error = %v", err)
	}

	_, err := fx.create.Handle(ctx, bookingCommand("res-2", "renter-2", 3, 7))
	if fault.KindOf(err) != fault.KindConflict {
		t.Fatalf("overlapping Handle() error = %v; want conflict", err)
	}
	ranges := fault.RangesOf(err)
	if len(ranges) != 1 {
		t.Fatalf("conflict ranges = %d; want 1", len(ranges))
	}
	if got := ranges[0].Start.Day(); got != 1 {
		t.Errorf("blocking range starts day %d; want 1", got)
	}
}

func TestCreateReservationBackToBack(t *testing.T) {
	fx := newBookingFixture(t)
	ctx := context.Background()

	if _, err := fx.create.Handle(ctx, bookingCommand("res-1", "renter-1", 1, 5)); err != nil {
		t.Fatalf("first Handle() error = %v", err)
	}
	if _, err := fx.create.Handle(ctx, bookingCommand("res-2", "renter-2", 5, 8)); err != nil {
		t.Errorf("adjacent Handle() error = %v; a rental ending on day 5 must not block one starting on day 5", err)
	}
}

func TestCreateReservationValidation(t *testing.T) {
	fx := newBookingFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		mut  func(*CreateReservationCommand)
		want fault.Kind
	}{
		{"missing renter", func(c *CreateReservationCommand) { c.RenterID = "" }, fault.KindUnauthorized},
		{"missing listing", func(c *CreateReservationCommand) { c.ListingID = "" }, fault.KindMissingField},
		{"missing contact", func(c *CreateReservationCommand) { c.Contact.Email = "" }, fault.KindMissingField},
		{"inverted range", func(c *CreateReservationCommand) { c.Start, c.End = c.End, c.Start }, fault.KindInvalidRange},
		{"unknown listing", func(c *CreateReservationCommand) { c.ListingID = "lst-missing" }, fault.KindNotFound},
	}

	for _, tt := range tests {
		cmd := bookingCommand("res-x", "renter-1", 1, 5)
		tt.mut(&cmd)
		_, err := fx.create.Handle(ctx, cmd)
		if fault.KindOf(err) != tt.want {
			t.Errorf("%s: Handle() error = %v; want kind %s", tt.name, err, tt.want)
		}
	}
}

func TestCancelFreesRangeForRebooking(t *testing.T) {
	fx := newBookingFixture(t)
	ctx := context.Background()

	booked, err := fx.create.Handle(ctx, bookingCommand("res-1", "renter-1", 1, 5))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	cancelled, err := fx.cancel.Handle(ctx, CancelReservationCommand{
		ReservationID: booked.ID,
		CallerID:      "renter-1",
	})
	if err != nil {
		t.Fatalf("Cancel Handle() error = %v", err)
	}
	if cancelled.Status != string(domainreservation.StatusCancelled) {
		t.Errorf("status = %s; want cancelled", cancelled.Status)
	}

	if _, err := fx.create.Handle(ctx, bookingCommand("res-2", "renter-2", 1, 5)); err != nil {
		t.Errorf("rebooking after cancel error = %v; cancellation must free the range", err)
	}
}

func TestCancelAuthorizationAndTransitions(t *testing.T) {
	fx := newBookingFixture(t)
	ctx := context.Background()

	booked, err := fx.create.Handle(ctx, bookingCommand("res-1", "renter-1", 1, 5))
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	_, err = fx.cancel.Handle(ctx, CancelReservationCommand{ReservationID: booked.ID, CallerID: "renter-2"})
	if fault.KindOf(err) != fault.KindForbidden {
		t.Errorf("cancel by stranger error = %v; want forbidden", err)
	}

	_, err = fx.cancel.Handle(ctx, CancelReservationCommand{ReservationID: "res-missing", CallerID: "renter-1"})
	if fault.KindOf(err) != fault.KindNotFound {
		t.Errorf("cancel unknown error = %v; want not_found", err)
	}

	if _, err := fx.cancel.Handle(ctx, CancelReservationCommand{ReservationID: booked.ID, CallerID: "renter-1"}); err != nil {
		t.Fatalf("first cancel error = %v", err)
	}
	_, err = fx.cancel.Handle(ctx, CancelReservationCommand{ReservationID: booked.ID, CallerID: "renter-1"})
	if fault.KindOf(err) != fault.KindInvalidTransition {
		t.Errorf("second cancel error = %v; want invalid_transition", err)
	}
}

func TestCheckAvailabilityIsAdvisory(t *testing.T) {
	fx := newBookingFixture(t)
	ctx := context.Background()

	free, err := fx.check.Handle(ctx, CheckAvailabilityQuery{
		ListingID: "lst-1",
		Start:     time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("check Handle() error = %v", err)
	}
	if !free.Available || len(free.Conflicts) != 0 {
		t.Errorf("empty listing availability = %+v; want available", free)
	}

	if _, err := fx.create.Handle(ctx, bookingCommand("res-1", "renter-1", 1, 5)); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	taken, err := fx.check.Handle(ctx, CheckAvailabilityQuery{
		ListingID: "lst-1",
		Start:     time.Date(2026, time.January, 4, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2026, time.January, 6, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("check Handle() error = %v", err)
	}
	if taken.Available {
		t.Errorf("expected overlap to report unavailable")
	}
	if len(taken.Conflicts) != 1 {
		t.Errorf("conflicts = %d; want 1", len(taken.Conflicts))
	}
}

func TestCreateReservationIdempotentReplay(t *testing.T) {
	fx := newBookingFixture(t)
	ctx := context.Background()

	base := commands.NewInMemoryBus()
	commands.RegisterHandler[CreateReservationCommand, *dto.Reservation](base, createReservationKey, fx.create)
	bus := middleware.ChainCommands(base,
		middleware.Idempotency(memory.NewIdempotencyStore(), nil),
		middleware.Transaction(fx.factory, nil),
		middleware.OutboxFlush(fx.outbox),
	)

	cmd := bookingCommand("res-1", "renter-1", 1, 5)
	first, err := commands.Dispatch[CreateReservationCommand, *dto.Reservation](ctx, bus, cmd)
	if err != nil {
		t.Fatalf("first Dispatch() error = %v", err)
	}

	// Same idempotency key: the stored result is replayed, no second insert.
	replay, err := commands.Dispatch[CreateReservationCommand, *dto.Reservation](ctx, bus, cmd)
	if err != nil {
		t.Fatalf("replay Dispatch() error = %v", err)
	}
	if replay.ID != first.ID {
		t.Errorf("replay id = %s; want %s", replay.ID, first.ID)
	}

	mine, err := fx.reservations.ListByRenter(ctx, "renter-1")
	if err != nil {
		t.Fatalf("ListByRenter: %v", err)
	}
	if len(mine) != 1 {
		t.Errorf("reservations after replay = %d; want 1", len(mine))
	}

	// A different key with the same range loses to the existing booking.
	other := bookingCommand("res-2", "renter-1", 1, 5)
	_, err = commands.Dispatch[CreateReservationCommand, *dto.Reservation](ctx, bus, other)
	if fault.KindOf(err) != fault.KindConflict {
		t.Errorf("fresh overlapping Dispatch() error = %v; want conflict", err)
	}

	// Retrying the failed command with its key replays the classified
	// failure, ranges included, not an opaque error.
	_, err = commands.Dispatch[CreateReservationCommand, *dto.Reservation](ctx, bus, other)
	if fault.KindOf(err) != fault.KindConflict {
		t.Errorf("replayed failure Dispatch() error = %v; want conflict kind preserved", err)
	}
	if ranges := fault.RangesOf(err); len(ranges) != 1 {
		t.Errorf("replayed failure ranges = %d; want 1", len(ranges))
	}
}
