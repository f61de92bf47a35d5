package reservation

import (
	"context"
	"errors"
	"strings"
	"time"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/dto"
	"driveshare/internal/app/middleware"
	"driveshare/internal/app/outbox"
	"driveshare/internal/app/uow"
	"driveshare/internal/domain/fault"
	domainlisting "driveshare/internal/domain/listing"
	domainpricing "driveshare/internal/domain/pricing"
	domainreservation "driveshare/internal/domain/reservation"
	domainrange "driveshare/internal/domain/shared/daterange"
)

const createReservationKey = "reservation.create"

type CreateReservationCommand struct {
	CommandID       string
	ListingID       string
	RenterID        string
	Start           time.Time
	End             time.Time
	Contact         domainreservation.Contact
	IdempotencyKeyV string
}

func (c CreateReservationCommand) Key() string { return createReservationKey }

func (c CreateReservationCommand) IdempotencyKey() string { return c.IdempotencyKeyV }

func (c CreateReservationCommand) ResultPrototype() any { return &dto.Reservation{} }

// Notifier tells the renter about booking outcomes. Delivery happens after
// commit and never affects the result.
type Notifier interface {
	ReservationConfirmed(ctx context.Context, res *domainreservation.Reservation)
	ReservationCancelled(ctx context.Context, res *domainreservation.Reservation)
}

// CreateReservationHandler validates the request, loads the listing's current
// rate, prices the stay once, and delegates the exclusive claim to the store's
// conditional insert. There is no separate check-then-write step: the overlap
// check and the insert are one atomic operation in the repository.
type CreateReservationHandler struct {
	UoWFactory uow.Factory
	Pricing    domainpricing.Engine
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Notifier   Notifier
	Clock      func() time.Time
}

func (h *CreateReservationHandler) Handle(ctx context.Context, cmd CreateReservationCommand) (*dto.Reservation, error) {
	if strings.TrimSpace(cmd.RenterID) == "" {
		return nil, fault.New(fault.KindUnauthorized, "renter identity required")
	}
	if strings.TrimSpace(cmd.ListingID) == "" {
		return nil, fault.New(fault.KindMissingField, "listing id is required")
	}
	if err := cmd.Contact.Validate(); err != nil {
		return nil, fault.Wrap(fault.KindMissingField, "contact is incomplete", err)
	}
	dr, err := domainrange.New(cmd.Start, cmd.End)
	if err != nil {
		return nil, fault.Wrap(fault.KindInvalidRange, "invalid date range", err)
	}

	unit, ok := uow.FromContext(ctx)
	managed := false
	committed := false
	if !ok {
		if h.UoWFactory == nil {
			return nil, fault.Wrap(fault.KindUnavailable, "unit of work missing", uow.ErrUnitOfWorkMissing)
		}
		unit, err = h.UoWFactory.Begin(ctx, uow.TxOptions{})
		if err != nil {
			return nil, fault.Wrap(fault.KindUnavailable, "storage unavailable", err)
		}
		if injector, ok := unit.(interface {
			InjectContext(context.Context) context.Context
		}); ok {
			ctx = injector.InjectContext(ctx)
		}
		ctx = uow.ContextWithUnitOfWork(ctx, unit)
		managed = true
	}
	if managed {
		defer func() {
			if !committed {
				_ = unit.Rollback(ctx)
			}
		}()
	}

	lst, err := unit.Listings().ByID(ctx, domainlisting.ID(cmd.ListingID))
	if err != nil {
		if errors.Is(err, domainlisting.ErrNotFound) {
			return nil, fault.Wrap(fault.KindNotFound, "listing not found", err)
		}
		return nil, fault.Wrap(fault.KindUnavailable, "listing lookup failed", err)
	}

	price, err := h.Pricing.Quote(lst.PricePerDay, dr)
	if err != nil {
		return nil, fault.Wrap(fault.KindInvalidRange, "pricing failed", err)
	}

	res, err := domainreservation.New(domainreservation.CreateParams{
		ID:        domainreservation.ID(cmd.CommandID),
		ListingID: lst.ID,
		OwnerID:   lst.Owner,
		RenterID:  cmd.RenterID,
		Range:     dr,
		Contact:   cmd.Contact,
		Price:     price,
		Now:       h.now(),
	})
	if err != nil {
		return nil, fault.Wrap(fault.KindMissingField, "invalid reservation", err)
	}

	if err := unit.Reservations().CreateIfFree(ctx, res); err != nil {
		var conflict *domainreservation.ConflictError
		if errors.As(err, &conflict) {
			return nil, fault.Conflict("dates not available", conflict.Ranges)
		}
		return nil, fault.Wrap(fault.KindUnavailable, "reservation commit failed", err)
	}

	pending := res.PendingEvents()
	res.ClearEvents()
	if err := outbox.RecordDomainEvents(ctx, h.Outbox, h.encoder(), pending); err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "event staging failed", err)
	}

	if managed {
		if err := unit.Commit(ctx); err != nil {
			return nil, fault.Wrap(fault.KindUnavailable, "commit failed", err)
		}
		committed = true
	}

	if h.Notifier != nil {
		go h.Notifier.ReservationConfirmed(context.WithoutCancel(ctx), res)
	}

	out := dto.MapReservation(res)
	return &out, nil
}

func (h *CreateReservationHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *CreateReservationHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now().UTC()
}

var _ commands.Handler[CreateReservationCommand, *dto.Reservation] = (*CreateReservationHandler)(nil)
var _ middleware.IdempotentCommand = CreateReservationCommand{}
