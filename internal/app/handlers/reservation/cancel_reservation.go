package reservation

import (
	"context"
	"errors"
	"strings"
	"time"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/dto"
	"driveshare/internal/app/outbox"
	"driveshare/internal/app/uow"
	"driveshare/internal/domain/fault"
	domainreservation "driveshare/internal/domain/reservation"
)

const cancelReservationKey = "reservation.cancel"

type CancelReservationCommand struct {
	ReservationID string
	CallerID      string
}

func (c CancelReservationCommand) Key() string { return cancelReservationKey }

// CancelReservationHandler transitions a confirmed reservation to cancelled.
// Once the save is acknowledged the freed range is visible to every
// availability check reading the same store.
type CancelReservationHandler struct {
	UoWFactory uow.Factory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Notifier   Notifier
	Clock      func() time.Time
}

func (h *CancelReservationHandler) Handle(ctx context.Context, cmd CancelReservationCommand) (*dto.Reservation, error) {
	if strings.TrimSpace(cmd.CallerID) == "" {
		return nil, fault.New(fault.KindUnauthorized, "caller identity required")
	}
	if strings.TrimSpace(cmd.ReservationID) == "" {
		return nil, fault.New(fault.KindMissingField, "reservation id is required")
	}

	unit, ok := uow.FromContext(ctx)
	managed := false
	committed := false
	if !ok {
		if h.UoWFactory == nil {
			return nil, fault.Wrap(fault.KindUnavailable, "unit of work missing", uow.ErrUnitOfWorkMissing)
		}
		var err error
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

	res, err := unit.Reservations().ByID(ctx, domainreservation.ID(cmd.ReservationID))
	if err != nil {
		if errors.Is(err, domainreservation.ErrNotFound) {
			return nil, fault.Wrap(fault.KindNotFound, "reservation not found", err)
		}
		return nil, fault.Wrap(fault.KindUnavailable, "reservation lookup failed", err)
	}

	if res.RenterID != cmd.CallerID {
		return nil, fault.New(fault.KindForbidden, "reservation belongs to another renter")
	}

	if err := res.Cancel(h.now()); err != nil {
		return nil, fault.Wrap(fault.KindInvalidTransition, "cannot cancel reservation", err)
	}

	if err := unit.Reservations().Save(ctx, res); err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "cancellation save failed", err)
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
		go h.Notifier.ReservationCancelled(context.WithoutCancel(ctx), res)
	}

	out := dto.MapReservation(res)
	return &out, nil
}

func (h *CancelReservationHandler) encoder() outbox.EventEncoder {
	if h.Encoder != nil {
		return h.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (h *CancelReservationHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now().UTC()
}

var _ commands.Handler[CancelReservationCommand, *dto.Reservation] = (*CancelReservationHandler)(nil)
