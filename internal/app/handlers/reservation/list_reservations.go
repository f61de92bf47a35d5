package reservation

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"driveshare/internal/app/dto"
	handlersupport "driveshare/internal/app/handlers/support"
	"driveshare/internal/app/queries"
	"driveshare/internal/app/uow"
	"driveshare/internal/domain/fault"
	domainlisting "driveshare/internal/domain/listing"
	domainreservation "driveshare/internal/domain/reservation"
)

const (
	listRenterReservationsKey = "reservation.list_renter"
	listOwnerReservationsKey  = "reservation.list_owner"
)

// ListRenterReservationsQuery returns the caller's own bookings, newest first.
type ListRenterReservationsQuery struct {
	RenterID string
}

func (q ListRenterReservationsQuery) Key() string { return listRenterReservationsKey }

// ListOwnerReservationsQuery returns bookings against the owner's listings.
type ListOwnerReservationsQuery struct {
	OwnerID string
}

func (q ListOwnerReservationsQuery) Key() string { return listOwnerReservationsKey }

type ListReservationsHandler struct {
	UoWFactory uow.Factory
	Logger     *slog.Logger
}

func (h *ListReservationsHandler) HandleRenter(ctx context.Context, q ListRenterReservationsQuery) (dto.ReservationCollection, error) {
	renterID := strings.TrimSpace(q.RenterID)
	if renterID == "" {
		return dto.ReservationCollection{}, fault.New(fault.KindUnauthorized, "renter identity required")
	}
	return h.collect(ctx, func(ctx context.Context, unit uow.UnitOfWork) ([]*domainreservation.Reservation, error) {
		return unit.Reservations().ListByRenter(ctx, renterID)
	})
}

func (h *ListReservationsHandler) HandleOwner(ctx context.Context, q ListOwnerReservationsQuery) (dto.ReservationCollection, error) {
	ownerID := strings.TrimSpace(q.OwnerID)
	if ownerID == "" {
		return dto.ReservationCollection{}, fault.New(fault.KindUnauthorized, "owner identity required")
	}
	return h.collect(ctx, func(ctx context.Context, unit uow.UnitOfWork) ([]*domainreservation.Reservation, error) {
		return unit.Reservations().ListByOwner(ctx, domainlisting.OwnerID(ownerID))
	})
}

func (h *ListReservationsHandler) collect(ctx context.Context, load func(context.Context, uow.UnitOfWork) ([]*domainreservation.Reservation, error)) (dto.ReservationCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ReservationCollection{}, fault.Wrap(fault.KindUnavailable, "storage unavailable", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	items, err := load(execCtx, unit)
	if err != nil {
		return dto.ReservationCollection{}, fault.Wrap(fault.KindUnavailable, "reservation query failed", err)
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})

	cache := make(map[domainlisting.ID]*domainlisting.Listing)
	out := make([]dto.ReservationSummary, 0, len(items))
	for _, res := range items {
		lst, err := h.loadListing(execCtx, unit.Listings(), res.ListingID, cache)
		if err != nil && h.Logger != nil {
			h.Logger.Warn("listing snapshot missing for reservation", "reservation_id", res.ID, "listing_id", res.ListingID, "error", err)
		}
		out = append(out, dto.MapReservationSummary(res, lst))
	}
	return dto.ReservationCollection{Items: out}, nil
}

func (h *ListReservationsHandler) loadListing(
	ctx context.Context,
	repo domainlisting.Repository,
	id domainlisting.ID,
	cache map[domainlisting.ID]*domainlisting.Listing,
) (*domainlisting.Listing, error) {
	if lst, ok := cache[id]; ok {
		return lst, nil
	}
	lst, err := repo.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cache[id] = lst
	return lst, nil
}

// renterHandler and ownerHandler adapt ListReservationsHandler to the generic
// query handler shape expected by the bus.
type RenterReservationsHandler struct {
	*ListReservationsHandler
}

func (h RenterReservationsHandler) Handle(ctx context.Context, q ListRenterReservationsQuery) (dto.ReservationCollection, error) {
	return h.HandleRenter(ctx, q)
}

type OwnerReservationsHandler struct {
	*ListReservationsHandler
}

func (h OwnerReservationsHandler) Handle(ctx context.Context, q ListOwnerReservationsQuery) (dto.ReservationCollection, error) {
	return h.HandleOwner(ctx, q)
}

var _ queries.Handler[ListRenterReservationsQuery, dto.ReservationCollection] = RenterReservationsHandler{}
var _ queries.Handler[ListOwnerReservationsQuery, dto.ReservationCollection] = OwnerReservationsHandler{}
