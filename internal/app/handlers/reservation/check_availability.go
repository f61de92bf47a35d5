package reservation

import (
	"context"
	"strings"
	"time"

	"driveshare/internal/app/dto"
	handlersupport "driveshare/internal/app/handlers/support"
	"driveshare/internal/app/queries"
	"driveshare/internal/app/uow"
	domainavailability "driveshare/internal/domain/availability"
	"driveshare/internal/domain/fault"
	domainlisting "driveshare/internal/domain/listing"
	"driveshare/internal/domain/shared/daterange"
)

const checkAvailabilityKey = "reservation.check_availability"

// CheckAvailabilityQuery asks whether a range is free on a listing. The answer
// is advisory only: a later create can still lose the race and get a conflict.
type CheckAvailabilityQuery struct {
	ListingID string
	Start     time.Time
	End       time.Time
}

func (q CheckAvailabilityQuery) Key() string { return checkAvailabilityKey }

type CheckAvailabilityHandler struct {
	UoWFactory uow.Factory
}

func (h *CheckAvailabilityHandler) Handle(ctx context.Context, q CheckAvailabilityQuery) (dto.Availability, error) {
	if strings.TrimSpace(q.ListingID) == "" {
		return dto.Availability{}, fault.New(fault.KindMissingField, "listing id is required")
	}
	dr, err := daterange.New(q.Start, q.End)
	if err != nil {
		return dto.Availability{}, fault.Wrap(fault.KindInvalidRange, "invalid date range", err)
	}

	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Availability{}, fault.Wrap(fault.KindUnavailable, "storage unavailable", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	index := domainavailability.Index{Source: unit.Reservations()}
	conflicts, err := index.Conflicts(execCtx, domainlisting.ID(q.ListingID), dr, "")
	if err != nil {
		return dto.Availability{}, fault.Wrap(fault.KindUnavailable, "availability query failed", err)
	}

	return dto.Availability{
		Available: len(conflicts) == 0,
		Conflicts: dto.MapDateRanges(conflicts),
	}, nil
}

var _ queries.Handler[CheckAvailabilityQuery, dto.Availability] = (*CheckAvailabilityHandler)(nil)
