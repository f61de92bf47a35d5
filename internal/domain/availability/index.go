// Package availability answers "is this range free" questions against the
// reservation store. The answer is advisory: exclusivity is only guaranteed by
// the store's conditional insert, which re-runs the same blocking-range query
// inside its commit path.
package availability

import (
	"context"

	"driveshare/internal/domain/listing"
	"driveshare/internal/domain/reservation"
	"driveshare/internal/domain/shared/daterange"
)

// RangeSource exposes the per-listing blocking-range query of the store.
type RangeSource interface {
	BlockingRanges(ctx context.Context, listingID listing.ID, candidate daterange.DateRange, exclude reservation.ID) ([]daterange.DateRange, error)
}

type Index struct {
	Source RangeSource
}

// Conflicts returns the ranges of blocking reservations that overlap the
// candidate range, excluding the given reservation id when non-empty.
func (ix Index) Conflicts(ctx context.Context, listingID listing.ID, dr daterange.DateRange, exclude reservation.ID) ([]daterange.DateRange, error) {
	return ix.Source.BlockingRanges(ctx, listingID, dr, exclude)
}

func (ix Index) HasConflict(ctx context.Context, listingID listing.ID, dr daterange.DateRange, exclude reservation.ID) (bool, error) {
	conflicts, err := ix.Conflicts(ctx, listingID, dr, exclude)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}
