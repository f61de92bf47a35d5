package reservation

import (
	"time"

	"driveshare/internal/domain/listing"
	"driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/money"
)

type Confirmed struct {
	ReservationID ID
	ListingID     listing.ID
	RenterID      string
	Range         daterange.DateRange
	Total         money.Money
	At            time.Time
}

func (e Confirmed) EventName() string     { return "reservation.confirmed" }
func (e Confirmed) AggregateID() string   { return string(e.ReservationID) }
func (e Confirmed) OccurredAt() time.Time { return e.At }

type Cancelled struct {
	ReservationID ID
	ListingID     listing.ID
	Range         daterange.DateRange
	At            time.Time
}

func (e Cancelled) EventName() string     { return "reservation.cancelled" }
func (e Cancelled) AggregateID() string   { return string(e.ReservationID) }
func (e Cancelled) OccurredAt() time.Time { return e.At }

type Completed struct {
	ReservationID ID
	ListingID     listing.ID
	At            time.Time
}

func (e Completed) EventName() string     { return "reservation.completed" }
func (e Completed) AggregateID() string   { return string(e.ReservationID) }
func (e Completed) OccurredAt() time.Time { return e.At }

type Expired struct {
	ReservationID ID
	ListingID     listing.ID
	At            time.Time
}

func (e Expired) EventName() string     { return "reservation.expired" }
func (e Expired) AggregateID() string   { return string(e.ReservationID) }
func (e Expired) OccurredAt() time.Time { return e.At }
