package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"driveshare/internal/domain/listing"
	"driveshare/internal/domain/pricing"
	"driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/events"
)

var (
	ErrNotFound          = errors.New("reservation: not found")
	ErrRenterRequired    = errors.New("reservation: renter id is required")
	ErrContactIncomplete = errors.New("reservation: contact name, email and phone are required")
	ErrInvalidTransition = errors.New("reservation: invalid status transition")
)

type ID string

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// BlockingStatuses are the statuses that make a reservation occupy its range.
// Cancelled, completed and expired reservations never block.
var BlockingStatuses = []Status{StatusPending, StatusConfirmed}

func (s Status) Blocking() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Contact is the renter contact snapshot frozen at booking time.
type Contact struct {
	Name  string
	Email string
	Phone string
}

func (c Contact) Validate() error {
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Email) == "" || strings.TrimSpace(c.Phone) == "" {
		return ErrContactIncomplete
	}
	return nil
}

// Reservation is an exclusive claim on a listing's date range. It is created
// directly in confirmed: pending and expired exist for a future payment-hold
// flow and are only ever produced by the lifecycle job.
type Reservation struct {
	ID        ID
	ListingID listing.ID
	OwnerID   listing.OwnerID
	RenterID  string
	Range     daterange.DateRange
	Contact   Contact
	Price     pricing.Snapshot
	Status    Status
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	events.EventRecorder
}

type CreateParams struct {
	ID        ID
	ListingID listing.ID
	OwnerID   listing.OwnerID
	RenterID  string
	Range     daterange.DateRange
	Contact   Contact
	Price     pricing.Snapshot
	Now       time.Time
}

func New(params CreateParams) (*Reservation, error) {
	if strings.TrimSpace(params.RenterID) == "" {
		return nil, ErrRenterRequired
	}
	if err := params.Contact.Validate(); err != nil {
		return nil, err
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	now := params.Now.UTC()
	r := &Reservation{
		ID:        params.ID,
		ListingID: params.ListingID,
		OwnerID:   params.OwnerID,
		RenterID:  params.RenterID,
		Range:     params.Range,
		Contact:   params.Contact,
		Price:     params.Price,
		Status:    StatusConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.Record(Confirmed{
		ReservationID: r.ID,
		ListingID:     r.ListingID,
		RenterID:      r.RenterID,
		Range:         r.Range,
		Total:         r.Price.Total,
		At:            now,
	})
	return r, nil
}

// Cancel frees the range. Only a confirmed reservation can be cancelled; the
// caller authorization check belongs to the application layer.
func (r *Reservation) Cancel(now time.Time) error {
	if r.Status != StatusConfirmed {
		return fmt.Errorf("%w: cannot cancel %s reservation", ErrInvalidTransition, r.Status)
	}
	r.Status = StatusCancelled
	r.UpdatedAt = now.UTC()
	r.Record(Cancelled{ReservationID: r.ID, ListingID: r.ListingID, Range: r.Range, At: r.UpdatedAt})
	return nil
}

// Complete marks a confirmed reservation whose range has fully elapsed.
func (r *Reservation) Complete(now time.Time) error {
	if r.Status != StatusConfirmed {
		return fmt.Errorf("%w: cannot complete %s reservation", ErrInvalidTransition, r.Status)
	}
	r.Status = StatusCompleted
	r.UpdatedAt = now.UTC()
	r.Record(Completed{ReservationID: r.ID, ListingID: r.ListingID, At: r.UpdatedAt})
	return nil
}

// Expire releases a pending reservation whose hold was never confirmed.
func (r *Reservation) Expire(now time.Time) error {
	if r.Status != StatusPending {
		return fmt.Errorf("%w: cannot expire %s reservation", ErrInvalidTransition, r.Status)
	}
	r.Status = StatusExpired
	r.UpdatedAt = now.UTC()
	r.Record(Expired{ReservationID: r.ID, ListingID: r.ListingID, At: r.UpdatedAt})
	return nil
}

// ConflictError reports the blocking ranges that defeated a conditional insert.
type ConflictError struct {
	Ranges []daterange.DateRange
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("reservation: range overlaps %d existing reservation(s)", len(e.Ranges))
}

// Repository is the reservation store boundary.
//
// CreateIfFree is the single mutation point of the booking flow: it must
// insert the reservation only if no blocking reservation on the same listing
// overlaps its range, as one indivisible operation with respect to concurrent
// CreateIfFree calls for that listing. On overlap it returns *ConflictError.
type Repository interface {
	ByID(ctx context.Context, id ID) (*Reservation, error)
	CreateIfFree(ctx context.Context, r *Reservation) error
	Save(ctx context.Context, r *Reservation) error
	BlockingRanges(ctx context.Context, listingID listing.ID, candidate daterange.DateRange, exclude ID) ([]daterange.DateRange, error)
	ListByRenter(ctx context.Context, renterID string) ([]*Reservation, error)
	ListByOwner(ctx context.Context, ownerID listing.OwnerID) ([]*Reservation, error)
	// ListLapsed returns reservations in the given status whose range end is
	// not after the cutoff; used by the lifecycle job.
	ListLapsed(ctx context.Context, status Status, cutoff time.Time) ([]*Reservation, error)
}
