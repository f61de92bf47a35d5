package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domainlisting "driveshare/internal/domain/listing"
	domainreservation "driveshare/internal/domain/reservation"
	"driveshare/internal/domain/shared/daterange"
)

// ListingRepository is an in-memory catalog store.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlisting.ID]*domainlisting.Listing
}

func NewListingRepository() *ListingRepository {
	return &ListingRepository{items: make(map[domainlisting.ID]*domainlisting.Listing)}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlisting.ID) (*domainlisting.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.items[id]
	if !ok {
		return nil, domainlisting.ErrNotFound
	}
	return cloneListing(l), nil
}

func (r *ListingRepository) Save(ctx context.Context, l *domainlisting.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := cloneListing(l)
	stored.Version++
	r.items[stored.ID] = stored
	l.Version = stored.Version
	return nil
}

// Search filters the catalog in memory. Results are ordered by ascending daily
// rate, ties broken by newest first.
func (r *ListingRepository) Search(ctx context.Context, params domainlisting.SearchParams) (domainlisting.SearchResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matches := make([]*domainlisting.Listing, 0, len(r.items))
	for _, l := range r.items {
		select {
		case <-ctx.Done():
			return domainlisting.SearchResult{}, ctx.Err()
		default:
		}

		if params.OnlyActive && l.State != domainlisting.StateActive {
			continue
		}
		if params.Owner != "" && l.Owner != params.Owner {
			continue
		}
		if params.City != "" && !strings.EqualFold(l.Location.City, params.City) {
			continue
		}
		if params.VehicleType != "" && l.Vehicle.Type != params.VehicleType {
			continue
		}
		if params.PriceMin > 0 && l.PricePerDay.Amount < params.PriceMin {
			continue
		}
		if params.PriceMax > 0 && l.PricePerDay.Amount > params.PriceMax {
			continue
		}
		matches = append(matches, cloneListing(l))
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].PricePerDay.Amount == matches[j].PricePerDay.Amount {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].PricePerDay.Amount < matches[j].PricePerDay.Amount
	})

	total := len(matches)
	start := params.Offset
	if start > total {
		start = total
	}
	end := total
	if params.Limit > 0 && start+params.Limit < total {
		end = start + params.Limit
	}
	return domainlisting.SearchResult{Items: matches[start:end], Total: total}, nil
}

func cloneListing(l *domainlisting.Listing) *domainlisting.Listing {
	if l == nil {
		return nil
	}
	copied := *l
	copied.Images = append([]string(nil), l.Images...)
	copied.Vehicle.Features = append([]string(nil), l.Vehicle.Features...)
	return &copied
}

// ReservationRepository stores reservations in memory. Writes for the same
// listing are serialized through a per-listing mutex so that the
// check-then-insert of CreateIfFree is indivisible; creates on different
// listings proceed concurrently.
type ReservationRepository struct {
	mu    sync.RWMutex
	items map[domainreservation.ID]*domainreservation.Reservation

	locksMu sync.Mutex
	locks   map[domainlisting.ID]*sync.Mutex
}

func NewReservationRepository() *ReservationRepository {
	return &ReservationRepository{
		items: make(map[domainreservation.ID]*domainreservation.Reservation),
		locks: make(map[domainlisting.ID]*sync.Mutex),
	}
}

func (r *ReservationRepository) listingLock(id domainlisting.ID) *sync.Mutex {
	r.locksMu.Lock()
	defer r.locksMu.Unlock()
	if l, ok := r.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	r.locks[id] = l
	return l
}

func (r *ReservationRepository) ByID(ctx context.Context, id domainreservation.ID) (*domainreservation.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.items[id]
	if !ok {
		return nil, domainreservation.ErrNotFound
	}
	return cloneReservation(res), nil
}

// CreateIfFree inserts the reservation unless a blocking reservation on the
// same listing overlaps its range. The per-listing lock is held across the
// conflict scan and the insert, so two racing creates for overlapping ranges
// cannot both succeed.
func (r *ReservationRepository) CreateIfFree(ctx context.Context, res *domainreservation.Reservation) error {
	lock := r.listingLock(res.ListingID)
	lock.Lock()
	defer lock.Unlock()

	conflicts := r.scanBlocking(res.ListingID, res.Range, res.ID)
	if len(conflicts) > 0 {
		return &domainreservation.ConflictError{Ranges: conflicts}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stored := cloneReservation(res)
	stored.Version = 1
	r.items[stored.ID] = stored
	res.Version = stored.Version
	return nil
}

func (r *ReservationRepository) Save(ctx context.Context, res *domainreservation.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[res.ID]; !ok {
		return domainreservation.ErrNotFound
	}
	stored := cloneReservation(res)
	stored.Version++
	r.items[stored.ID] = stored
	res.Version = stored.Version
	return nil
}

// BlockingRanges returns the ranges of pending/confirmed reservations on the
// listing that overlap the candidate, sorted by start.
func (r *ReservationRepository) BlockingRanges(ctx context.Context, listingID domainlisting.ID, candidate daterange.DateRange, exclude domainreservation.ID) ([]daterange.DateRange, error) {
	return r.scanBlocking(listingID, candidate, exclude), nil
}

func (r *ReservationRepository) scanBlocking(listingID domainlisting.ID, candidate daterange.DateRange, exclude domainreservation.ID) []daterange.DateRange {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ranges []daterange.DateRange
	for _, res := range r.items {
		if res.ListingID != listingID || res.ID == exclude {
			continue
		}
		if !res.Status.Blocking() {
			continue
		}
		if res.Range.Overlaps(candidate) {
			ranges = append(ranges, res.Range)
		}
	}
	sort.Slice(ranges, func(i, j int) bool {
		return ranges[i].Start.Before(ranges[j].Start)
	})
	return ranges
}

func (r *ReservationRepository) ListByRenter(ctx context.Context, renterID string) ([]*domainreservation.Reservation, error) {
	return r.list(func(res *domainreservation.Reservation) bool {
		return res.RenterID == renterID
	}), nil
}

func (r *ReservationRepository) ListByOwner(ctx context.Context, ownerID domainlisting.OwnerID) ([]*domainreservation.Reservation, error) {
	return r.list(func(res *domainreservation.Reservation) bool {
		return res.OwnerID == ownerID
	}), nil
}

func (r *ReservationRepository) ListLapsed(ctx context.Context, status domainreservation.Status, cutoff time.Time) ([]*domainreservation.Reservation, error) {
	return r.list(func(res *domainreservation.Reservation) bool {
		return res.Status == status && !res.Range.End.After(cutoff)
	}), nil
}

func (r *ReservationRepository) list(match func(*domainreservation.Reservation) bool) []*domainreservation.Reservation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*domainreservation.Reservation, 0)
	for _, res := range r.items {
		if match(res) {
			matches = append(matches, cloneReservation(res))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches
}

func cloneReservation(res *domainreservation.Reservation) *domainreservation.Reservation {
	if res == nil {
		return nil
	}
	copied := *res
	copied.ClearEvents()
	return &copied
}

var _ domainlisting.Repository = (*ListingRepository)(nil)
var _ domainreservation.Repository = (*ReservationRepository)(nil)
