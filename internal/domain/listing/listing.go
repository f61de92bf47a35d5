package listing

import (
	"context"
	"errors"
	"strings"
	"time"

	"driveshare/internal/domain/shared/money"
)

var (
	ErrNotFound      = errors.New("listing: not found")
	ErrTitleRequired = errors.New("listing: title is required")
	ErrCityRequired  = errors.New("listing: city is required")
	ErrVehicleBrand  = errors.New("listing: vehicle brand and model are required")
	ErrDailyRate     = errors.New("listing: price per day must be non-negative")
	ErrInvalidState  = errors.New("listing: invalid state transition")
)

type ID string
type OwnerID string

type State string

const (
	StateDraft  State = "draft"
	StateActive State = "active"
	StatePaused State = "paused"
)

type VehicleType string

const (
	VehicleCar          VehicleType = "car"
	VehicleSUV          VehicleType = "suv"
	VehicleVan          VehicleType = "van"
	VehicleMotorbike    VehicleType = "motorbike"
	VehicleBus          VehicleType = "bus"
	VehicleTruck        VehicleType = "truck"
	VehicleThreewheeler VehicleType = "threewheeler"
	VehicleTractor      VehicleType = "tractor"
)

type Vehicle struct {
	Type         VehicleType
	Brand        string
	Model        string
	Year         int
	Seats        int
	Transmission string
	Fuel         string
	Features     []string
}

type Location struct {
	Country  string
	Province string
	District string
	City     string
	Address  string
}

// Listing is the catalog aggregate. The reservation core only ever reads its
// owner and daily rate; everything else is presentation data.
type Listing struct {
	ID          ID
	Owner       OwnerID
	Title       string
	Description string
	Vehicle     Vehicle
	Location    Location
	PricePerDay money.Money
	Deposit     money.Money
	Images      []string
	State       State
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CreateParams struct {
	ID          ID
	Owner       OwnerID
	Title       string
	Description string
	Vehicle     Vehicle
	Location    Location
	PricePerDay money.Money
	Deposit     money.Money
	Images      []string
	Now         time.Time
}

func New(params CreateParams) (*Listing, error) {
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	if strings.TrimSpace(params.Location.City) == "" {
		return nil, ErrCityRequired
	}
	if strings.TrimSpace(params.Vehicle.Brand) == "" || strings.TrimSpace(params.Vehicle.Model) == "" {
		return nil, ErrVehicleBrand
	}
	if params.PricePerDay.IsNegative() {
		return nil, ErrDailyRate
	}
	now := params.Now.UTC()
	return &Listing{
		ID:          params.ID,
		Owner:       params.Owner,
		Title:       strings.TrimSpace(params.Title),
		Description: params.Description,
		Vehicle:     params.Vehicle,
		Location:    params.Location,
		PricePerDay: params.PricePerDay,
		Deposit:     params.Deposit,
		Images:      append([]string(nil), params.Images...),
		State:       StateActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (l *Listing) Pause(now time.Time) error {
	if l.State != StateActive {
		return ErrInvalidState
	}
	l.State = StatePaused
	l.UpdatedAt = now.UTC()
	return nil
}

func (l *Listing) Activate(now time.Time) error {
	if l.State == StateActive {
		return ErrInvalidState
	}
	l.State = StateActive
	l.UpdatedAt = now.UTC()
	return nil
}

func (l *Listing) AddImage(url string, now time.Time) {
	l.Images = append(l.Images, url)
	l.UpdatedAt = now.UTC()
}

type SearchParams struct {
	Owner       OwnerID
	City        string
	VehicleType VehicleType
	PriceMin    int64
	PriceMax    int64
	OnlyActive  bool
	Limit       int
	Offset      int
}

type SearchResult struct {
	Items []*Listing
	Total int
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Listing, error)
	Save(ctx context.Context, l *Listing) error
	Search(ctx context.Context, params SearchParams) (SearchResult, error)
}
