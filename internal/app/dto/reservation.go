package dto

import (
	"time"

	domainlisting "driveshare/internal/domain/listing"
	domainpricing "driveshare/internal/domain/pricing"
	domainreservation "driveshare/internal/domain/reservation"
	"driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type DateRangeDTO struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ContactDTO struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type PricingSnapshotDTO struct {
	PricePerDay MoneyDTO `json:"price_per_day"`
	Days        int      `json:"days"`
	Subtotal    MoneyDTO `json:"subtotal"`
	Taxes       MoneyDTO `json:"taxes"`
	Total       MoneyDTO `json:"total"`
}

type ReservationListingSnapshot struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	City         string `json:"city"`
	VehicleBrand string `json:"vehicle_brand"`
	VehicleModel string `json:"vehicle_model"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

type Reservation struct {
	ID        string             `json:"id"`
	ListingID string             `json:"listing_id"`
	OwnerID   string             `json:"owner_id"`
	RenterID  string             `json:"renter_id"`
	DateRange DateRangeDTO       `json:"date_range"`
	Contact   ContactDTO         `json:"contact"`
	Pricing   PricingSnapshotDTO `json:"pricing_snapshot"`
	Status    string             `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

type ReservationSummary struct {
	ID        string                     `json:"id"`
	Listing   ReservationListingSnapshot `json:"listing"`
	DateRange DateRangeDTO               `json:"date_range"`
	Contact   ContactDTO                 `json:"contact"`
	Pricing   PricingSnapshotDTO         `json:"pricing_snapshot"`
	Status    string                     `json:"status"`
	CreatedAt time.Time                  `json:"created_at"`
}

type ReservationCollection struct {
	Items []ReservationSummary `json:"items"`
}

type Availability struct {
	Available bool           `json:"available"`
	Conflicts []DateRangeDTO `json:"conflicts"`
}

func MapMoney(value money.Money) MoneyDTO {
	return MoneyDTO{Amount: value.Amount, Currency: value.Currency}
}

func MapDateRange(dr daterange.DateRange) DateRangeDTO {
	return DateRangeDTO{Start: dr.Start, End: dr.End}
}

func MapDateRanges(ranges []daterange.DateRange) []DateRangeDTO {
	out := make([]DateRangeDTO, 0, len(ranges))
	for _, dr := range ranges {
		out = append(out, MapDateRange(dr))
	}
	return out
}

func MapPricingSnapshot(s domainpricing.Snapshot) PricingSnapshotDTO {
	return PricingSnapshotDTO{
		PricePerDay: MapMoney(s.PricePerDay),
		Days:        s.Days,
		Subtotal:    MapMoney(s.Subtotal),
		Taxes:       MapMoney(s.Taxes),
		Total:       MapMoney(s.Total),
	}
}

func MapReservation(r *domainreservation.Reservation) Reservation {
	return Reservation{
		ID:        string(r.ID),
		ListingID: string(r.ListingID),
		OwnerID:   string(r.OwnerID),
		RenterID:  r.RenterID,
		DateRange: MapDateRange(r.Range),
		Contact:   ContactDTO{Name: r.Contact.Name, Email: r.Contact.Email, Phone: r.Contact.Phone},
		Pricing:   MapPricingSnapshot(r.Price),
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func MapReservationSummary(r *domainreservation.Reservation, l *domainlisting.Listing) ReservationSummary {
	snapshot := ReservationListingSnapshot{ID: string(r.ListingID)}
	if l != nil {
		snapshot.Title = l.Title
		snapshot.City = l.Location.City
		snapshot.VehicleBrand = l.Vehicle.Brand
		snapshot.VehicleModel = l.Vehicle.Model
		if len(l.Images) > 0 {
			snapshot.ThumbnailURL = l.Images[0]
		}
	}
	return ReservationSummary{
		ID:        string(r.ID),
		Listing:   snapshot,
		DateRange: MapDateRange(r.Range),
		Contact:   ContactDTO{Name: r.Contact.Name, Email: r.Contact.Email, Phone: r.Contact.Phone},
		Pricing:   MapPricingSnapshot(r.Price),
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
	}
}
