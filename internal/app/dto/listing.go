package dto

import (
	"time"

	domainlisting "driveshare/internal/domain/listing"
)

type Vehicle struct {
	Type         string   `json:"type"`
	Brand        string   `json:"brand"`
	Model        string   `json:"model"`
	Year         int      `json:"year,omitempty"`
	Seats        int      `json:"seats,omitempty"`
	Transmission string   `json:"transmission,omitempty"`
	Fuel         string   `json:"fuel,omitempty"`
	Features     []string `json:"features,omitempty"`
}

type Location struct {
	Country  string `json:"country,omitempty"`
	Province string `json:"province,omitempty"`
	District string `json:"district,omitempty"`
	City     string `json:"city"`
	Address  string `json:"address,omitempty"`
}

type Listing struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Vehicle     Vehicle   `json:"vehicle"`
	Location    Location  `json:"location"`
	PricePerDay MoneyDTO  `json:"price_per_day"`
	Deposit     MoneyDTO  `json:"deposit"`
	Images      []string  `json:"images"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ListingCollection struct {
	Items []Listing `json:"items"`
	Total int       `json:"total"`
}

func MapListing(l *domainlisting.Listing) Listing {
	return Listing{
		ID:          string(l.ID),
		OwnerID:     string(l.Owner),
		Title:       l.Title,
		Description: l.Description,
		Vehicle: Vehicle{
			Type:         string(l.Vehicle.Type),
			Brand:        l.Vehicle.Brand,
			Model:        l.Vehicle.Model,
			Year:         l.Vehicle.Year,
			Seats:        l.Vehicle.Seats,
			Transmission: l.Vehicle.Transmission,
			Fuel:         l.Vehicle.Fuel,
			Features:     l.Vehicle.Features,
		},
		Location: Location{
			Country:  l.Location.Country,
			Province: l.Location.Province,
			District: l.Location.District,
			City:     l.Location.City,
			Address:  l.Location.Address,
		},
		PricePerDay: MapMoney(l.PricePerDay),
		Deposit:     MapMoney(l.Deposit),
		Images:      append([]string(nil), l.Images...),
		Status:      string(l.State),
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}
