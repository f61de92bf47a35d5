package pricing

import (
	"errors"

	"driveshare/internal/domain/shared/daterange"
	"driveshare/internal/domain/shared/money"
)

var (
	ErrNegativeRate  = errors.New("pricing: price per day cannot be negative")
	ErrCurrencyUnset = errors.New("pricing: currency must be defined")
	ErrNoDays        = errors.New("pricing: range must cover at least one day")
)

// DefaultTaxBasisPoints is the flat tax applied to every rental: 10%.
const DefaultTaxBasisPoints int64 = 1_000

// Snapshot is the price breakdown frozen at booking time. It is computed once
// and persisted alongside the reservation, never recomputed from the listing.
type Snapshot struct {
	PricePerDay money.Money
	Days        int
	Subtotal    money.Money
	Taxes       money.Money
	Total       money.Money
}

// Engine quotes rentals deterministically from a daily rate and a date range.
type Engine struct {
	// TaxBasisPoints overrides the flat tax rate; zero means the default 10%.
	TaxBasisPoints int64
}

func (e Engine) Quote(pricePerDay money.Money, dr daterange.DateRange) (Snapshot, error) {
	if pricePerDay.Currency == "" {
		return Snapshot{}, ErrCurrencyUnset
	}
	if pricePerDay.IsNegative() {
		return Snapshot{}, ErrNegativeRate
	}
	days := dr.Days()
	if days <= 0 {
		return Snapshot{}, ErrNoDays
	}
	subtotal := pricePerDay.Multiply(int64(days))
	taxes := subtotal.Portion(e.taxBasisPoints())
	total, err := subtotal.Add(taxes)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		PricePerDay: pricePerDay,
		Days:        days,
		Subtotal:    subtotal,
		Taxes:       taxes,
		Total:       total,
	}, nil
}

func (e Engine) taxBasisPoints() int64 {
	if e.TaxBasisPoints > 0 {
		return e.TaxBasisPoints
	}
	return DefaultTaxBasisPoints
}
