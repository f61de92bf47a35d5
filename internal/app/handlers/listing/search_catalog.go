package listing

import (
	"context"
	"errors"

	"driveshare/internal/app/dto"
	handlersupport "driveshare/internal/app/handlers/support"
	"driveshare/internal/app/queries"
	"driveshare/internal/app/uow"
	"driveshare/internal/domain/fault"
	domainlisting "driveshare/internal/domain/listing"
)

const (
	searchCatalogKey = "listing.search"
	getListingKey    = "listing.get"
)

type SearchCatalogQuery struct {
	City        string
	VehicleType string
	PriceMin    int64
	PriceMax    int64
	Owner       string
	Limit       int
	Offset      int
}

func (q SearchCatalogQuery) Key() string { return searchCatalogKey }

type SearchCatalogHandler struct {
	UoWFactory uow.Factory
}

func (h *SearchCatalogHandler) Handle(ctx context.Context, q SearchCatalogQuery) (dto.ListingCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ListingCollection{}, fault.Wrap(fault.KindUnavailable, "storage unavailable", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	result, err := unit.Listings().Search(execCtx, domainlisting.SearchParams{
		Owner:       domainlisting.OwnerID(q.Owner),
		City:        q.City,
		VehicleType: domainlisting.VehicleType(q.VehicleType),
		PriceMin:    q.PriceMin,
		PriceMax:    q.PriceMax,
		OnlyActive:  q.Owner == "",
		Limit:       q.Limit,
		Offset:      q.Offset,
	})
	if err != nil {
		return dto.ListingCollection{}, fault.Wrap(fault.KindUnavailable, "catalog query failed", err)
	}

	items := make([]dto.Listing, 0, len(result.Items))
	for _, lst := range result.Items {
		items = append(items, dto.MapListing(lst))
	}
	return dto.ListingCollection{Items: items, Total: result.Total}, nil
}

type GetListingQuery struct {
	ListingID string
}

func (q GetListingQuery) Key() string { return getListingKey }

type GetListingHandler struct {
	UoWFactory uow.Factory
}

func (h *GetListingHandler) Handle(ctx context.Context, q GetListingQuery) (dto.Listing, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Listing{}, fault.Wrap(fault.KindUnavailable, "storage unavailable", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	lst, err := unit.Listings().ByID(execCtx, domainlisting.ID(q.ListingID))
	if err != nil {
		if errors.Is(err, domainlisting.ErrNotFound) {
			return dto.Listing{}, fault.Wrap(fault.KindNotFound, "listing not found", err)
		}
		return dto.Listing{}, fault.Wrap(fault.KindUnavailable, "listing lookup failed", err)
	}
	return dto.MapListing(lst), nil
}

var _ queries.Handler[SearchCatalogQuery, dto.ListingCollection] = (*SearchCatalogHandler)(nil)
var _ queries.Handler[GetListingQuery, dto.Listing] = (*GetListingHandler)(nil)
