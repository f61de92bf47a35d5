package listing

import (
	"context"
	"strings"
	"time"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/dto"
	"driveshare/internal/app/uow"
	"driveshare/internal/domain/fault"
	domainlisting "driveshare/internal/domain/listing"
	"driveshare/internal/domain/shared/money"
)

const createListingKey = "listing.create"

type CreateListingCommand struct {
	CommandID   string
	OwnerID     string
	Title       string
	Description string
	Vehicle     domainlisting.Vehicle
	Location    domainlisting.Location
	PricePerDay money.Money
	Deposit     money.Money
	Images      []string
}

func (c CreateListingCommand) Key() string { return createListingKey }

type CreateListingHandler struct {
	UoWFactory uow.Factory
	Clock      func() time.Time
}

func (h *CreateListingHandler) Handle(ctx context.Context, cmd CreateListingCommand) (*dto.Listing, error) {
	if strings.TrimSpace(cmd.OwnerID) == "" {
		return nil, fault.New(fault.KindUnauthorized, "owner identity required")
	}

	unit, ok := uow.FromContext(ctx)
	managed := false
	committed := false
	var err error
	if !ok {
		if h.UoWFactory == nil {
			return nil, fault.Wrap(fault.KindUnavailable, "unit of work missing", uow.ErrUnitOfWorkMissing)
		}
		unit, err = h.UoWFactory.Begin(ctx, uow.TxOptions{})
		if err != nil {
			return nil, fault.Wrap(fault.KindUnavailable, "storage unavailable", err)
		}
		ctx = uow.ContextWithUnitOfWork(ctx, unit)
		managed = true
	}
	if managed {
		defer func() {
			if !committed {
				_ = unit.Rollback(ctx)
			}
		}()
	}

	lst, err := domainlisting.New(domainlisting.CreateParams{
		ID:          domainlisting.ID(cmd.CommandID),
		Owner:       domainlisting.OwnerID(cmd.OwnerID),
		Title:       cmd.Title,
		Description: cmd.Description,
		Vehicle:     cmd.Vehicle,
		Location:    cmd.Location,
		PricePerDay: cmd.PricePerDay,
		Deposit:     cmd.Deposit,
		Images:      cmd.Images,
		Now:         h.now(),
	})
	if err != nil {
		return nil, fault.Wrap(fault.KindMissingField, "invalid listing", err)
	}

	if err := unit.Listings().Save(ctx, lst); err != nil {
		return nil, fault.Wrap(fault.KindUnavailable, "listing save failed", err)
	}

	if managed {
		if err := unit.Commit(ctx); err != nil {
			return nil, fault.Wrap(fault.KindUnavailable, "commit failed", err)
		}
		committed = true
	}

	out := dto.MapListing(lst)
	return &out, nil
}

func (h *CreateListingHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now().UTC()
}

var _ commands.Handler[CreateListingCommand, *dto.Listing] = (*CreateListingHandler)(nil)
