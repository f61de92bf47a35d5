package listing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"driveshare/internal/app/uow"
	"driveshare/internal/domain/fault"
	domainlisting "driveshare/internal/domain/listing"
)

// Uploader stores binary content and returns a public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error)
}

// PhotoService attaches uploaded vehicle photos to a listing the caller owns.
type PhotoService struct {
	UoWFactory uow.Factory
	Uploader   Uploader
	Clock      func() time.Time
}

func (s *PhotoService) Attach(ctx context.Context, ownerID, listingID, filename, contentType string, content io.Reader) (string, error) {
	if strings.TrimSpace(ownerID) == "" {
		return "", fault.New(fault.KindUnauthorized, "owner identity required")
	}
	if s.Uploader == nil {
		return "", fault.New(fault.KindUnavailable, "photo storage not configured")
	}

	unit, err := s.UoWFactory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return "", fault.Wrap(fault.KindUnavailable, "storage unavailable", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(ctx)
		}
	}()

	lst, err := unit.Listings().ByID(ctx, domainlisting.ID(listingID))
	if err != nil {
		if errors.Is(err, domainlisting.ErrNotFound) {
			return "", fault.Wrap(fault.KindNotFound, "listing not found", err)
		}
		return "", fault.Wrap(fault.KindUnavailable, "listing lookup failed", err)
	}
	if string(lst.Owner) != ownerID {
		return "", fault.New(fault.KindForbidden, "listing belongs to another owner")
	}

	now := s.now()
	key := fmt.Sprintf("listings/%s/%d%s", listingID, now.UnixNano(), path.Ext(filename))
	url, err := s.Uploader.Upload(ctx, key, content, contentType)
	if err != nil {
		return "", fault.Wrap(fault.KindUnavailable, "photo upload failed", err)
	}

	lst.AddImage(url, now)
	if err := unit.Listings().Save(ctx, lst); err != nil {
		return "", fault.Wrap(fault.KindUnavailable, "listing save failed", err)
	}
	if err := unit.Commit(ctx); err != nil {
		return "", fault.Wrap(fault.KindUnavailable, "commit failed", err)
	}
	committed = true
	return url, nil
}

func (s *PhotoService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}
