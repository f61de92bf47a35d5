package middleware

import (
	"context"
	"errors"
	"testing"

	"driveshare/internal/app/commands"
	"driveshare/internal/app/uow"
	domainlisting "driveshare/internal/domain/listing"
	domainreservation "driveshare/internal/domain/reservation"
	domainuser "driveshare/internal/domain/user"
)

type sessionKey struct{}

type stubUnit struct {
	injected   bool
	committed  bool
	rolledBack bool
}

func (u *stubUnit) Listings() domainlisting.Repository         { return nil }
func (u *stubUnit) Reservations() domainreservation.Repository { return nil }
func (u *stubUnit) Users() domainuser.Repository               { return nil }

func (u *stubUnit) Commit(ctx context.Context) error {
	u.committed = true
	return nil
}

func (u *stubUnit) Rollback(ctx context.Context) error {
	u.rolledBack = true
	return nil
}

func (u *stubUnit) InjectContext(ctx context.Context) context.Context {
	u.injected = true
	return context.WithValue(ctx, sessionKey{}, u)
}

type stubFactory struct {
	unit *stubUnit
}

func (f stubFactory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	return f.unit, nil
}

type noopCommand struct{}

func (noopCommand) Key() string { return "noop" }

func TestTransactionBindsUnitToHandlerContext(t *testing.T) {
	unit := &stubUnit{}
	var seen context.Context
	base := commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
		seen = ctx
		return "ok", nil
	})

	bus := Transaction(stubFactory{unit: unit}, nil)(base)
	if _, err := bus.Dispatch(context.Background(), noopCommand{}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	if !unit.injected {
		t.Errorf("unit context injection never ran")
	}
	if seen.Value(sessionKey{}) != unit {
		t.Errorf("handler context not bound to the unit's session")
	}
	got, ok := uow.FromContext(seen)
	if !ok || got != uow.UnitOfWork(unit) {
		t.Errorf("unit of work missing from handler context")
	}
	if !unit.committed || unit.rolledBack {
		t.Errorf("committed=%v rolledBack=%v; want commit only", unit.committed, unit.rolledBack)
	}
}

func TestTransactionRollsBackOnHandlerError(t *testing.T) {
	unit := &stubUnit{}
	base := commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
		return nil, errors.New("boom")
	})

	bus := Transaction(stubFactory{unit: unit}, nil)(base)
	if _, err := bus.Dispatch(context.Background(), noopCommand{}); err == nil {
		t.Fatalf("Dispatch() error = nil; want handler error")
	}

	if unit.committed {
		t.Errorf("unit committed despite handler error")
	}
	if !unit.rolledBack {
		t.Errorf("unit not rolled back on handler error")
	}
}
