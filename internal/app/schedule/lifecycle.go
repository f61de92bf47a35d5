package schedule

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"driveshare/internal/app/outbox"
	"driveshare/internal/app/uow"
	domainreservation "driveshare/internal/domain/reservation"
)

// DefaultSpec sweeps every ten minutes.
const DefaultSpec = "*/10 * * * *"

// LifecycleJob moves reservations forward once their range has elapsed:
// confirmed ones become completed, pending holds that were never confirmed
// become expired. Both transitions free nothing that was not already free,
// completed and expired reservations simply stop appearing in renter views as
// active.
type LifecycleJob struct {
	UoWFactory uow.Factory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	Clock      func() time.Time
}

// Start registers the sweep on the given cron runner.
func (j *LifecycleJob) Start(c *cron.Cron, spec string) (cron.EntryID, error) {
	if spec == "" {
		spec = DefaultSpec
	}
	return c.AddFunc(spec, func() {
		if err := j.RunOnce(context.Background()); err != nil {
			j.log().Error("reservation lifecycle sweep failed", "error", err)
		}
	})
}

// RunOnce performs a single sweep.
func (j *LifecycleJob) RunOnce(ctx context.Context) error {
	now := j.now()
	unit, err := j.UoWFactory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return err
	}
	if injector, ok := unit.(interface {
		InjectContext(context.Context) context.Context
	}); ok {
		ctx = injector.InjectContext(ctx)
	}
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(ctx)
		}
	}()

	completed, err := j.transition(ctx, unit, domainreservation.StatusConfirmed, now, func(res *domainreservation.Reservation) error {
		return res.Complete(now)
	})
	if err != nil {
		return err
	}
	expired, err := j.transition(ctx, unit, domainreservation.StatusPending, now, func(res *domainreservation.Reservation) error {
		return res.Expire(now)
	})
	if err != nil {
		return err
	}

	if err := unit.Commit(ctx); err != nil {
		return err
	}
	committed = true

	if completed > 0 || expired > 0 {
		j.log().Info("reservation lifecycle sweep", "completed", completed, "expired", expired)
	}
	return nil
}

func (j *LifecycleJob) transition(ctx context.Context, unit uow.UnitOfWork, status domainreservation.Status, now time.Time, apply func(*domainreservation.Reservation) error) (int, error) {
	lapsed, err := unit.Reservations().ListLapsed(ctx, status, now)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, res := range lapsed {
		if err := apply(res); err != nil {
			j.log().Warn("lifecycle transition skipped", "reservation_id", res.ID, "error", err)
			continue
		}
		if err := unit.Reservations().Save(ctx, res); err != nil {
			return count, err
		}
		pending := res.PendingEvents()
		res.ClearEvents()
		if err := outbox.RecordDomainEvents(ctx, j.Outbox, j.encoder(), pending); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

func (j *LifecycleJob) encoder() outbox.EventEncoder {
	if j.Encoder != nil {
		return j.Encoder
	}
	return outbox.JSONEventEncoder{}
}

func (j *LifecycleJob) now() time.Time {
	if j.Clock != nil {
		return j.Clock()
	}
	return time.Now().UTC()
}

func (j *LifecycleJob) log() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
