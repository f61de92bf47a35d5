package notify

import (
	"context"
	"fmt"
	"log/slog"

	domainreservation "driveshare/internal/domain/reservation"
)

// ReservationNotifier tells the renter about booking outcomes over email and
// SMS. Delivery is best-effort: failures are logged, never surfaced to the
// booking flow.
type ReservationNotifier struct {
	Email  *EmailSender
	SMS    *SMSSender
	Logger *slog.Logger
}

func (n *ReservationNotifier) ReservationConfirmed(ctx context.Context, res *domainreservation.Reservation) {
	subject := "Your booking is confirmed"
	body := fmt.Sprintf(
		"Hi %s, your vehicle rental from %s to %s is confirmed. Total: %.2f %s.",
		res.Contact.Name,
		res.Range.Start.Format("2006-01-02"),
		res.Range.End.Format("2006-01-02"),
		float64(res.Price.Total.Amount)/100,
		res.Price.Total.Currency,
	)
	n.deliver(ctx, res, subject, body)
}

func (n *ReservationNotifier) ReservationCancelled(ctx context.Context, res *domainreservation.Reservation) {
	subject := "Your booking was cancelled"
	body := fmt.Sprintf(
		"Hi %s, your vehicle rental from %s to %s has been cancelled.",
		res.Contact.Name,
		res.Range.Start.Format("2006-01-02"),
		res.Range.End.Format("2006-01-02"),
	)
	n.deliver(ctx, res, subject, body)
}

func (n *ReservationNotifier) deliver(ctx context.Context, res *domainreservation.Reservation, subject, body string) {
	if n.Email != nil && res.Contact.Email != "" {
		if err := n.Email.Send(ctx, res.Contact.Email, res.Contact.Name, subject, body, ""); err != nil {
			n.log().Warn("reservation email failed", "reservation_id", res.ID, "error", err)
		}
	}
	if n.SMS != nil && res.Contact.Phone != "" {
		if err := n.SMS.Send(ctx, res.Contact.Phone, subject+". "+body); err != nil {
			n.log().Warn("reservation sms failed", "reservation_id", res.ID, "error", err)
		}
	}
}

func (n *ReservationNotifier) log() *slog.Logger {
	if n.Logger != nil {
		return n.Logger
	}
	return slog.Default()
}
