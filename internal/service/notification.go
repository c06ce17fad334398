package service

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"gearbox-rental-backend/internal/domain"
	"gearbox-rental-backend/internal/logger"
)

type sendGridNotifier struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
}

func NewSendGridNotifier(apiKey, fromEmail, fromName string) Notifier {
	return &sendGridNotifier{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (n *sendGridNotifier) BookingConfirmed(ctx context.Context, c *domain.Customer, b *domain.Booking) error {
	subject := "Your rental is confirmed"
	body := fmt.Sprintf("Hello %s,\n\nYour booking %s from %s to %s is confirmed.\n\nDeposit held: %s\n\nSee you soon,\nThe Gearbox Team",
		c.Name, b.ID, b.PickupDate.Format("Jan 2, 2006"), b.ReturnDate.Format("Jan 2, 2006"), formatCents(b.DepositCents))
	return n.send(ctx, "BookingConfirmed", c.Email, c.Name, subject, body)
}

func (n *sendGridNotifier) BookingRejected(ctx context.Context, pb *domain.PastBooking) error {
	if pb.CustomerEmail == "" {
		return nil
	}
	body := fmt.Sprintf("Hello %s,\n\nUnfortunately we could not accept your booking for %s to %s.",
		pb.CustomerName, pb.PickupDate.Format("Jan 2, 2006"), pb.ReturnDate.Format("Jan 2, 2006"))
	if pb.ActionReason != "" {
		body += fmt.Sprintf("\n\nReason: %s", pb.ActionReason)
	}
	body += "\n\nBest regards,\nThe Gearbox Team"
	return n.send(ctx, "BookingRejected", pb.CustomerEmail, pb.CustomerName, "About your rental request", body)
}

func (n *sendGridNotifier) DepositRefunded(ctx context.Context, c *domain.Customer, b *domain.Booking) error {
	body := fmt.Sprintf("Hello %s,\n\nYour deposit of %s for booking %s has been refunded.\n\nThanks for renting with us,\nThe Gearbox Team",
		c.Name, formatCents(b.DepositCents), b.ID)
	return n.send(ctx, "DepositRefunded", c.Email, c.Name, "Your deposit has been refunded", body)
}

func (n *sendGridNotifier) send(ctx context.Context, op, to, toName, subject, plainText string) error {
	logger.ExternalServiceCall("sendgrid", op, "to", to)
	message := mail.NewSingleEmail(mail.NewEmail(n.fromName, n.fromEmail), subject, mail.NewEmail(toName, to), plainText, "")
	response, err := n.client.SendWithContext(ctx, message)
	if err == nil && response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	logger.ExternalServiceResult("sendgrid", op, err, "to", to)
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", op, err)
	}
	return nil
}

// logNotifier is used when no SendGrid key is configured.
type logNotifier struct{}

func NewLogNotifier() Notifier {
	return logNotifier{}
}

func (logNotifier) BookingConfirmed(ctx context.Context, c *domain.Customer, b *domain.Booking) error {
	logger.InfoContext(ctx, "Email skipped: booking confirmed", "to", c.Email, "bookingID", b.ID)
	return nil
}

func (logNotifier) BookingRejected(ctx context.Context, pb *domain.PastBooking) error {
	logger.InfoContext(ctx, "Email skipped: booking rejected", "to", pb.CustomerEmail, "bookingID", pb.OriginalBookingID)
	return nil
}

func (logNotifier) DepositRefunded(ctx context.Context, c *domain.Customer, b *domain.Booking) error {
	logger.InfoContext(ctx, "Email skipped: deposit refunded", "to", c.Email, "bookingID", b.ID)
	return nil
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
