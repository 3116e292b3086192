package email

import (
	"context"
	"fmt"
	"html"

	"github.com/dajtvoxdev/tourimate-sub003/internal/config"
	"github.com/dajtvoxdev/tourimate-sub003/internal/mailer"
)

// Notifier renders and sends the transactional mails the booking
// lifecycle produces. All sends are best-effort from the caller's
// point of view; nothing here touches the database.
type Notifier struct {
	mail     mailer.Service
	fromName string
	fromAddr string
}

func NewNotifier(m mailer.Service, smtp config.SMTPConfig) *Notifier {
	return &Notifier{
		mail:     m,
		fromName: smtp.FromName,
		fromAddr: smtp.FromAddress,
	}
}

func (n *Notifier) SendBookingConfirmation(ctx context.Context, to, name, bookingNumber, total string) error {
	if to == "" {
		return fmt.Errorf("email: recipient required")
	}
	subject := fmt.Sprintf("Booking %s confirmed", bookingNumber)
	text := fmt.Sprintf(
		"Hello %s,\n\nWe received your payment of %s.\nYour booking %s is confirmed.\n\nSee you on tour!\n",
		name, total, bookingNumber)
	htmlBody := fmt.Sprintf(`<p>Hello %s,</p>
<p>We received your payment of <strong>%s</strong>.</p>
<p>Your booking <strong>%s</strong> is confirmed.</p>
<p>See you on tour!</p>`,
		html.EscapeString(name), html.EscapeString(total), html.EscapeString(bookingNumber))

	return n.send(ctx, to, subject, text, htmlBody)
}

func (n *Notifier) SendRefundProcessed(ctx context.Context, to, name, bookingNumber, amount string) error {
	if to == "" {
		return fmt.Errorf("email: recipient required")
	}
	subject := fmt.Sprintf("Refund for booking %s on its way", bookingNumber)
	text := fmt.Sprintf(
		"Hello %s,\n\nYour refund of %s for booking %s has been sent to your bank account.\nIt may take a few business days to arrive.\n",
		name, amount, bookingNumber)
	htmlBody := fmt.Sprintf(`<p>Hello %s,</p>
<p>Your refund of <strong>%s</strong> for booking <strong>%s</strong> has been sent to your bank account.</p>
<p>It may take a few business days to arrive.</p>`,
		html.EscapeString(name), html.EscapeString(amount), html.EscapeString(bookingNumber))

	return n.send(ctx, to, subject, text, htmlBody)
}

func (n *Notifier) SendPayoutProcessed(ctx context.Context, to, name, reference, amount string) error {
	if to == "" {
		return fmt.Errorf("email: recipient required")
	}
	subject := fmt.Sprintf("Payout for %s processed", reference)
	text := fmt.Sprintf(
		"Hello %s,\n\nYour payout of %s for %s has been transferred to your registered bank account.\n",
		name, amount, reference)
	htmlBody := fmt.Sprintf(`<p>Hello %s,</p>
<p>Your payout of <strong>%s</strong> for <strong>%s</strong> has been transferred to your registered bank account.</p>`,
		html.EscapeString(name), html.EscapeString(amount), html.EscapeString(reference))

	return n.send(ctx, to, subject, text, htmlBody)
}

func (n *Notifier) send(ctx context.Context, to, subject, text, htmlBody string) error {
	return n.mail.Send(ctx, mailer.Email{
		FromName: n.fromName,
		From:     n.fromAddr,
		To:       []string{to},
		Subject:  subject,
		TextBody: text,
		HTMLBody: htmlBody,
	})
}
