package services

import (
	"fmt"
	"log/slog"
	"net/smtp"

	"github.com/domodwyer/mailyak/v3"
	pubnub "github.com/pubnub/go"

	"eventix/models"
	"eventix/utils"
)

// Mailer sends a single HTML email.
type Mailer interface {
	Send(to, subject, html string) error
}

// SMTPMailer sends through a plain SMTP relay via mailyak.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPMailer(host, port, user, pass, from string) *SMTPMailer {
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, pass, host)
	}
	return &SMTPMailer{
		addr: fmt.Sprintf("%s:%s", host, port),
		auth: auth,
		from: from,
	}
}

func (m *SMTPMailer) Send(to, subject, html string) error {
	mail := mailyak.New(m.addr, m.auth)
	mail.From(m.from)
	mail.To(to)
	mail.Subject(subject)
	mail.HTML().Set(html)
	return mail.Send()
}

// Notifier fans transaction events out to email and realtime channels.
// Everything here is best-effort: failures are logged and swallowed, and
// each channel sits behind a circuit breaker so a dead upstream does not
// get hammered on every transition.
type Notifier struct {
	mailer Mailer
	pn     *pubnub.PubNub

	mailBreaker *utils.CircuitBreaker
	pubBreaker  *utils.CircuitBreaker
	logger      *slog.Logger
}

func NewNotifier(mailer Mailer, pn *pubnub.PubNub) *Notifier {
	return &Notifier{
		mailer:      mailer,
		pn:          pn,
		mailBreaker: utils.NewCircuitBreaker("mail"),
		pubBreaker:  utils.NewCircuitBreaker("pubnub"),
		logger:      slog.Default().With("service", "notifier"),
	}
}

func (n *Notifier) SendEmail(to, subject, html string) {
	if n.mailer == nil || to == "" {
		return
	}
	err := n.mailBreaker.Execute(func() error {
		return n.mailer.Send(to, subject, html)
	})
	if err != nil {
		n.logger.Warn("email send failed", "to", to, "subject", subject, "error", err)
	}
}

// PublishStatus pushes a transaction status change to the user's realtime
// channel.
func (n *Notifier) PublishStatus(userID string, t *models.Transaction) {
	if n.pn == nil {
		return
	}
	err := n.pubBreaker.Execute(func() error {
		channel := fmt.Sprintf("user-%s", userID)
		_, _, err := n.pn.Publish().
			Channel(channel).
			Message(map[string]any{
				"type":           "transaction_status",
				"transaction_id": t.ID,
				"status":         string(t.Status),
				"total_price":    t.TotalPrice,
			}).
			Execute()
		return err
	})
	if err != nil {
		n.logger.Warn("realtime publish failed", "user_id", userID, "transaction_id", t.ID, "error", err)
	}
}
