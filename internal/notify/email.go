package notify

import (
	"context"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-faster/errors"
	"github.com/wneessen/go-mail"

	"github.com/timelesslk/storefront/internal/domain/order"
)

// SMTPConfig configures the e-mail sink.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// Owner receives a copy of every order.
	Owner string
}

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Email sends the store owner a summary of every order, and the customer a
// confirmation when an address was given.
type Email struct {
	client mailSender
	from   string
	owner  string
	format Formatter
}

// NewEmail creates an SMTP-backed e-mail sink.
func NewEmail(cfg SMTPConfig, format Formatter) (*Email, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "smtp client")
	}
	return &Email{client: client, from: cfg.From, owner: cfg.Owner, format: format}, nil
}

// Name implements Sink.
func (e *Email) Name() string { return "email" }

// Send implements Sink.
func (e *Email) Send(ctx context.Context, o order.Order) error {
	body := e.format.Summary(o)

	var msgs []*mail.Msg
	if e.owner != "" {
		m, err := e.message(e.owner, "New order "+o.ID, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		msgs = append(msgs, m)
	}
	// An unusable customer address does not block the owner copy.
	if o.Customer.Email != "" {
		m, err := e.message(o.Customer.Email, "Your order "+o.ID,
			"Thank you for your order, "+o.Customer.Name+".\n\n"+body)
		if err == nil {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := e.client.DialAndSendWithContext(ctx, msgs...); err != nil {
		return errors.Wrap(err, "send mail")
	}
	return nil
}

func (e *Email) message(to, subject, body string) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(e.from); err != nil {
		return nil, errors.Wrap(err, "from")
	}
	if err := m.To(to); err != nil {
		return nil, errors.Wrapf(err, "to %q", to)
	}
	m.Subject(subject)
	m.SetBodyString(mail.TypeTextPlain, body)
	return m, nil
}
