package email

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/leadsla/internal/config"
	"github.com/jwalitptl/leadsla/pkg/circuitbreaker"
	apperrors "github.com/jwalitptl/leadsla/pkg/errors"
)

// Transport delivers one rendered html message. Implementations return
// errors wrapped as apperrors.Transport.
type Transport interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPTransport sends through an SMTP relay. Sends are throttled and a
// failing relay trips the breaker so retries fail fast.
type SMTPTransport struct {
	dialer    dialer
	fromEmail string
	fromName  string
	limiter   *rate.Limiter
	breaker   *circuitbreaker.CircuitBreaker
}

func NewSMTPTransport(cfg config.SMTPConfig) *SMTPTransport {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &SMTPTransport{
		dialer:    gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		limiter:   rate.NewLimiter(limit, burst),
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "smtp",
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		}),
	}
}

func (t *SMTPTransport) Send(ctx context.Context, to, subject, htmlBody string) error {
	if to == "" {
		return apperrors.Transport(fmt.Errorf("empty recipient"))
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return apperrors.Transport(err)
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", t.fromEmail, t.fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	err := t.breaker.Execute(func() error {
		return t.dialer.DialAndSend(m)
	})
	if err != nil {
		return apperrors.Transport(fmt.Errorf("send to %s: %w", to, err))
	}
	return nil
}
