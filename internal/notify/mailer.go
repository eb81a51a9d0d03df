package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/turf-booking/internal/config"
	"github.com/iliyamo/turf-booking/internal/logging"
)

type sendFunc func(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error

const defaultMailTimeout = 10 * time.Second

// Mailer emails confirmations over SMTP.  Without a configured host and
// sender, or without a recipient, it does nothing.  Each delivery is
// bounded by the configured timeout and by the caller's context.
type Mailer struct {
	cfg  config.MailConfig
	send sendFunc
}

// NewMailer returns a Mailer for cfg.
func NewMailer(cfg config.MailConfig) *Mailer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultMailTimeout
	}
	return &Mailer{cfg: cfg, send: sendMail}
}

func (m *Mailer) BookingConfirmed(ctx context.Context, msg BookingConfirmation) error {
	if !m.cfg.Enabled() || msg.Email == "" {
		logging.FromContext(ctx).WithField("booking_id", msg.BookingCode).Debug("mail skipped")
		return nil
	}
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(ctx, addr, auth, m.cfg.From, []string{msg.Email}, composeConfirmation(m.cfg.From, msg)); err != nil {
		return fmt.Errorf("send confirmation %s: %w", msg.BookingCode, err)
	}
	return nil
}

// sendMail is smtp.SendMail with the connection tied to ctx: the dial
// honours its deadline and the socket is closed once ctx is done, which
// unblocks any pending read or write.
func sendMail(ctx context.Context, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	err = deliver(conn, addr, a, from, to, msg)
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}

func deliver(conn net.Conn, addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		_ = conn.Close()
		return err
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func composeConfirmation(from string, msg BookingConfirmation) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.Email)
	fmt.Fprintf(&b, "Subject: Booking Confirmed (%s)\r\n", msg.BookingCode)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString("Your booking is confirmed.\r\n\r\n")
	fmt.Fprintf(&b, "Booking ID: %s\r\n", msg.BookingCode)
	fmt.Fprintf(&b, "Payment ID: %s\r\n", msg.PaymentID)
	fmt.Fprintf(&b, "Amount Paid: ₹%d\r\n", msg.AmountRupees)
	fmt.Fprintf(&b, "Date: %s\r\n", msg.Date)
	fmt.Fprintf(&b, "Time: %s\r\n\r\n", strings.Join(msg.Slots, ", "))
	b.WriteString("Thank you.\r\n")
	return []byte(b.String())
}
