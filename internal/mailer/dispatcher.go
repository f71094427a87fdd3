// Rewardly - Personalized Discount Reward Recommendations
// Copyright 2026 D. Marceau (dmarceau)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dmarceau/rewardly

// Package mailer delivers reward emails for a recommendation set.
//
// Delivery is rate limited and guarded by a circuit breaker so a
// misbehaving SMTP server degrades dispatch instead of hammering it. The
// actual transport is injectable for tests.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/dmarceau/rewardly/internal/metrics"
	"github.com/dmarceau/rewardly/internal/models"
)

// Config holds SMTP delivery settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	UseTLS   bool

	// RatePerSecond throttles outbound messages (0 = unlimited).
	RatePerSecond float64

	// Timeout bounds one SMTP conversation.
	Timeout time.Duration
}

// SendFunc delivers one raw message to a recipient. Injectable for tests.
type SendFunc func(ctx context.Context, to string, msg []byte) error

// Result summarizes one dispatch pass.
type Result struct {
	ModelID string `json:"model_id"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}

// Dispatcher sends reward emails to every entry in a set that carries a
// real address.
type Dispatcher struct {
	cfg     Config
	send    SendFunc
	breaker *gobreaker.CircuitBreaker[struct{}]
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher using the default SMTP transport.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewDispatcher(cfg Config, logger zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		cfg:    cfg,
		logger: logger.With().Str("component", "mailer").Logger(),
	}
	d.send = d.sendSMTP

	if cfg.RatePerSecond > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}

	d.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return d
}

// SetSendFunc replaces the transport. Used by tests.
func (d *Dispatcher) SetSendFunc(fn SendFunc) { d.send = fn }

// Dispatch sends one email per addressable entry. Entries with the
// no-email sentinel are counted as skipped; individual delivery failures
// do not abort the pass.
func (d *Dispatcher) Dispatch(ctx context.Context, set *models.RecommendationSet) (Result, error) {
	if set == nil {
		return Result{}, fmt.Errorf("no recommendation set to dispatch")
	}

	res := Result{ModelID: set.ModelID}
	res.Skipped = len(set.Entries)

	for _, entry := range set.EmailEntries() {
		res.Skipped--

		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return res, fmt.Errorf("rate limiter: %w", err)
			}
		}

		msg := d.buildMessage(entry)
		_, err := d.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, d.send(ctx, entry.Email, msg)
		})
		if err != nil {
			res.Failed++
			metrics.DispatchEmailsTotal.WithLabelValues("failed").Inc()
			d.logger.Error().Err(err).Str("customer_id", entry.CustomerID).Msg("reward email delivery failed")
			continue
		}

		res.Sent++
		metrics.DispatchEmailsTotal.WithLabelValues("sent").Inc()
	}

	d.logger.Info().
		Str("model_id", set.ModelID).
		Int("sent", res.Sent).
		Int("failed", res.Failed).
		Int("skipped", res.Skipped).
		Msg("dispatch pass complete")

	return res, nil
}

// buildMessage renders one reward email. Reward lines appear exactly as
// Reward.String renders them.
func (d *Dispatcher) buildMessage(entry models.RecommendationEntry) []byte {
	fromName := d.cfg.FromName
	if fromName == "" {
		fromName = "Rewardly"
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", fromName, d.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", entry.Email))
	msg.WriteString("Subject: Your personalized discount rewards\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString("Here are your personalized discount rewards:\r\n\r\n")
	for _, line := range entry.RewardStrings() {
		msg.WriteString(line)
		msg.WriteString("\r\n")
	}
	msg.WriteString("\r\nRedeem each code at checkout before it expires.\r\n")
	return []byte(msg.String())
}

// sendSMTP is the default transport.
func (d *Dispatcher) sendSMTP(ctx context.Context, to string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)

	timeout := d.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }() //nolint:errcheck // best effort cleanup

	client, err := smtp.NewClient(conn, d.cfg.Host)
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }() //nolint:errcheck // best effort cleanup

	if d.cfg.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: d.cfg.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("start TLS: %w", err)
		}
	}

	if d.cfg.Username != "" && d.cfg.Password != "" {
		auth := smtp.PlainAuth("", d.cfg.Username, d.cfg.Password, d.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication: %w", err)
		}
	}

	if err := client.Mail(d.cfg.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("start message: %w", err)
	}
	if _, err := writer.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	// Quit failures after a successful DATA are ignored.
	_ = client.Quit() //nolint:errcheck // message already accepted

	return nil
}
