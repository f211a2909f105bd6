// Package mailer delivers verification and password reset mail.  Delivery
// is best effort: callers learn whether a message left the process or was
// only written to the log.
package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/member-directory/internal/config"
	"github.com/iliyamo/member-directory/internal/queue"
)

type Message struct {
	To        string
	Subject   string
	Body      string
	Kind      string
	ProfileID uint64
}

// Delivery reports what happened to a message.
type Delivery string

const (
	Sent   Delivery = "sent"
	Queued Delivery = "queued"
	Logged Delivery = "logged"
)

// Dispatched is true when the message left the process.
func (d Delivery) Dispatched() bool { return d == Sent || d == Queued }

type Sender interface {
	Send(ctx context.Context, m Message) (Delivery, error)
}

type Recorder interface{ Mail(result string) }

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends with net/smtp, or logs the message when no host is set.
type SMTPMailer struct {
	cfg  config.MailConfig
	log  *zap.Logger
	rec  Recorder
	send sendFunc
}

func NewSMTPMailer(cfg config.MailConfig, rec Recorder, log *zap.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, log: log, rec: rec, send: smtp.SendMail}
}

func (m *SMTPMailer) record(result string) {
	if m.rec != nil {
		m.rec.Mail(result)
	}
}

func (m *SMTPMailer) Send(_ context.Context, msg Message) (Delivery, error) {
	if m.cfg.SMTPHost == "" {
		// The body holds the link; an operator can hand it out from here.
		m.log.Info("smtp not configured, mail logged",
			zap.String("to", msg.To), zap.String("subject", msg.Subject), zap.String("body", msg.Body))
		m.record(string(Logged))
		return Logged, nil
	}

	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}
	raw := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\nDate: %s\r\n\r\n%s\r\n",
		m.cfg.From, msg.To, msg.Subject, time.Now().UTC().Format(time.RFC1123Z), msg.Body)
	if err := m.send(m.cfg.SMTPHost+":"+m.cfg.SMTPPort, auth, m.cfg.From, []string{msg.To}, []byte(raw)); err != nil {
		m.record("failed")
		return Logged, fmt.Errorf("smtp send: %w", err)
	}
	m.record(string(Sent))
	return Sent, nil
}

// HandleQueued is the queue.Handler for MailRequested deliveries.
func (m *SMTPMailer) HandleQueued(ctx context.Context, body []byte) error {
	var ev queue.MailRequested
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	_, err := m.Send(ctx, Message{To: ev.To, Subject: ev.Subject, Body: ev.Body, Kind: ev.Kind, ProfileID: ev.ProfileID})
	return err
}

type publisher interface {
	Publish(ctx context.Context, v any) error
}

// QueueMailer hands messages to RabbitMQ and falls back to inline delivery
// when the broker is unreachable.
type QueueMailer struct {
	pub      publisher
	fallback Sender
	rec      Recorder
	log      *zap.Logger
}

func NewQueueMailer(pub publisher, fallback Sender, rec Recorder, log *zap.Logger) *QueueMailer {
	return &QueueMailer{pub: pub, fallback: fallback, rec: rec, log: log}
}

func (q *QueueMailer) Send(ctx context.Context, m Message) (Delivery, error) {
	err := q.pub.Publish(ctx, queue.MailRequested{
		To: m.To, Subject: m.Subject, Body: m.Body, Kind: m.Kind, ProfileID: m.ProfileID,
		RequestedAt: time.Now().UTC(),
	})
	if err == nil {
		if q.rec != nil {
			q.rec.Mail(string(Queued))
		}
		return Queued, nil
	}
	q.log.Warn("mail queue unavailable, sending inline", zap.String("kind", m.Kind), zap.Error(err))
	return q.fallback.Send(ctx, m)
}

// Queueable reports whether mail may go through the broker.  A queued
// message counts as dispatched, so the queue is only used when the consumer
// behind it can actually reach an SMTP server.
func Queueable(cfg config.MailConfig) bool {
	return cfg.AMQPURL != "" && cfg.SMTPHost != ""
}

// NewSender returns a QueueMailer over pub when cfg is Queueable and the
// inline SMTP mailer otherwise.
func NewSender(cfg config.MailConfig, inline *SMTPMailer, pub publisher, rec Recorder, log *zap.Logger) Sender {
	if !Queueable(cfg) {
		if cfg.AMQPURL != "" {
			log.Warn("mail queue disabled without SMTP_HOST, messages are logged inline")
		}
		return inline
	}
	return NewQueueMailer(pub, inline, rec, log)
}

// VerificationMessage builds the mail sent after registration.
func VerificationMessage(to string, profileID uint64, link string) Message {
	return Message{
		To:        to,
		Subject:   "Confirm your e-mail address",
		Kind:      "verification",
		ProfileID: profileID,
		Body: strings.Join([]string{
			"Thank you for registering.",
			"",
			"Please confirm your e-mail address by opening the link below:",
			link,
			"",
			"Your profile will be visible to other members once it has been reviewed.",
		}, "\r\n"),
	}
}

// ResetMessage builds the password reset mail.
func ResetMessage(to string, profileID uint64, link string) Message {
	return Message{
		To:        to,
		Subject:   "Reset your password",
		Kind:      "reset",
		ProfileID: profileID,
		Body: strings.Join([]string{
			"A password reset was requested for your account.",
			"",
			"Open the link below within one hour to choose a new password:",
			link,
			"",
			"If you did not ask for this, ignore this message.",
		}, "\r\n"),
	}
}
