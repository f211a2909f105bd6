package config

// MailConfig configures outbound mail.  Without SMTPHost messages are only
// logged; without AMQPURL they are sent inline instead of through the queue.
type MailConfig struct {
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	From     string
	AMQPURL  string
	Queue    string
}

// LoadMailConfig reads SMTP_* and RABBITMQ_URL variables.
func LoadMailConfig() MailConfig {
	amqpURL := envStr("RABBITMQ_URL", "")
	if amqpURL == "" {
		amqpURL = envStr("AMQP_URL", "")
	}
	return MailConfig{
		SMTPHost: envStr("SMTP_HOST", ""),
		SMTPPort: envStr("SMTP_PORT", "587"),
		SMTPUser: envStr("SMTP_USERNAME", ""),
		SMTPPass: envStr("SMTP_PASSWORD", ""),
		From:     envStr("MAIL_FROM", "no-reply@localhost"),
		AMQPURL:  amqpURL,
		Queue:    envStr("MAIL_QUEUE", "mail.outbound"),
	}
}
