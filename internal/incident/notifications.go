package incident

import (
	"bytes"
	"fmt"
	"net/smtp"
	"regexp"
	"strings"
	"time"

	"github.com/vaultwatch/vaultwatch/internal/logging"
)

// Notifier is one alert channel (desktop, email). Channel failures are
// caught per channel by the responder and never block other channels
// or subsequent response actions.
type Notifier interface {
	// Name identifies the channel in diagnostics ("desktop", "email").
	Name() string

	// Notify delivers an alert for the incident.
	Notify(incident *Incident) error
}

// headerPattern matches common email header injection patterns:
// Bcc:, Cc:, To:, From:, Subject:, Reply-To:, X-*: headers.
var headerPattern = regexp.MustCompile(`(?i)\b(bcc|cc|to|from|subject|reply-to|x-[a-z0-9-]+)\s*:`)

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	TLS      bool   `yaml:"tls,omitempty"`
}

// EmailAlertConfig holds configuration for transactional incident
// email. MinSeverity lets operators keep low-severity noise out of
// their inbox.
type EmailAlertConfig struct {
	SMTP        SMTPConfig `yaml:"smtp"`
	From        string     `yaml:"from"`
	To          []string   `yaml:"to"`
	MinSeverity Severity   `yaml:"min_severity,omitempty"`
}

// SMTPSendFunc is the function signature for sending mail. Injectable
// so tests never open sockets.
type SMTPSendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailNotifier sends incident alerts over SMTP.
type EmailNotifier struct {
	config     EmailAlertConfig
	smtpSender SMTPSendFunc
}

// NewEmailNotifier creates an email notifier after validating its
// configuration.
func NewEmailNotifier(config EmailAlertConfig) (*EmailNotifier, error) {
	if config.SMTP.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if config.SMTP.Port == 0 {
		return nil, fmt.Errorf("SMTP port is required")
	}
	if config.From == "" {
		return nil, fmt.Errorf("from address is required")
	}
	if len(config.To) == 0 {
		return nil, fmt.Errorf("at least one recipient is required")
	}
	if config.MinSeverity == "" {
		config.MinSeverity = SeverityLow
	}
	if !config.MinSeverity.Valid() {
		return nil, fmt.Errorf("invalid min_severity %q", config.MinSeverity)
	}

	return &EmailNotifier{
		config:     config,
		smtpSender: smtp.SendMail,
	}, nil
}

// Name implements Notifier.
func (n *EmailNotifier) Name() string { return "email" }

// Notify implements Notifier.
func (n *EmailNotifier) Notify(incident *Incident) error {
	if !incident.Severity.AtLeast(n.config.MinSeverity) {
		return nil
	}

	msg := n.buildMessage(incident)
	addr := fmt.Sprintf("%s:%d", n.config.SMTP.Host, n.config.SMTP.Port)

	var auth smtp.Auth
	if n.config.SMTP.Username != "" {
		auth = smtp.PlainAuth("", n.config.SMTP.Username, n.config.SMTP.Password, n.config.SMTP.Host)
	}

	if err := n.smtpSender(addr, auth, n.config.From, n.config.To, []byte(msg)); err != nil {
		// Server errors can echo the AUTH exchange; scrub the
		// credential before the error reaches any log.
		return fmt.Errorf("failed to send email: %s",
			logging.Redact(err.Error(), []string{n.config.SMTP.Password}))
	}
	return nil
}

// buildMessage renders a plain-text alert mail.
func (n *EmailNotifier) buildMessage(incident *Incident) string {
	subject := fmt.Sprintf("[vaultwatch] %s incident: %s",
		strings.ToUpper(string(incident.Severity)), sanitizeHeader(incident.Title))

	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", n.config.From))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(n.config.To, ", ")))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")

	buf.WriteString(fmt.Sprintf("Security Incident: %s\n", incident.Title))
	buf.WriteString(strings.Repeat("=", len(incident.Title)+19))
	buf.WriteString("\n\n")
	buf.WriteString(fmt.Sprintf("Incident ID: %s\n", incident.ID))
	buf.WriteString(fmt.Sprintf("Severity:    %s\n", incident.Severity))
	buf.WriteString(fmt.Sprintf("Detected:    %s\n", incident.DetectedAt.Format(time.RFC3339)))
	buf.WriteString(fmt.Sprintf("Source:      %s\n", incident.Source))

	if incident.Description != "" {
		buf.WriteString(fmt.Sprintf("\n%s\n", incident.Description))
	}

	if len(incident.Indicators) > 0 {
		buf.WriteString("\nIndicators:\n")
		for _, ind := range incident.Indicators {
			buf.WriteString(fmt.Sprintf("  - %s\n", ind))
		}
	}

	if len(incident.AffectedResources) > 0 {
		buf.WriteString("\nAffected resources:\n")
		for _, r := range incident.AffectedResources {
			buf.WriteString(fmt.Sprintf("  - %s\n", r))
		}
	}

	buf.WriteString("\n---\n")
	buf.WriteString("This alert was sent by vaultwatch incident response.\n")
	buf.WriteString(fmt.Sprintf("Run `vaultwatch incidents show %s` for details.\n", incident.ID))

	return buf.String()
}

// sanitizeHeader removes newlines and header-like patterns to prevent
// SMTP header injection through incident titles.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = headerPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
