// Package notify sends payment reminder emails over SMTP.
package notify

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/dps-core/contract-engine/internal/config"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// Enabled reports whether SMTP delivery is configured
func (s *Sender) Enabled() bool {
	return s.cfg.SMTPHost != ""
}

// SendPaymentReminder sends an overdue payment notification for one
// installment of a contract
func (s *Sender) SendPaymentReminder(to, contractNumber, dueDate string, amount, penalty decimal.Decimal, currency string) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = fmt.Sprintf("Overdue Payment Notification for Contract %s", contractNumber)

	body := fmt.Sprintf(
		"Dear customer,\n\n"+
			"Your payment of %s %s under contract %s was due on %s and is now overdue.\n",
		amount.StringFixed(2), currency, contractNumber, dueDate,
	)
	if penalty.IsPositive() {
		body += fmt.Sprintf("A penalty of %s %s has been applied.\n", penalty.StringFixed(2), currency)
	}
	body += "Please make the payment as soon as possible to avoid further penalties.\n" +
		"\nBest regards,\nContract Services"
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUser, s.cfg.SMTPPass, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("failed to send reminder to %s: %w", to, err)
	}

	s.logger.Infof("Payment reminder sent to %s for contract %s", to, contractNumber)
	return nil
}
