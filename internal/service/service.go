package service

import (
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/dps-core/contract-engine/internal/config"
	"github.com/dps-core/contract-engine/internal/repository"
)

// KeyRateSource provides the central-bank key rate in percent per annum.
type KeyRateSource interface {
	GetKeyRate() (float64, error)
}

// ReminderSender delivers overdue payment reminders.
type ReminderSender interface {
	Enabled() bool
	SendPaymentReminder(to, contractNumber string, dueDate string, amount, penalty decimal.Decimal, currency string) error
}

// Service handles business logic
type Service struct {
	store     repository.Store
	log       *logrus.Logger
	config    *config.Config
	rebates   *RebatePolicy
	rates     KeyRateSource
	reminders ReminderSender
}

// NewService initializes a new service. rates and reminders may be nil; the
// overdue sweep then falls back to the configured penalty rate and skips
// emails.
func NewService(store repository.Store, log *logrus.Logger, cfg *config.Config, rates KeyRateSource, reminders ReminderSender) (*Service, error) {
	rebates, err := NewRebatePolicy(cfg)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:     store,
		log:       log,
		config:    cfg,
		rebates:   rebates,
		rates:     rates,
		reminders: reminders,
	}, nil
}
