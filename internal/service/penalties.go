package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dps-core/contract-engine/internal/models"
	"github.com/dps-core/contract-engine/internal/repository"
)

// Penalties are capped at this share of the installment's scheduled amount.
const penaltyCapRatio = 0.10

var daysInYear = decimal.NewFromInt(365)

// SweepResult summarizes one overdue sweep run
type SweepResult struct {
	Flagged   int `json:"flagged"`
	Penalized int `json:"penalized"`
	Reminded  int `json:"reminded"`
}

// reminder is one queued overdue notification, captured in-transaction and
// delivered only after the sweep commits.
type reminder struct {
	email    string
	number   string
	dueDate  string
	amount   decimal.Decimal
	penalty  decimal.Decimal
	currency string
}

// SweepOverdue flags due unpaid installments OVERDUE, assesses a one-time
// derived penalty per installment and sends reminder emails where a customer
// email is on file. Aging classification itself stays on-demand; the sweep
// only maintains statuses and penalties. Emails go out after the transaction
// commits, so no row lock is held across SMTP and no customer hears about a
// penalty that rolled back.
func (s *Service) SweepOverdue(ctx context.Context, asOf time.Time) (*SweepResult, error) {
	penaltyRate := s.annualPenaltyRate()
	cutoff := asOf.AddDate(0, 0, -s.config.PenaltyGraceDays)

	result := &SweepResult{}
	contracts := map[int64]*models.Contract{}
	var reminders []reminder
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		due, err := tx.ListDueUnpaidInstallments(ctx, cutoff)
		if err != nil {
			return err
		}
		for _, inst := range due {
			if inst.Status != models.InstallmentStatusOverdue {
				inst.Status = models.InstallmentStatusOverdue
				result.Flagged++
			}

			penalized, err := tx.HasPenalty(ctx, inst.ID)
			if err != nil {
				return err
			}
			var penalty decimal.Decimal
			if !penalized {
				days := daysBetween(inst.DueDate, asOf)
				penalty = penaltyAmount(inst, penaltyRate, days)
				if penalty.IsPositive() {
					if err := tx.CreatePenalty(ctx, &models.PenaltyEvent{
						ContractID:    inst.ContractID,
						InstallmentID: inst.ID,
						Amount:        penalty,
						Reason:        "late payment",
						AppliedAt:     asOf,
					}); err != nil {
						return err
					}
					inst.FeeDue = inst.FeeDue.Add(penalty)
					result.Penalized++
				}
			}
			if err := tx.UpdateInstallment(ctx, inst); err != nil {
				return err
			}

			contract, ok := contracts[inst.ContractID]
			if !ok {
				if contract, err = tx.GetContract(ctx, inst.ContractID); err != nil {
					return err
				}
				contracts[inst.ContractID] = contract
			}
			if s.reminders != nil && s.reminders.Enabled() && contract.CustomerEmail != "" {
				reminders = append(reminders, reminder{
					email:    contract.CustomerEmail,
					number:   contract.Number,
					dueDate:  inst.DueDate.Format("2006-01-02"),
					amount:   inst.TotalRemaining(),
					penalty:  penalty,
					currency: contract.Currency,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, r := range reminders {
		if err := s.reminders.SendPaymentReminder(r.email, r.number, r.dueDate, r.amount, r.penalty, r.currency); err != nil {
			s.log.Warnf("Failed to send reminder for contract %s: %v", r.number, err)
			continue
		}
		result.Reminded++
	}
	s.log.Infof("Overdue sweep: %d flagged, %d penalized, %d reminded", result.Flagged, result.Penalized, result.Reminded)
	return result, nil
}

// annualPenaltyRate derives the penalty rate from the central-bank key rate
// plus the configured margin, falling back to the static configured rate when
// the feed is unavailable.
func (s *Service) annualPenaltyRate() decimal.Decimal {
	fallback := decimal.NewFromFloat(s.config.PenaltyRate)
	if s.rates == nil {
		return fallback
	}
	keyRate, err := s.rates.GetKeyRate()
	if err != nil {
		s.log.Warnf("Key rate feed unavailable, using configured penalty rate: %v", err)
		return fallback
	}
	return decimal.NewFromFloat(keyRate + s.config.PenaltyMargin).Div(decimal.NewFromInt(100))
}

// penaltyAmount computes simple interest on the overdue amount for the days
// late, capped at a share of the installment's scheduled total.
func penaltyAmount(inst *models.Installment, annualRate decimal.Decimal, daysLate int) decimal.Decimal {
	if daysLate <= 0 {
		return decimal.Zero
	}
	raw := inst.TotalRemaining().
		Mul(annualRate).
		Mul(decimal.NewFromInt(int64(daysLate))).
		Div(daysInYear).
		Round(2)
	limit := inst.TotalDue().Mul(decimal.NewFromFloat(penaltyCapRatio)).Round(2)
	return decimal.Min(raw, limit)
}
