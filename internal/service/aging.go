package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dps-core/contract-engine/internal/models"
)

// Classify buckets open contracts by how long their earliest unpaid
// installment has been overdue as of the given date. Pure read-side
// projection; nothing is mutated.
func (s *Service) Classify(ctx context.Context, asOf time.Time) ([]models.AgingEntry, error) {
	contracts, err := s.store.ListContractsByStatus(ctx, models.ContractStatusActive, models.ContractStatusDefaulted)
	if err != nil {
		return nil, err
	}

	entries := make([]models.AgingEntry, 0, len(contracts))
	for _, contract := range contracts {
		installments, err := s.store.ListInstallments(ctx, contract.ID)
		if err != nil {
			return nil, err
		}

		var earliest *time.Time
		outstanding := decimal.Zero
		for _, inst := range installments {
			if inst.Settled() {
				continue
			}
			outstanding = outstanding.Add(inst.TotalRemaining())
			if earliest == nil || inst.DueDate.Before(*earliest) {
				due := inst.DueDate
				earliest = &due
			}
		}

		days := 0
		if earliest != nil && asOf.After(*earliest) {
			days = daysBetween(*earliest, asOf)
		}
		entries = append(entries, models.AgingEntry{
			ContractID:      contract.ID,
			ContractNumber:  contract.Number,
			CustomerID:      contract.CustomerID,
			Bucket:          models.BucketFor(days),
			DaysOverdue:     days,
			EarliestDueDate: earliest,
			Outstanding:     outstanding,
		})
	}
	return entries, nil
}

// daysBetween counts whole calendar days from a to b.
func daysBetween(a, b time.Time) int {
	a = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	b = time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
