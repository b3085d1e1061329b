package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dps-core/contract-engine/internal/models"
	"github.com/dps-core/contract-engine/internal/repository"
)

// memStore is an in-memory implementation of repository.Store for testing.
// Atomic serializes on a mutex, mirroring the row-level serialization the
// Postgres implementation gets from locks.
type memStore struct {
	mu           sync.Mutex
	schemes      map[int64]*models.NumberingScheme
	sequences    map[string]int64
	contracts    map[int64]*models.Contract
	installments map[int64][]*models.Installment
	payments     []*models.PaymentEvent
	penalties    []*models.PenaltyEvent
	settlements  []*models.SettlementEvent
	ledger       map[int64][]*models.SubledgerEntry
	nextID       int64
}

func newMemStore() *memStore {
	return &memStore{
		schemes:      make(map[int64]*models.NumberingScheme),
		sequences:    make(map[string]int64),
		contracts:    make(map[int64]*models.Contract),
		installments: make(map[int64][]*models.Installment),
		ledger:       make(map[int64][]*models.SubledgerEntry),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) Atomic(ctx context.Context, fn func(repository.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&txStore{m})
}

// txStore joins an already-held lock; nested Atomic calls run directly.
type txStore struct{ *memStore }

func (t *txStore) Atomic(ctx context.Context, fn func(repository.Store) error) error {
	return fn(t)
}

func (m *memStore) CreateScheme(ctx context.Context, scheme *models.NumberingScheme) error {
	scheme.ID = m.id()
	scheme.CreatedAt = time.Now()
	scheme.UpdatedAt = scheme.CreatedAt
	copied := *scheme
	m.schemes[scheme.ID] = &copied
	return nil
}

func (m *memStore) GetScheme(ctx context.Context, id int64) (*models.NumberingScheme, error) {
	scheme, ok := m.schemes[id]
	if !ok {
		return nil, repository.ErrSchemeNotFound
	}
	copied := *scheme
	return &copied, nil
}

func (m *memStore) GetSchemeForUpdate(ctx context.Context, id int64) (*models.NumberingScheme, error) {
	return m.GetScheme(ctx, id)
}

func (m *memStore) UpdateSchemeCurrentValue(ctx context.Context, id, value int64) error {
	scheme, ok := m.schemes[id]
	if !ok {
		return repository.ErrSchemeNotFound
	}
	scheme.CurrentValue = value
	return nil
}

func (m *memStore) NextSequenceValue(ctx context.Context, schemeID int64, periodKey string) (int64, error) {
	key := fmt.Sprintf("%d|%s", schemeID, periodKey)
	m.sequences[key]++
	return m.sequences[key], nil
}

func (m *memStore) CreateContract(ctx context.Context, c *models.Contract) error {
	c.ID = m.id()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	copied := *c
	m.contracts[c.ID] = &copied
	return nil
}

func (m *memStore) GetContract(ctx context.Context, id int64) (*models.Contract, error) {
	c, ok := m.contracts[id]
	if !ok {
		return nil, repository.ErrContractNotFound
	}
	copied := *c
	return &copied, nil
}

func (m *memStore) GetContractByKey(ctx context.Context, idempotencyKey string) (*models.Contract, error) {
	for _, c := range m.contracts {
		if c.IdempotencyKey == idempotencyKey {
			copied := *c
			return &copied, nil
		}
	}
	return nil, repository.ErrContractNotFound
}

func (m *memStore) GetContractForUpdate(ctx context.Context, id int64) (*models.Contract, error) {
	return m.GetContract(ctx, id)
}

func (m *memStore) UpdateContract(ctx context.Context, c *models.Contract) error {
	if _, ok := m.contracts[c.ID]; !ok {
		return repository.ErrContractNotFound
	}
	copied := *c
	m.contracts[c.ID] = &copied
	return nil
}

func (m *memStore) UpdateContractStatus(ctx context.Context, id int64, status models.ContractStatus) error {
	c, ok := m.contracts[id]
	if !ok {
		return repository.ErrContractNotFound
	}
	c.Status = status
	return nil
}

func (m *memStore) ListContractsByStatus(ctx context.Context, statuses ...models.ContractStatus) ([]*models.Contract, error) {
	var out []*models.Contract
	for _, c := range m.contracts {
		for _, s := range statuses {
			if c.Status == s {
				copied := *c
				out = append(out, &copied)
				break
			}
		}
	}
	return out, nil
}

func (m *memStore) ReplaceInstallments(ctx context.Context, contractID int64, items []models.Installment) ([]models.Installment, error) {
	stored := make([]*models.Installment, 0, len(items))
	out := make([]models.Installment, 0, len(items))
	for _, item := range items {
		item.ID = m.id()
		item.ContractID = contractID
		copied := item
		stored = append(stored, &copied)
		out = append(out, item)
	}
	m.installments[contractID] = stored
	return out, nil
}

func (m *memStore) ListInstallments(ctx context.Context, contractID int64) ([]*models.Installment, error) {
	var out []*models.Installment
	for _, inst := range m.installments[contractID] {
		copied := *inst
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memStore) GetInstallment(ctx context.Context, contractID, installmentID int64) (*models.Installment, error) {
	for _, inst := range m.installments[contractID] {
		if inst.ID == installmentID {
			copied := *inst
			return &copied, nil
		}
	}
	return nil, repository.ErrInstallmentNotFound
}

func (m *memStore) UpdateInstallment(ctx context.Context, updated *models.Installment) error {
	for i, inst := range m.installments[updated.ContractID] {
		if inst.ID == updated.ID {
			copied := *updated
			m.installments[updated.ContractID][i] = &copied
			return nil
		}
	}
	return repository.ErrInstallmentNotFound
}

func (m *memStore) ListDueUnpaidInstallments(ctx context.Context, asOf time.Time) ([]*models.Installment, error) {
	var out []*models.Installment
	for contractID, installments := range m.installments {
		if m.contracts[contractID].Status != models.ContractStatusActive {
			continue
		}
		for _, inst := range installments {
			if inst.Settled() || inst.DueDate.After(asOf) {
				continue
			}
			copied := *inst
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memStore) CreatePayment(ctx context.Context, payment *models.PaymentEvent) error {
	copied := *payment
	m.payments = append(m.payments, &copied)
	return nil
}

func (m *memStore) GetPaymentByKey(ctx context.Context, contractID int64, key string) (*models.PaymentEvent, error) {
	for _, p := range m.payments {
		if p.ContractID == contractID && p.IdempotencyKey == key {
			copied := *p
			return &copied, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (m *memStore) CountPayments(ctx context.Context, contractID int64) (int, error) {
	count := 0
	for _, p := range m.payments {
		if p.ContractID == contractID {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ListPayments(ctx context.Context, contractID int64) ([]*models.PaymentEvent, error) {
	var out []*models.PaymentEvent
	for _, p := range m.payments {
		if p.ContractID == contractID {
			copied := *p
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (m *memStore) LastPaymentTime(ctx context.Context, contractID int64) (*time.Time, error) {
	var last *time.Time
	for _, p := range m.payments {
		if p.ContractID == contractID && (last == nil || p.AppliedAt.After(*last)) {
			at := p.AppliedAt
			last = &at
		}
	}
	return last, nil
}

func (m *memStore) CreatePenalty(ctx context.Context, penalty *models.PenaltyEvent) error {
	penalty.ID = m.id()
	copied := *penalty
	m.penalties = append(m.penalties, &copied)
	return nil
}

func (m *memStore) HasPenalty(ctx context.Context, installmentID int64) (bool, error) {
	for _, p := range m.penalties {
		if p.InstallmentID == installmentID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateSettlement(ctx context.Context, settlement *models.SettlementEvent) error {
	settlement.ID = m.id()
	copied := *settlement
	m.settlements = append(m.settlements, &copied)
	return nil
}

func (m *memStore) GetSettlementByKey(ctx context.Context, contractID int64, key string) (*models.SettlementEvent, error) {
	for _, se := range m.settlements {
		if se.ContractID == contractID && se.IdempotencyKey == key {
			copied := *se
			return &copied, nil
		}
	}
	return nil, repository.ErrSettlementNotFound
}

func (m *memStore) AppendLedgerEntry(ctx context.Context, entry *models.SubledgerEntry) error {
	entry.ID = m.id()
	entry.CreatedAt = time.Now()
	copied := *entry
	m.ledger[entry.ContractID] = append(m.ledger[entry.ContractID], &copied)
	return nil
}

func (m *memStore) LastLedgerEntry(ctx context.Context, contractID int64) (*models.SubledgerEntry, error) {
	entries := m.ledger[contractID]
	if len(entries) == 0 {
		return nil, repository.ErrNoLedgerEntries
	}
	copied := *entries[len(entries)-1]
	return &copied, nil
}

func (m *memStore) ListLedgerEntries(ctx context.Context, contractID int64) ([]*models.SubledgerEntry, error) {
	var out []*models.SubledgerEntry
	for _, entry := range m.ledger[contractID] {
		copied := *entry
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }
