package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/dps-core/contract-engine/internal/apperrors"
	"github.com/dps-core/contract-engine/internal/models"
)

// querier is satisfied by both *sql.DB and *sql.Tx so repository methods work
// inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Postgres implements Store on top of database/sql with the lib/pq driver.
type Postgres struct {
	db *sql.DB
	q  querier
}

// NewPostgres initializes the repository and bootstraps the schema.
func NewPostgres(db *sql.DB) (*Postgres, error) {
	p := &Postgres{db: db, q: db}
	if err := p.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return p, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS numbering_schemes (
	id BIGSERIAL PRIMARY KEY,
	entity_type TEXT NOT NULL,
	pattern TEXT NOT NULL,
	gap_policy TEXT NOT NULL,
	period_key_strategy TEXT NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	current_value BIGINT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS numbering_sequences (
	scheme_id BIGINT NOT NULL REFERENCES numbering_schemes(id),
	period_key TEXT NOT NULL,
	last_value BIGINT NOT NULL DEFAULT 0,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (scheme_id, period_key)
);
CREATE TABLE IF NOT EXISTS contracts (
	id BIGSERIAL PRIMARY KEY,
	number TEXT NOT NULL UNIQUE,
	idempotency_key TEXT NOT NULL UNIQUE,
	customer_id TEXT NOT NULL,
	customer_email TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	principal NUMERIC(18,2) NOT NULL,
	annual_rate NUMERIC(12,8) NOT NULL,
	term_months INT NOT NULL,
	interest_type TEXT NOT NULL,
	day_count TEXT NOT NULL,
	currency TEXT NOT NULL,
	start_date DATE NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS installments (
	id BIGSERIAL PRIMARY KEY,
	contract_id BIGINT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
	seq_no INT NOT NULL,
	due_date DATE NOT NULL,
	principal_due NUMERIC(18,2) NOT NULL,
	interest_due NUMERIC(18,2) NOT NULL,
	fee_due NUMERIC(18,2) NOT NULL DEFAULT 0,
	principal_paid NUMERIC(18,2) NOT NULL DEFAULT 0,
	interest_paid NUMERIC(18,2) NOT NULL DEFAULT 0,
	fee_paid NUMERIC(18,2) NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	UNIQUE (contract_id, seq_no)
);
CREATE TABLE IF NOT EXISTS payment_events (
	id UUID PRIMARY KEY,
	contract_id BIGINT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
	installment_id BIGINT NOT NULL,
	amount NUMERIC(18,2) NOT NULL,
	idempotency_key TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL,
	result JSONB NOT NULL,
	UNIQUE (contract_id, idempotency_key)
);
CREATE TABLE IF NOT EXISTS penalty_events (
	id BIGSERIAL PRIMARY KEY,
	contract_id BIGINT NOT NULL,
	installment_id BIGINT NOT NULL,
	amount NUMERIC(18,2) NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS settlement_events (
	id BIGSERIAL PRIMARY KEY,
	contract_id BIGINT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
	idempotency_key TEXT NOT NULL,
	executed_at TIMESTAMPTZ NOT NULL,
	result JSONB NOT NULL,
	UNIQUE (contract_id, idempotency_key)
);
CREATE TABLE IF NOT EXISTS subledger_entries (
	id BIGSERIAL PRIMARY KEY,
	contract_id BIGINT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
	entry_type TEXT NOT NULL,
	debit NUMERIC(18,2) NOT NULL DEFAULT 0,
	credit NUMERIC(18,2) NOT NULL DEFAULT 0,
	balance_after NUMERIC(18,2) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

func (p *Postgres) initSchema() error {
	_, err := p.db.Exec(schema)
	return err
}

// Atomic runs fn in a serializable transaction. When already inside one, fn
// joins the open transaction instead of opening a second.
func (p *Postgres) Atomic(ctx context.Context, fn func(Store) error) error {
	if _, inTx := p.q.(*sql.Tx); inTx {
		return fn(p)
	}
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&Postgres{db: p.db, q: tx}); err != nil {
		return asConflict(err)
	}
	if err := tx.Commit(); err != nil {
		return asConflict(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// asConflict translates Postgres serialization aborts and deadlocks into the
// retryable ConcurrencyConflict code; everything else passes through.
func asConflict(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return apperrors.Conflict("ConcurrencyConflict", "the operation conflicted with a concurrent transaction, retry")
		}
	}
	return err
}

// CreateScheme creates a new numbering scheme
func (p *Postgres) CreateScheme(ctx context.Context, scheme *models.NumberingScheme) error {
	query := `
		INSERT INTO numbering_schemes (entity_type, pattern, gap_policy, period_key_strategy, active, current_value)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	err := p.q.QueryRowContext(ctx, query,
		scheme.EntityType, scheme.Pattern, scheme.GapPolicy, scheme.PeriodStrategy, scheme.Active, scheme.CurrentValue).
		Scan(&scheme.ID, &scheme.CreatedAt, &scheme.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create scheme: %w", err)
	}
	return nil
}

const schemeColumns = `id, entity_type, pattern, gap_policy, period_key_strategy, active, current_value, created_at, updated_at`

func (p *Postgres) scanScheme(row *sql.Row) (*models.NumberingScheme, error) {
	s := &models.NumberingScheme{}
	err := row.Scan(&s.ID, &s.EntityType, &s.Pattern, &s.GapPolicy, &s.PeriodStrategy, &s.Active, &s.CurrentValue, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSchemeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scheme: %w", err)
	}
	return s, nil
}

// GetScheme retrieves a numbering scheme by id
func (p *Postgres) GetScheme(ctx context.Context, id int64) (*models.NumberingScheme, error) {
	return p.scanScheme(p.q.QueryRowContext(ctx,
		`SELECT `+schemeColumns+` FROM numbering_schemes WHERE id = $1`, id))
}

// GetSchemeForUpdate locks the scheme row for the rest of the transaction
func (p *Postgres) GetSchemeForUpdate(ctx context.Context, id int64) (*models.NumberingScheme, error) {
	return p.scanScheme(p.q.QueryRowContext(ctx,
		`SELECT `+schemeColumns+` FROM numbering_schemes WHERE id = $1 FOR UPDATE`, id))
}

// UpdateSchemeCurrentValue persists the scheme's high-water mark
func (p *Postgres) UpdateSchemeCurrentValue(ctx context.Context, id, value int64) error {
	result, err := p.q.ExecContext(ctx,
		`UPDATE numbering_schemes SET current_value = $2, updated_at = now() WHERE id = $1`, id, value)
	if err != nil {
		return fmt.Errorf("failed to update scheme current value: %w", err)
	}
	return requireRow(result, ErrSchemeNotFound)
}

// NextSequenceValue increments and returns the per-period counter, creating
// the sequence row on first use. The upsert takes a row lock, so concurrent
// reservations for the same (scheme, period) serialize here.
func (p *Postgres) NextSequenceValue(ctx context.Context, schemeID int64, periodKey string) (int64, error) {
	var value int64
	query := `
		INSERT INTO numbering_sequences (scheme_id, period_key, last_value, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (scheme_id, period_key)
		DO UPDATE SET last_value = numbering_sequences.last_value + 1, updated_at = now()
		RETURNING last_value`
	if err := p.q.QueryRowContext(ctx, query, schemeID, periodKey).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to advance sequence: %w", err)
	}
	return value, nil
}

// CreateContract creates a new contract
func (p *Postgres) CreateContract(ctx context.Context, c *models.Contract) error {
	query := `
		INSERT INTO contracts (number, idempotency_key, customer_id, customer_email, status, principal, annual_rate, term_months, interest_type, day_count, currency, start_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`
	err := p.q.QueryRowContext(ctx, query,
		c.Number, c.IdempotencyKey, c.CustomerID, c.CustomerEmail, c.Status, c.Principal, c.AnnualRate,
		c.TermMonths, c.InterestType, c.DayCount, c.Currency, c.StartDate).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create contract: %w", err)
	}
	return nil
}

const contractColumns = `id, number, idempotency_key, customer_id, customer_email, status, principal, annual_rate, term_months, interest_type, day_count, currency, start_date, created_at, updated_at`

func scanContract(row interface{ Scan(...any) error }) (*models.Contract, error) {
	c := &models.Contract{}
	err := row.Scan(&c.ID, &c.Number, &c.IdempotencyKey, &c.CustomerID, &c.CustomerEmail, &c.Status, &c.Principal, &c.AnnualRate,
		&c.TermMonths, &c.InterestType, &c.DayCount, &c.Currency, &c.StartDate, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrContractNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan contract: %w", err)
	}
	return c, nil
}

// GetContract retrieves a contract by id
func (p *Postgres) GetContract(ctx context.Context, id int64) (*models.Contract, error) {
	return scanContract(p.q.QueryRowContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1`, id))
}

// GetContractByKey looks up a contract by its creation idempotency key
func (p *Postgres) GetContractByKey(ctx context.Context, idempotencyKey string) (*models.Contract, error) {
	return scanContract(p.q.QueryRowContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE idempotency_key = $1`, idempotencyKey))
}

// GetContractForUpdate locks the contract row for the rest of the transaction
func (p *Postgres) GetContractForUpdate(ctx context.Context, id int64) (*models.Contract, error) {
	return scanContract(p.q.QueryRowContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE id = $1 FOR UPDATE`, id))
}

// UpdateContract persists a contract's mutable fields
func (p *Postgres) UpdateContract(ctx context.Context, c *models.Contract) error {
	result, err := p.q.ExecContext(ctx, `
		UPDATE contracts
		SET customer_id = $2, customer_email = $3, status = $4, principal = $5, annual_rate = $6,
			term_months = $7, interest_type = $8, day_count = $9, currency = $10, start_date = $11, updated_at = now()
		WHERE id = $1`,
		c.ID, c.CustomerID, c.CustomerEmail, c.Status, c.Principal, c.AnnualRate,
		c.TermMonths, c.InterestType, c.DayCount, c.Currency, c.StartDate)
	if err != nil {
		return fmt.Errorf("failed to update contract: %w", err)
	}
	return requireRow(result, ErrContractNotFound)
}

// UpdateContractStatus transitions the contract's lifecycle state
func (p *Postgres) UpdateContractStatus(ctx context.Context, id int64, status models.ContractStatus) error {
	result, err := p.q.ExecContext(ctx,
		`UPDATE contracts SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update contract status: %w", err)
	}
	return requireRow(result, ErrContractNotFound)
}

// ListContractsByStatus retrieves contracts in any of the given states
func (p *Postgres) ListContractsByStatus(ctx context.Context, statuses ...models.ContractStatus) ([]*models.Contract, error) {
	args := make([]any, len(statuses))
	placeholders := ""
	for i, s := range statuses {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += fmt.Sprintf("$%d", i+1)
		args[i] = s
	}
	rows, err := p.q.QueryContext(ctx,
		`SELECT `+contractColumns+` FROM contracts WHERE status IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	defer rows.Close()

	var contracts []*models.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}

const installmentColumns = `id, contract_id, seq_no, due_date, principal_due, interest_due, fee_due, principal_paid, interest_paid, fee_paid, status`

func scanInstallment(row interface{ Scan(...any) error }) (*models.Installment, error) {
	inst := &models.Installment{}
	err := row.Scan(&inst.ID, &inst.ContractID, &inst.SeqNo, &inst.DueDate, &inst.PrincipalDue, &inst.InterestDue,
		&inst.FeeDue, &inst.PrincipalPaid, &inst.InterestPaid, &inst.FeePaid, &inst.Status)
	if err == sql.ErrNoRows {
		return nil, ErrInstallmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan installment: %w", err)
	}
	return inst, nil
}

// ReplaceInstallments swaps a contract's schedule wholesale
func (p *Postgres) ReplaceInstallments(ctx context.Context, contractID int64, items []models.Installment) ([]models.Installment, error) {
	if _, err := p.q.ExecContext(ctx, `DELETE FROM installments WHERE contract_id = $1`, contractID); err != nil {
		return nil, fmt.Errorf("failed to clear installments: %w", err)
	}
	stored := make([]models.Installment, 0, len(items))
	for _, item := range items {
		item.ContractID = contractID
		err := p.q.QueryRowContext(ctx, `
			INSERT INTO installments (contract_id, seq_no, due_date, principal_due, interest_due, fee_due, principal_paid, interest_paid, fee_paid, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			item.ContractID, item.SeqNo, item.DueDate, item.PrincipalDue, item.InterestDue,
			item.FeeDue, item.PrincipalPaid, item.InterestPaid, item.FeePaid, item.Status).
			Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert installment %d: %w", item.SeqNo, err)
		}
		stored = append(stored, item)
	}
	return stored, nil
}

// ListInstallments retrieves a contract's schedule in seq_no order
func (p *Postgres) ListInstallments(ctx context.Context, contractID int64) ([]*models.Installment, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE contract_id = $1 ORDER BY seq_no`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to list installments: %w", err)
	}
	defer rows.Close()

	var installments []*models.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

// GetInstallment retrieves one installment of a contract
func (p *Postgres) GetInstallment(ctx context.Context, contractID, installmentID int64) (*models.Installment, error) {
	return scanInstallment(p.q.QueryRowContext(ctx,
		`SELECT `+installmentColumns+` FROM installments WHERE contract_id = $1 AND id = $2`, contractID, installmentID))
}

// UpdateInstallment persists paid amounts, penalty fees and status
func (p *Postgres) UpdateInstallment(ctx context.Context, inst *models.Installment) error {
	result, err := p.q.ExecContext(ctx, `
		UPDATE installments
		SET principal_due = $2, interest_due = $3, fee_due = $4,
			principal_paid = $5, interest_paid = $6, fee_paid = $7, status = $8
		WHERE id = $1`,
		inst.ID, inst.PrincipalDue, inst.InterestDue, inst.FeeDue,
		inst.PrincipalPaid, inst.InterestPaid, inst.FeePaid, inst.Status)
	if err != nil {
		return fmt.Errorf("failed to update installment: %w", err)
	}
	return requireRow(result, ErrInstallmentNotFound)
}

// ListDueUnpaidInstallments retrieves unpaid installments due on or before
// asOf across all active contracts
func (p *Postgres) ListDueUnpaidInstallments(ctx context.Context, asOf time.Time) ([]*models.Installment, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT i.id, i.contract_id, i.seq_no, i.due_date, i.principal_due, i.interest_due, i.fee_due,
			i.principal_paid, i.interest_paid, i.fee_paid, i.status
		FROM installments i
		JOIN contracts c ON c.id = i.contract_id
		WHERE c.status = $1 AND i.due_date <= $2 AND i.status IN ($3, $4, $5)
		ORDER BY i.contract_id, i.seq_no`,
		models.ContractStatusActive, asOf,
		models.InstallmentStatusPending, models.InstallmentStatusPartial, models.InstallmentStatusOverdue)
	if err != nil {
		return nil, fmt.Errorf("failed to list due installments: %w", err)
	}
	defer rows.Close()

	var installments []*models.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, err
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

// CreatePayment stores a payment event with its canonical result
func (p *Postgres) CreatePayment(ctx context.Context, payment *models.PaymentEvent) error {
	_, err := p.q.ExecContext(ctx, `
		INSERT INTO payment_events (id, contract_id, installment_id, amount, idempotency_key, applied_at, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		payment.ID, payment.ContractID, payment.InstallmentID, payment.Amount,
		payment.IdempotencyKey, payment.AppliedAt, []byte(payment.Result))
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

const paymentColumns = `id, contract_id, installment_id, amount, idempotency_key, applied_at, result`

func scanPayment(row interface{ Scan(...any) error }) (*models.PaymentEvent, error) {
	pe := &models.PaymentEvent{}
	var id string
	var result []byte
	err := row.Scan(&id, &pe.ContractID, &pe.InstallmentID, &pe.Amount, &pe.IdempotencyKey, &pe.AppliedAt, &result)
	if err == sql.ErrNoRows {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan payment: %w", err)
	}
	if pe.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("failed to parse payment id %q: %w", id, err)
	}
	pe.Result = result
	return pe, nil
}

// GetPaymentByKey looks up a prior payment by its idempotency key
func (p *Postgres) GetPaymentByKey(ctx context.Context, contractID int64, idempotencyKey string) (*models.PaymentEvent, error) {
	return scanPayment(p.q.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_events WHERE contract_id = $1 AND idempotency_key = $2`,
		contractID, idempotencyKey))
}

// CountPayments counts payments recorded against a contract
func (p *Postgres) CountPayments(ctx context.Context, contractID int64) (int, error) {
	var count int
	err := p.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payment_events WHERE contract_id = $1`, contractID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}
	return count, nil
}

// ListPayments retrieves a contract's payments in applied order
func (p *Postgres) ListPayments(ctx context.Context, contractID int64) ([]*models.PaymentEvent, error) {
	rows, err := p.q.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payment_events WHERE contract_id = $1 ORDER BY applied_at`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.PaymentEvent
	for rows.Next() {
		pe, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, pe)
	}
	return payments, rows.Err()
}

// LastPaymentTime returns when the newest payment on the contract was applied,
// or nil when none exist
func (p *Postgres) LastPaymentTime(ctx context.Context, contractID int64) (*time.Time, error) {
	var at sql.NullTime
	err := p.q.QueryRowContext(ctx,
		`SELECT MAX(applied_at) FROM payment_events WHERE contract_id = $1`, contractID).Scan(&at)
	if err != nil {
		return nil, fmt.Errorf("failed to get last payment time: %w", err)
	}
	if !at.Valid {
		return nil, nil
	}
	return &at.Time, nil
}

// CreatePenalty stores a derived penalty event
func (p *Postgres) CreatePenalty(ctx context.Context, penalty *models.PenaltyEvent) error {
	err := p.q.QueryRowContext(ctx, `
		INSERT INTO penalty_events (contract_id, installment_id, amount, reason, applied_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		penalty.ContractID, penalty.InstallmentID, penalty.Amount, penalty.Reason, penalty.AppliedAt).
		Scan(&penalty.ID)
	if err != nil {
		return fmt.Errorf("failed to create penalty: %w", err)
	}
	return nil
}

// HasPenalty reports whether an installment was already penalized
func (p *Postgres) HasPenalty(ctx context.Context, installmentID int64) (bool, error) {
	var exists bool
	err := p.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM penalty_events WHERE installment_id = $1)`, installmentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check penalty: %w", err)
	}
	return exists, nil
}

// CreateSettlement stores an executed settlement with its canonical result
func (p *Postgres) CreateSettlement(ctx context.Context, settlement *models.SettlementEvent) error {
	err := p.q.QueryRowContext(ctx, `
		INSERT INTO settlement_events (contract_id, idempotency_key, executed_at, result)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		settlement.ContractID, settlement.IdempotencyKey, settlement.ExecutedAt, []byte(settlement.Result)).
		Scan(&settlement.ID)
	if err != nil {
		return fmt.Errorf("failed to create settlement: %w", err)
	}
	return nil
}

// GetSettlementByKey looks up a prior settlement by its idempotency key
func (p *Postgres) GetSettlementByKey(ctx context.Context, contractID int64, idempotencyKey string) (*models.SettlementEvent, error) {
	se := &models.SettlementEvent{}
	var result []byte
	err := p.q.QueryRowContext(ctx, `
		SELECT id, contract_id, idempotency_key, executed_at, result
		FROM settlement_events WHERE contract_id = $1 AND idempotency_key = $2`,
		contractID, idempotencyKey).
		Scan(&se.ID, &se.ContractID, &se.IdempotencyKey, &se.ExecutedAt, &result)
	if err == sql.ErrNoRows {
		return nil, ErrSettlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	se.Result = result
	return se, nil
}

// AppendLedgerEntry appends one subledger entry; entries are never updated
func (p *Postgres) AppendLedgerEntry(ctx context.Context, entry *models.SubledgerEntry) error {
	err := p.q.QueryRowContext(ctx, `
		INSERT INTO subledger_entries (contract_id, entry_type, debit, credit, balance_after)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		entry.ContractID, entry.EntryType, entry.Debit, entry.Credit, entry.BalanceAfter).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

// LastLedgerEntry returns the newest entry for the contract
func (p *Postgres) LastLedgerEntry(ctx context.Context, contractID int64) (*models.SubledgerEntry, error) {
	entry := &models.SubledgerEntry{}
	err := p.q.QueryRowContext(ctx, `
		SELECT id, contract_id, entry_type, debit, credit, balance_after, created_at
		FROM subledger_entries WHERE contract_id = $1 ORDER BY id DESC LIMIT 1`, contractID).
		Scan(&entry.ID, &entry.ContractID, &entry.EntryType, &entry.Debit, &entry.Credit, &entry.BalanceAfter, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNoLedgerEntries
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last ledger entry: %w", err)
	}
	return entry, nil
}

// ListLedgerEntries retrieves a contract's subledger in append order
func (p *Postgres) ListLedgerEntries(ctx context.Context, contractID int64) ([]*models.SubledgerEntry, error) {
	rows, err := p.q.QueryContext(ctx, `
		SELECT id, contract_id, entry_type, debit, credit, balance_after, created_at
		FROM subledger_entries WHERE contract_id = $1 ORDER BY id`, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.SubledgerEntry
	for rows.Next() {
		entry := &models.SubledgerEntry{}
		if err := rows.Scan(&entry.ID, &entry.ContractID, &entry.EntryType, &entry.Debit, &entry.Credit, &entry.BalanceAfter, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Close closes the database connection
func (p *Postgres) Close() error {
	return p.db.Close()
}

func requireRow(result sql.Result, notFound error) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
