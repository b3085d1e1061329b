package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dps-core/contract-engine/internal/apperrors"
	"github.com/dps-core/contract-engine/internal/config"
	"github.com/dps-core/contract-engine/internal/models"
)

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	log := logrus.New()
	log.SetOutput(io.Discard)
	cfg := &config.Config{
		RebateExprFlat:      "0",
		RebateExprDeclining: "unearned_interest",
		PenaltyRate:         0.15,
	}
	svc, err := NewService(store, log, cfg, nil, nil)
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	return svc, store
}

func createTestScheme(t *testing.T, svc *Service, policy models.GapPolicy) *models.NumberingScheme {
	t.Helper()
	scheme, err := svc.CreateScheme(context.Background(), &models.NumberingScheme{
		EntityType:     "CONTRACT",
		Pattern:        "CTR-{PERIOD}-{SEQ:6}",
		GapPolicy:      policy,
		PeriodStrategy: models.PeriodStrategyMonthly,
		Active:         true,
	})
	if err != nil {
		t.Fatalf("Failed to create scheme: %v", err)
	}
	return scheme
}

func TestReserveSequential(t *testing.T) {
	svc, _ := newTestService(t)
	scheme := createTestScheme(t, svc, models.GapPolicyNoGap)

	first, err := svc.Reserve(context.Background(), scheme.ID, "2025-01")
	if err != nil {
		t.Fatalf("Failed to reserve: %v", err)
	}
	if first.Value != 1 {
		t.Errorf("Expected value 1, got %d", first.Value)
	}
	if first.FormattedNumber != "CTR-2025-01-000001" {
		t.Errorf("Expected CTR-2025-01-000001, got %s", first.FormattedNumber)
	}

	second, err := svc.Reserve(context.Background(), scheme.ID, "2025-01")
	if err != nil {
		t.Fatalf("Failed to reserve: %v", err)
	}
	if second.Value != 2 {
		t.Errorf("Expected value 2, got %d", second.Value)
	}

	// A different period starts its own sequence.
	other, err := svc.Reserve(context.Background(), scheme.ID, "2025-02")
	if err != nil {
		t.Fatalf("Failed to reserve: %v", err)
	}
	if other.Value != 1 {
		t.Errorf("Expected value 1 for new period, got %d", other.Value)
	}
}

func TestReserveConcurrentNoGap(t *testing.T) {
	svc, store := newTestService(t)
	scheme := createTestScheme(t, svc, models.GapPolicyNoGap)

	const n = 50
	values := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reserved, err := svc.Reserve(context.Background(), scheme.ID, "2025-03")
			if err != nil {
				t.Errorf("Reserve failed: %v", err)
				return
			}
			values <- reserved.Value
		}()
	}
	wg.Wait()
	close(values)

	seen := make(map[int64]bool)
	for v := range values {
		if seen[v] {
			t.Errorf("Value %d issued twice", v)
		}
		seen[v] = true
	}
	// No duplicates and no gaps: exactly {1..n}.
	for v := int64(1); v <= n; v++ {
		if !seen[v] {
			t.Errorf("Value %d never issued", v)
		}
	}
	if got := store.schemes[scheme.ID].CurrentValue; got != n {
		t.Errorf("Expected current_value %d, got %d", n, got)
	}
}

func TestReserveInactiveScheme(t *testing.T) {
	svc, store := newTestService(t)
	scheme, err := svc.CreateScheme(context.Background(), &models.NumberingScheme{
		EntityType:     "CONTRACT",
		Pattern:        "CTR-{SEQ:4}",
		GapPolicy:      models.GapPolicyNoGap,
		PeriodStrategy: models.PeriodStrategyNone,
		Active:         false,
	})
	if err != nil {
		t.Fatalf("Failed to create scheme: %v", err)
	}

	_, err = svc.Reserve(context.Background(), scheme.ID, "")
	if !apperrors.HasCode(err, "SchemeInactive") {
		t.Fatalf("Expected SchemeInactive, got %v", err)
	}
	if got := store.schemes[scheme.ID].CurrentValue; got != 0 {
		t.Errorf("current_value must be untouched, got %d", got)
	}
}

func TestReserveSchemeNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Reserve(context.Background(), 404, "")
	if !apperrors.HasCode(err, "SchemeNotFound") {
		t.Fatalf("Expected SchemeNotFound, got %v", err)
	}
}

func TestReserveDerivesPeriodKey(t *testing.T) {
	svc, _ := newTestService(t)
	scheme := createTestScheme(t, svc, models.GapPolicyAllowGap)

	reserved, err := svc.Reserve(context.Background(), scheme.ID, "")
	if err != nil {
		t.Fatalf("Failed to reserve: %v", err)
	}
	want := "CTR-" + time.Now().Format("2006-01") + "-000001"
	if reserved.FormattedNumber != want {
		t.Errorf("Expected %s, got %s", want, reserved.FormattedNumber)
	}
}

func TestCreateSchemeValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateScheme(context.Background(), &models.NumberingScheme{
		EntityType:     "CONTRACT",
		Pattern:        "no-seq-token",
		GapPolicy:      models.GapPolicyNoGap,
		PeriodStrategy: models.PeriodStrategyNone,
	})
	if !apperrors.HasCode(err, "InvalidScheme") {
		t.Fatalf("Expected InvalidScheme for missing token, got %v", err)
	}

	_, err = svc.CreateScheme(context.Background(), &models.NumberingScheme{
		EntityType:     "CONTRACT",
		Pattern:        "CTR-{SEQ:4}",
		GapPolicy:      "SOMETIMES",
		PeriodStrategy: models.PeriodStrategyNone,
	})
	if !apperrors.HasCode(err, "InvalidScheme") {
		t.Fatalf("Expected InvalidScheme for bad gap policy, got %v", err)
	}
}
