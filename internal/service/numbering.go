package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dps-core/contract-engine/internal/apperrors"
	"github.com/dps-core/contract-engine/internal/models"
	"github.com/dps-core/contract-engine/internal/repository"
)

// CreateScheme registers a new numbering scheme
func (s *Service) CreateScheme(ctx context.Context, scheme *models.NumberingScheme) (*models.NumberingScheme, error) {
	switch scheme.GapPolicy {
	case models.GapPolicyNoGap, models.GapPolicyAllowGap:
	default:
		return nil, apperrors.Validation("InvalidScheme", fmt.Sprintf("unknown gap policy %q", scheme.GapPolicy))
	}
	switch scheme.PeriodStrategy {
	case models.PeriodStrategyNone, models.PeriodStrategyYearly, models.PeriodStrategyMonthly:
	default:
		return nil, apperrors.Validation("InvalidScheme", fmt.Sprintf("unknown period strategy %q", scheme.PeriodStrategy))
	}
	if strings.TrimSpace(scheme.Pattern) == "" || !strings.Contains(scheme.Pattern, "{SEQ") {
		return nil, apperrors.Validation("InvalidScheme", "pattern must contain a {SEQ:n} token")
	}
	if err := s.store.CreateScheme(ctx, scheme); err != nil {
		return nil, err
	}
	s.log.Infof("Numbering scheme created: %d (%s, %s)", scheme.ID, scheme.EntityType, scheme.GapPolicy)
	return scheme, nil
}

// GetScheme retrieves a numbering scheme
func (s *Service) GetScheme(ctx context.Context, id int64) (*models.NumberingScheme, error) {
	scheme, err := s.store.GetScheme(ctx, id)
	if err == repository.ErrSchemeNotFound {
		return nil, apperrors.NotFound("SchemeNotFound", fmt.Sprintf("numbering scheme %d does not exist", id))
	}
	return scheme, err
}

// Reserve allocates the next value of a scheme for the given period and
// returns it together with the formatted number. The whole read-modify-write
// runs in one transaction; callers that must bind the number to another
// mutation (NO_GAP contract creation) invoke it inside their own Atomic block
// so reservation and consumption commit together.
func (s *Service) Reserve(ctx context.Context, schemeID int64, periodKey string) (*models.ReservedNumber, error) {
	var reserved *models.ReservedNumber
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		var err error
		reserved, err = reserveIn(ctx, tx, schemeID, periodKey, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Infof("Reserved number %q (scheme %d)", reserved.FormattedNumber, schemeID)
	return reserved, nil
}

// reserveIn performs the reservation against an open transaction. The scheme
// row is locked first, so two concurrent reservations can never observe the
// same counter value.
func reserveIn(ctx context.Context, tx repository.Store, schemeID int64, periodKey string, now time.Time) (*models.ReservedNumber, error) {
	scheme, err := tx.GetSchemeForUpdate(ctx, schemeID)
	if err == repository.ErrSchemeNotFound {
		return nil, apperrors.NotFound("SchemeNotFound", fmt.Sprintf("numbering scheme %d does not exist", schemeID))
	}
	if err != nil {
		return nil, err
	}
	if !scheme.Active {
		return nil, apperrors.State("SchemeInactive", fmt.Sprintf("numbering scheme %d is disabled", schemeID))
	}
	if periodKey == "" {
		periodKey = scheme.PeriodKey(now)
	}

	value, err := tx.NextSequenceValue(ctx, schemeID, periodKey)
	if err != nil {
		return nil, err
	}
	if value > scheme.CurrentValue {
		if err := tx.UpdateSchemeCurrentValue(ctx, schemeID, value); err != nil {
			return nil, err
		}
	}
	return &models.ReservedNumber{
		Value:           value,
		FormattedNumber: scheme.Format(periodKey, value),
	}, nil
}
