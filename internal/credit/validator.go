// Package credit implements the credit validator and the atomic
// order-write transaction that follows a successful validation.
package credit

import (
	"github.com/shopspring/decimal"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/models"
)

// ValidatorConfig carries the thresholds the ordered rule chain needs.
type ValidatorConfig struct {
	HighRiskThreshold   float64 // default 70
	OverdueBlockDays    int     // days past due before a block applies
}

func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{HighRiskThreshold: 70, OverdueBlockDays: 30}
}

// OverdueInfo is the minimal overdue-invoice signal the validator needs;
// callers compute it from the ledger (internal/ledger).
type OverdueInfo struct {
	HasOverdueBeyondThreshold bool
	OldestOverdueDays         int
}

// Validate runs the five ordered rules, first failure wins. A
// nil return means the order may proceed to the atomic write.
func Validate(retailer *models.Retailer, requestedAmount decimal.Decimal, overdue OverdueInfo, adminRiskOverride bool, cfg ValidatorConfig) error {
	if !retailer.IsActive {
		return apperrors.NewCreditRejected(apperrors.ReasonAccountInactive, nil)
	}
	if !retailer.IsApproved {
		return apperrors.NewCreditRejected(apperrors.ReasonAccountNotApproved, nil)
	}
	if retailer.RiskScore >= cfg.HighRiskThreshold && !adminRiskOverride {
		return apperrors.NewCreditRejected(apperrors.ReasonHighRiskAccount, nil)
	}

	available := retailer.AvailableCredit()
	if requestedAmount.GreaterThan(available) {
		shortfall := requestedAmount.Sub(available).StringFixed(2)
		return apperrors.NewCreditRejected(apperrors.ReasonCreditLimitExceeded, &shortfall)
	}

	if overdue.HasOverdueBeyondThreshold {
		return apperrors.NewCreditRejected(apperrors.ReasonOverdueBlock, nil)
	}

	return nil
}
