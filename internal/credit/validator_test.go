package credit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/models"
)

func baseRetailer() *models.Retailer {
	return &models.Retailer{
		RetailerID:      "r1",
		IsActive:        true,
		IsApproved:      true,
		RiskScore:       20,
		CreditLimit:     decimal.NewFromInt(1000),
		OutstandingDebt: decimal.NewFromInt(200),
	}
}

func asAppError(t *testing.T, err error) *apperrors.Error {
	t.Helper()
	ae, ok := err.(*apperrors.Error)
	assert.True(t, ok)
	return ae
}

func TestValidate_InactiveAccountRejected(t *testing.T) {
	r := baseRetailer()
	r.IsActive = false
	err := Validate(r, decimal.NewFromInt(100), OverdueInfo{}, false, DefaultValidatorConfig())
	ae := asAppError(t, err)
	assert.Equal(t, apperrors.ReasonAccountInactive, ae.CreditReason)
}

func TestValidate_UnapprovedAccountRejected(t *testing.T) {
	r := baseRetailer()
	r.IsApproved = false
	err := Validate(r, decimal.NewFromInt(100), OverdueInfo{}, false, DefaultValidatorConfig())
	ae := asAppError(t, err)
	assert.Equal(t, apperrors.ReasonAccountNotApproved, ae.CreditReason)
}

func TestValidate_HighRiskRejectedWithoutOverride(t *testing.T) {
	r := baseRetailer()
	r.RiskScore = 85
	err := Validate(r, decimal.NewFromInt(100), OverdueInfo{}, false, DefaultValidatorConfig())
	ae := asAppError(t, err)
	assert.Equal(t, apperrors.ReasonHighRiskAccount, ae.CreditReason)
}

func TestValidate_HighRiskPassesWithOverride(t *testing.T) {
	r := baseRetailer()
	r.RiskScore = 85
	err := Validate(r, decimal.NewFromInt(100), OverdueInfo{}, true, DefaultValidatorConfig())
	assert.NoError(t, err)
}

func TestValidate_CreditLimitExceededReportsShortfall(t *testing.T) {
	r := baseRetailer() // available = 800
	err := Validate(r, decimal.NewFromInt(900), OverdueInfo{}, false, DefaultValidatorConfig())
	ae := asAppError(t, err)
	assert.Equal(t, apperrors.ReasonCreditLimitExceeded, ae.CreditReason)
	assert.NotNil(t, ae.Shortfall)
	assert.Equal(t, "100.00", *ae.Shortfall)
}

func TestValidate_OverdueBlock(t *testing.T) {
	r := baseRetailer()
	err := Validate(r, decimal.NewFromInt(100), OverdueInfo{HasOverdueBeyondThreshold: true}, false, DefaultValidatorConfig())
	ae := asAppError(t, err)
	assert.Equal(t, apperrors.ReasonOverdueBlock, ae.CreditReason)
}

func TestValidate_PassesWithinLimits(t *testing.T) {
	r := baseRetailer()
	err := Validate(r, decimal.NewFromInt(100), OverdueInfo{}, false, DefaultValidatorConfig())
	assert.NoError(t, err)
}

func TestValidate_OrderOfRules_InactiveWinsOverCreditLimit(t *testing.T) {
	r := baseRetailer()
	r.IsActive = false
	err := Validate(r, decimal.NewFromInt(99999), OverdueInfo{}, false, DefaultValidatorConfig())
	ae := asAppError(t, err)
	assert.Equal(t, apperrors.ReasonAccountInactive, ae.CreditReason)
}
