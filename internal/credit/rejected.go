package credit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/models"
)

// RejectionStore logs failed credit checks for admin review without ever
// writing a failed Order row.
type RejectionStore struct {
	db *gorm.DB
}

func NewRejectionStore(db *gorm.DB) *RejectionStore {
	return &RejectionStore{db: db}
}

// reasonMap translates the apperrors credit-reason taxonomy into the
// persisted RejectedReason enum.
var reasonMap = map[apperrors.CreditReason]models.RejectedReason{
	apperrors.ReasonCreditLimitExceeded: models.RejectedCreditLimitExceeded,
	apperrors.ReasonOverdueBlock:        models.RejectedOverdueBlock,
	apperrors.ReasonAccountInactive:     models.RejectedAccountInactive,
	apperrors.ReasonAccountNotApproved:  models.RejectedAccountNotApproved,
	apperrors.ReasonHighRiskAccount:     models.RejectedHighRisk,
}

// Log records a rejected order attempt. requestedAmount/availableCredit
// are best-effort context for support follow-up, not required by every
// rejection reason.
func (s *RejectionStore) Log(retailerID string, ae *apperrors.Error, requestedAmount, availableCredit decimal.Decimal, rawInput string) (*models.RejectedOrder, error) {
	reason, ok := reasonMap[ae.CreditReason]
	if !ok {
		reason = models.RejectedCreditLimitExceeded
	}

	shortfall := requestedAmount.Sub(availableCredit)
	if shortfall.IsNegative() {
		shortfall = decimal.Zero
	}

	row := &models.RejectedOrder{
		RejectedOrderID: uuid.NewString(),
		RetailerID:      retailerID,
		Reason:          reason,
		RequestedAmount: requestedAmount,
		AvailableCredit: availableCredit,
		Shortfall:       shortfall,
		RawInput:        rawInput,
		CreatedAt:       time.Now(),
	}
	if err := s.db.Create(row).Error; err != nil {
		return nil, fmt.Errorf("log rejected order: %w", err)
	}
	return row, nil
}

// WhatsAppMessage renders the caller-safe explanation sent over the
// outbound queue, matching the wording surfaced in the HTTP error envelope
// so a retailer sees one consistent story across channels.
func WhatsAppMessage(row *models.RejectedOrder) string {
	switch row.Reason {
	case models.RejectedCreditLimitExceeded:
		return fmt.Sprintf("Sorry, this order exceeds your available credit by %s. Please reduce the order or clear outstanding dues.", row.Shortfall.StringFixed(2))
	case models.RejectedOverdueBlock:
		return "Sorry, your account has an overdue invoice that must be settled before placing new orders."
	case models.RejectedAccountInactive:
		return "Your account is currently inactive. Please contact support."
	case models.RejectedAccountNotApproved:
		return "Your account is pending approval. Please contact support."
	case models.RejectedHighRisk:
		return "Sorry, we're unable to process this order right now. Please contact support."
	default:
		return "Sorry, we could not process this order. Please contact support."
	}
}
