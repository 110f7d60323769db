// Package intake wires the component packages, in dependency order, into the
// single pipeline a caller actually drives: parse -> one vendor-selection
// + atomic credit write per resolved item (items naming the same product
// are not merged) -> workflow checkpoint ->
// confirmation job enqueue. It exists because the component packages
// deliberately avoid importing each other (to dodge cycles) and someone
// has to compose them.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/apperrors"
	"github.com/mandiflow/core/internal/credit"
	"github.com/mandiflow/core/internal/jobs"
	"github.com/mandiflow/core/internal/ledger"
	"github.com/mandiflow/core/internal/logging"
	"github.com/mandiflow/core/internal/metrics"
	"github.com/mandiflow/core/internal/models"
	"github.com/mandiflow/core/internal/parser"
	"github.com/mandiflow/core/internal/vendorselect"
	"github.com/mandiflow/core/internal/workflow"
)

// Workflow type/step names for the order_creation workflow.
const (
	WorkflowTypeOrderCreation = "order_creation"
	StepSelectVendor          = "select_vendor"
	StepCreateOrder           = "create_order"
	StepSendConfirmation      = "send_confirmation"
)

// Pipeline is the single composition root for order intake. Every field
// is a concrete dependency constructed once at startup by cmd/marketplace.
type Pipeline struct {
	DB         *gorm.DB
	Parser     *parser.Parser
	Selector   *vendorselect.Selector
	Decisions  *vendorselect.DecisionLogStore
	Retries    *vendorselect.RetryStore
	Reassign   vendorselect.ReassignmentConfig
	Writer     *credit.AtomicWriter
	Idempotent *credit.IdempotencyGuard
	Rejections *credit.RejectionStore
	Workflows  *workflow.Manager
	Fabric     *jobs.Fabric
	Log        *logging.Logger

	AdminRiskOverride bool
}

// Outcome describes what happened to one product group from a parsed
// input: either an accepted order, or a credit rejection.
type Outcome struct {
	ProductID string
	Order     *models.Order
	Rejected  *models.RejectedOrder
}

// Result is the full outcome of one intake call: the parse result plus
// per-product order/rejection outcomes. When the parse needed
// clarification, Outcomes is empty and the caller must round-trip
// through Clarify before orders are created.
type Result struct {
	Parse    *parser.Result
	Outcomes []Outcome
}

// Handle runs the full intake pipeline for one raw input: parse,
// then for each parsed item resolved to a product (two items naming the
// same product are handled separately), select a vendor and attempt the
// atomic credit write, recording a
// RejectedOrder instead of failing the whole batch when one product's
// credit check fails. A multi-item order is multiple independent
// per-vendor orders, not one transaction.
func (p *Pipeline) Handle(ctx context.Context, source, rawInput, retailerID string, idempotencyKey string) (*Result, error) {
	if idempotencyKey != "" {
		outcome, replay, err := p.beginIdempotent(idempotencyKey, source, rawInput, retailerID)
		if err != nil {
			return nil, err
		}
		if replay != nil {
			return replay, nil
		}
		defer func() {
			if outcome != nil {
				_ = p.Idempotent.Complete(idempotencyKey, outcome.summary())
			}
		}()
	}

	parseResult, err := p.Parser.Parse(source, rawInput, retailerID)
	if err != nil {
		return nil, err
	}

	result := &Result{Parse: parseResult}
	if parseResult.NeedsClarification || parseResult.Decision == parser.DecisionReject {
		return result, nil
	}

	for _, item := range parseResult.Items {
		if item.ProductID == "" {
			continue
		}
		outcome, err := p.handleProduct(ctx, retailerID, source, item)
		if err != nil {
			return nil, err
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result, nil
}

func (p *Pipeline) handleProduct(ctx context.Context, retailerID, source string, item parser.Item) (Outcome, error) {
	wf, err := p.Workflows.Start(WorkflowTypeOrderCreation, retailerID, StepSelectVendor, map[string]interface{}{
		"product_id": item.ProductID, "quantity": item.Quantity.String(),
	})
	if err != nil {
		return Outcome{}, err
	}

	var decision vendorselect.Decision
	err = p.DB.Transaction(func(tx *gorm.DB) error {
		var txErr error
		decision, txErr = p.Selector.Select(tx, vendorselect.Request{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			RetailerID: retailerID,
		})
		return txErr
	})
	if err != nil {
		var ae *apperrors.Error
		if errors.As(err, &ae) && ae.Type == apperrors.VendorUnavailable {
			// Order stays PENDING via recovery, never a hard failure.
			p.Log.Warn("no eligible vendor at intake time, leaving for recovery",
				zap.String("product_id", item.ProductID), zap.Error(err))
			return Outcome{ProductID: item.ProductID}, nil
		}
		return Outcome{}, err
	}
	_ = p.Workflows.Advance(wf, StepCreateOrder, map[string]interface{}{"vendor_id": decision.ChosenVendorID})

	_, price, err := p.loadVendorProduct(decision.ChosenVendorID, item.ProductID)
	if err != nil {
		return Outcome{}, err
	}

	lineItem := models.LineItem{
		ProductID:    item.ProductID,
		ProductName:  item.ProductText,
		Quantity:     item.Quantity,
		Unit:         item.NormalizedUnit,
		UnitPrice:    price,
		TaxRate:      decimal.Zero,
	}

	order, err := p.Writer.Create(credit.NewOrderInput{
		RetailerID: retailerID,
		VendorID:   decision.ChosenVendorID,
		Source:     source,
		Items:      []models.LineItem{lineItem},
	}, p.AdminRiskOverride, ledger.OverdueLookup)

	if err != nil {
		var ae *apperrors.Error
		if errors.As(err, &ae) && ae.Type == apperrors.CreditRejected {
			available := decimal.Zero
			var retailer models.Retailer
			if lerr := p.DB.Where("retailer_id = ?", retailerID).First(&retailer).Error; lerr == nil {
				available = retailer.AvailableCredit()
			}
			rejected, rerr := p.Rejections.Log(retailerID, ae, lineItem.Quantity.Mul(price), available, item.ProductText)
			if rerr != nil {
				return Outcome{}, rerr
			}
			metrics.OrdersRejectedCredit.WithLabelValues(string(ae.CreditReason)).Inc()
			if p.Fabric != nil {
				if _, serr := p.Fabric.Submit(ctx, jobs.QueueWhatsAppMessages, map[string]interface{}{
					"rejected_order_id": rejected.RejectedOrderID, "retailer_id": retailerID,
				}); serr != nil {
					p.Log.Error("enqueue rejection notice failed", zap.Error(serr))
				}
			}
			// A credit rejection is a terminal outcome, not a failure to
			// recover from.
			_ = p.Workflows.Complete(wf)
			return Outcome{ProductID: item.ProductID, Rejected: rejected}, nil
		}
		return Outcome{}, err
	}

	metrics.OrdersCreated.WithLabelValues(source).Inc()
	if p.Decisions != nil {
		if err := p.Decisions.Append(nil, order.OrderID, decision); err != nil {
			p.Log.Error("append vendor decision log failed", zap.Error(err))
		}
	}
	if _, err := p.Retries.Schedule(order.OrderID, decision.ChosenVendorID, 1, p.Reassign); err != nil {
		p.Log.Error("schedule vendor assignment retry failed", zap.Error(err))
	}
	if err := p.Workflows.Advance(wf, StepSendConfirmation, map[string]interface{}{"order_id": order.OrderID}); err != nil {
		p.Log.Error("advance workflow to send_confirmation failed", zap.Error(err))
	}

	if p.Fabric != nil {
		if _, err := p.Fabric.SubmitIdempotent(ctx, jobs.QueueWhatsAppMessages, fmt.Sprintf("confirm:%s", order.OrderID),
			map[string]interface{}{"order_id": order.OrderID, "retailer_id": retailerID}); err != nil {
			p.Log.Error("enqueue order confirmation failed", zap.Error(err))
		}
	}
	if err := p.Workflows.Complete(wf); err != nil {
		p.Log.Error("complete workflow failed", zap.Error(err))
	}

	if err := p.DB.Model(&models.VendorProduct{}).
		Where("vendor_id = ? AND product_id = ?", decision.ChosenVendorID, item.ProductID).
		Update("stock", gorm.Expr("stock - ?", lineItem.Quantity.InexactFloat64())).Error; err != nil {
		p.Log.Error("decrement vendor stock failed", zap.Error(err))
	}
	return Outcome{ProductID: item.ProductID, Order: order}, nil
}

func (p *Pipeline) loadVendorProduct(vendorID, productID string) (*models.VendorProduct, decimal.Decimal, error) {
	var vp models.VendorProduct
	if err := p.DB.Where("vendor_id = ? AND product_id = ?", vendorID, productID).First(&vp).Error; err != nil {
		return nil, decimal.Zero, apperrors.NewTransient("VENDOR_PRODUCT_LOAD_FAILED", "failed to load vendor product", err)
	}
	return &vp, vp.Price, nil
}

type idempotentSummary struct{ ok bool }

func (idempotentSummary) summary() string { return "{}" }

func (p *Pipeline) beginIdempotent(key, source, rawInput, retailerID string) (*idempotentSummary, *Result, error) {
	hash, err := credit.HashRequest(map[string]string{"source": source, "raw_input": rawInput, "retailer_id": retailerID})
	if err != nil {
		return nil, nil, err
	}
	outcome, _, err := p.Idempotent.Begin(key, "order_intake", hash)
	if err != nil {
		return nil, nil, err
	}
	if outcome == credit.OutcomeReplay {
		// The stored payload is idempotentSummary's "{}", so a replay
		// returns an empty Result: the orders created by the first call
		// are not returned again.
		return nil, &Result{}, nil
	}
	if outcome == credit.OutcomeBlocked {
		return nil, nil, apperrors.NewConflict("IDEMPOTENCY_KEY_IN_PROGRESS", "a request with this idempotency key is still being processed")
	}
	return &idempotentSummary{ok: true}, nil, nil
}

// VendorAcceptDeadline is a two-hour response_deadline value. Nothing in
// this module references it: intake scheduling takes its deadline from
// Pipeline.Reassign.
const VendorAcceptDeadline = 2 * time.Hour
