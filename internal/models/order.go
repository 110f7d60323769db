package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus follows a fixed transition graph:
// PENDING -> CONFIRMED -> ACCEPTED -> DISPATCHED -> DELIVERED; any -> CANCELLED.
// FAILED is never a reachable status from an internal failure path.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusAccepted   OrderStatus = "ACCEPTED"
	OrderStatusDispatched OrderStatus = "DISPATCHED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// allowedTransitions encodes the status graph; illegal transitions are
// rejected with VALIDATION by (*Order).TransitionTo.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusAccepted, OrderStatusCancelled},
	OrderStatusAccepted:   {OrderStatusDispatched, OrderStatusCancelled},
	OrderStatusDispatched: {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
}

// CanTransition reports whether from -> to is a legal edge in the order
// status graph.
func CanTransition(from, to OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// PaymentStatus tracks the order's financial settlement state.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusOverdue  PaymentStatus = "OVERDUE"
	PaymentStatusReversed PaymentStatus = "REVERSED"
)

// LineItem is an immutable snapshot of a purchased product: name, SKU,
// unit price, and tax are captured at order time for historical
// integrity even if the Product or VendorProduct later changes.
type LineItem struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	OrderID         string          `gorm:"index;size:36" json:"order_id"`
	ProductID       string          `gorm:"size:36" json:"product_id"`
	ProductName     string          `gorm:"size:200" json:"product_name"`
	SKU             string          `gorm:"size:64" json:"sku"`
	Quantity        decimal.Decimal `gorm:"type:decimal(14,4)" json:"quantity"`
	Unit            string          `gorm:"size:20" json:"unit"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(14,4)" json:"unit_price"`
	TaxRate         decimal.Decimal `gorm:"type:decimal(6,4)" json:"tax_rate"`
	LineTotal       decimal.Decimal `gorm:"type:decimal(14,2)" json:"line_total"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (LineItem) TableName() string { return "line_items" }

// Recalculate derives LineTotal = quantity * unit_price * (1 + tax_rate).
func (li *LineItem) Recalculate() {
	subtotal := li.Quantity.Mul(li.UnitPrice)
	li.LineTotal = subtotal.Add(subtotal.Mul(li.TaxRate)).Round(2)
}

// OrderStatusLogEntry is the append-only transition history for an order.
type OrderStatusLogEntry struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	OrderID   string      `gorm:"index;size:36" json:"order_id"`
	Status    OrderStatus `gorm:"size:20" json:"status"`
	Reason    string      `gorm:"size:500" json:"reason,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

func (OrderStatusLogEntry) TableName() string { return "order_status_log" }

// Order is immutable after insert except for status/vendor transitions.
type Order struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	OrderID     string        `gorm:"uniqueIndex;size:36" json:"order_id"`
	OrderNumber string        `gorm:"uniqueIndex;size:20" json:"order_number"`
	RetailerID  string        `gorm:"index;size:36" json:"retailer_id"`
	VendorID    string        `gorm:"index;size:36" json:"vendor_id"`

	Status        OrderStatus   `gorm:"size:20" json:"status"`
	PaymentStatus PaymentStatus `gorm:"size:20" json:"payment_status"`

	Total      decimal.Decimal `gorm:"type:decimal(14,2)" json:"total"`
	CreditUsed decimal.Decimal `gorm:"type:decimal(14,2)" json:"credit_used"`

	Source string `gorm:"size:20" json:"source"` // text, whatsapp, ocr, voice

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`

	LineItems []LineItem            `gorm:"foreignKey:OrderID;references:OrderID" json:"line_items"`
	StatusLog []OrderStatusLogEntry `gorm:"foreignKey:OrderID;references:OrderID" json:"status_log,omitempty"`
}

func (Order) TableName() string { return "orders" }

// RecalculateTotal sums non-nil line items into Total.
func (o *Order) RecalculateTotal() {
	total := decimal.Zero
	for _, li := range o.LineItems {
		total = total.Add(li.LineTotal)
	}
	o.Total = total
}

// TransitionTo validates and applies a status transition, appending a log
// entry. It never allows a transition outside the graph.
func (o *Order) TransitionTo(next OrderStatus, reason string) error {
	if !CanTransition(o.Status, next) {
		return &transitionError{from: o.Status, to: next}
	}
	o.Status = next
	o.UpdatedAt = time.Now()
	if next == OrderStatusDelivered {
		now := time.Now()
		o.DeliveredAt = &now
	}
	if next == OrderStatusCancelled {
		now := time.Now()
		o.CancelledAt = &now
	}
	o.StatusLog = append(o.StatusLog, OrderStatusLogEntry{
		OrderID: o.OrderID, Status: next, Reason: reason, CreatedAt: o.UpdatedAt,
	})
	return nil
}

type transitionError struct {
	from, to OrderStatus
}

func (e *transitionError) Error() string {
	b, _ := json.Marshal(map[string]string{"from": string(e.from), "to": string(e.to)})
	return "illegal order status transition: " + string(b)
}
