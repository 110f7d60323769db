package main

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mandiflow/core/internal/intake"
	"github.com/mandiflow/core/internal/jobs"
	"github.com/mandiflow/core/internal/logging"
	"github.com/mandiflow/core/internal/models"
	"github.com/mandiflow/core/internal/providers"
	"github.com/mandiflow/core/internal/workflow"
)

// waInboundMessage mirrors the handful of fields the unified parser cares
// about out of a WhatsApp Business Cloud API webhook payload — the rest of
// the envelope (metadata, contacts, statuses) is ignored here.
type waInboundMessage struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// newWhatsAppProcessor handles both directions on the whatsapp-messages
// queue: inbound webhook deliveries (payload carries webhook_event_id) run
// through the intake pipeline, and outbound jobs (payload carries order_id
// for an order confirmation, or rejected_order_id for a credit-rejection
// notice) are sent via the provider client. One queue, one processor, dispatched on payload shape —
// mirroring how the webhook and the order-confirmation enqueue both target
// jobs.QueueWhatsAppMessages.
func newWhatsAppProcessor(db *gorm.DB, webhooks *workflow.WebhookStore, pipeline *intake.Pipeline, sender *providers.WhatsAppSender, log *logging.Logger) jobs.ProcessorFunc {
	return func(ctx context.Context, job jobs.Job) error {
		if eventID, ok := job.Payload["webhook_event_id"].(string); ok && eventID != "" {
			return processInboundWebhook(ctx, db, webhooks, pipeline, eventID)
		}
		if orderID, ok := job.Payload["order_id"].(string); ok && orderID != "" {
			return sendOrderConfirmation(ctx, db, sender, orderID)
		}
		if rejectedID, ok := job.Payload["rejected_order_id"].(string); ok && rejectedID != "" {
			return sendRejectionNotice(ctx, db, sender, rejectedID)
		}
		log.Warn("whatsapp-messages job had no recognized payload key, dropping", zap.Any("payload", job.Payload))
		return nil
	}
}

func processInboundWebhook(ctx context.Context, db *gorm.DB, webhooks *workflow.WebhookStore, pipeline *intake.Pipeline, eventID string) error {
	var event models.WebhookEvent
	if err := db.Where("event_id = ?", eventID).First(&event).Error; err != nil {
		return fmt.Errorf("load webhook event %s: %w", eventID, err)
	}

	var payload waInboundMessage
	if err := json.Unmarshal([]byte(event.Payload), &payload); err != nil {
		_ = webhooks.MarkFailed(&event, err)
		return nil // malformed payload is not retryable
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				var retailer models.Retailer
				if err := db.Where("phone = ?", msg.From).First(&retailer).Error; err != nil {
					continue // unknown sender, nothing to route the order to
				}
				if _, err := pipeline.Handle(ctx, "whatsapp", msg.Text.Body, retailer.RetailerID, ""); err != nil {
					_ = webhooks.MarkFailed(&event, err)
					return nil
				}
			}
		}
	}
	return webhooks.MarkCompleted(&event)
}

func sendOrderConfirmation(ctx context.Context, db *gorm.DB, sender *providers.WhatsAppSender, orderID string) error {
	var order models.Order
	if err := db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		return fmt.Errorf("load order %s for confirmation: %w", orderID, err)
	}
	var retailer models.Retailer
	if err := db.Where("retailer_id = ?", order.RetailerID).First(&retailer).Error; err != nil {
		return fmt.Errorf("load retailer %s for confirmation: %w", order.RetailerID, err)
	}
	_, err := sender.Send(ctx, retailer.Phone, "order_confirmation", map[string]string{
		"order_number": order.OrderNumber,
		"total":        order.Total.String(),
	})
	return err
}

// sendRejectionNotice delivers the short, non-technical credit-rejection
// explanation.
func sendRejectionNotice(ctx context.Context, db *gorm.DB, sender *providers.WhatsAppSender, rejectedID string) error {
	var rejected models.RejectedOrder
	if err := db.Where("rejected_order_id = ?", rejectedID).First(&rejected).Error; err != nil {
		return fmt.Errorf("load rejected order %s for notice: %w", rejectedID, err)
	}
	var retailer models.Retailer
	if err := db.Where("retailer_id = ?", rejected.RetailerID).First(&retailer).Error; err != nil {
		return fmt.Errorf("load retailer %s for notice: %w", rejected.RetailerID, err)
	}
	_, err := sender.Send(ctx, retailer.Phone, "order_rejected", map[string]string{
		"reason":           string(rejected.Reason),
		"available_credit": rejected.AvailableCredit.StringFixed(2),
		"shortfall":        rejected.Shortfall.StringFixed(2),
	})
	return err
}

// newImageProcessor drives the tiered extraction pipeline for an
// uploaded order image: fetch a signed read URL, extract text through the
// LLM-vision/OCR/rule-based tiers, hand the transcript to the unified
// parser through the same intake pipeline text orders use, and record the
// outcome on the polling row.
func newImageProcessor(db *gorm.DB, store *providers.ObjectStore, extractor *providers.TieredExtractor, pipeline *intake.Pipeline, log *logging.Logger) jobs.ProcessorFunc {
	return func(ctx context.Context, job jobs.Job) error {
		uploadedOrderID, _ := job.Payload["uploaded_order_id"].(string)
		if uploadedOrderID == "" {
			return fmt.Errorf("image-processing job missing uploaded_order_id")
		}

		var row models.UploadedOrderImage
		if err := db.Where("uploaded_order_id = ?", uploadedOrderID).First(&row).Error; err != nil {
			return fmt.Errorf("load uploaded image row %s: %w", uploadedOrderID, err)
		}

		row.Status = models.UploadedImageStatusExtracting
		if err := db.Save(&row).Error; err != nil {
			return err
		}

		readURL, err := store.SignedReadURL(ctx, row.ObjectKey, providers.SignedURLTTL)
		if err != nil {
			row.Status = models.UploadedImageStatusFailed
			row.LastError = err.Error()
			_ = db.Save(&row).Error
			return err
		}

		result := extractor.Extract(ctx, readURL)
		row.ExtractionTier = string(result.Tier)

		parseResult, err := pipeline.Handle(ctx, "whatsapp-image", result.Text, row.RetailerID, "")
		if err != nil {
			row.Status = models.UploadedImageStatusFailed
			row.LastError = err.Error()
			_ = db.Save(&row).Error
			return err
		}

		row.Status = models.UploadedImageStatusParsed
		if parseResult.Parse != nil {
			row.ParseSessionID = parseResult.Parse.SessionID
		}
		if err := db.Save(&row).Error; err != nil {
			log.Error("failed to persist parsed upload row", zap.String("uploaded_order_id", uploadedOrderID), zap.Error(err))
		}
		return nil
	}
}
