package providers

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mandiflow/core/internal/logging"
)

// Tier names which extractor produced a TieredResult, so callers (the
// image-upload handler) can record which tier produced the result.
type Tier string

const (
	TierLLMVision Tier = "llm_vision"
	TierOCR       Tier = "ocr"
	TierRuleBased Tier = "rule_based"
)

// TieredResult is the text handed to the unified parser, plus which tier
// produced it.
type TieredResult struct {
	Text string
	Tier Tier
}

// TieredExtractor implements the tiered fallback for image-sourced
// orders: primary extractor (LLM vision over the image) → cheaper
// extractor (plain OCR) → rule-based regex parser (the unified parser's
// own normalizer, run against whatever raw text survived). It never
// returns an error — the lowest tier always produces *something* for the
// parser to attempt, even if that's an empty string that will fail
// confidence and prompt clarification.
type TieredExtractor struct {
	llm *LLMClient
	ocr *OCRClient
	log *logging.Logger
}

func NewTieredExtractor(llm *LLMClient, ocr *OCRClient, log *logging.Logger) *TieredExtractor {
	return &TieredExtractor{llm: llm, ocr: ocr, log: log}
}

// Extract runs the tiered strategy for an uploaded order image, given a
// signed read URL.
func (t *TieredExtractor) Extract(ctx context.Context, imageReadURL string) TieredResult {
	if text, ok := t.tryLLM(ctx, imageReadURL); ok {
		return TieredResult{Text: text, Tier: TierLLMVision}
	}
	if text, ok := t.tryOCR(ctx, imageReadURL); ok {
		return TieredResult{Text: text, Tier: TierOCR}
	}
	t.log.Warn("all image extraction tiers failed, falling back to rule-based parsing of an empty transcript")
	return TieredResult{Text: "", Tier: TierRuleBased}
}

func (t *TieredExtractor) tryLLM(ctx context.Context, imageReadURL string) (string, bool) {
	if t.llm == nil {
		return "", false
	}
	prompt := fmt.Sprintf("Extract the order line items from the image at %s.", imageReadURL)
	items, err := t.llm.ExtractItems(ctx, prompt, ItemSchema)
	if err != nil {
		t.log.Warn("llm vision extraction tier failed, falling through", zap.Error(err))
		return "", false
	}
	if len(items) == 0 {
		return "", false
	}
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("%g %s %s", it.Quantity, it.Unit, it.ProductText))
	}
	return strings.Join(lines, "\n"), true
}

func (t *TieredExtractor) tryOCR(ctx context.Context, imageReadURL string) (string, bool) {
	if t.ocr == nil {
		return "", false
	}
	text, err := t.ocr.ExtractText(ctx, imageReadURL)
	if err != nil || strings.TrimSpace(text) == "" {
		if err != nil {
			t.log.Warn("ocr extraction tier failed, falling through", zap.Error(err))
		}
		return "", false
	}
	return text, true
}
