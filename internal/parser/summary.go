package parser

import (
	"fmt"
	"strings"
)

// Summary renders a human-readable one-line-per-item recap of a parse
// result, used in WhatsApp confirmation replies and the recovery
// dashboard.
func Summary(r *Result) string {
	if len(r.Items) == 0 {
		return "No items recognized in this order."
	}

	var b strings.Builder
	for i, item := range r.Items {
		fmt.Fprintf(&b, "%d. %s %s %s (%.0f%% confidence)\n",
			i+1, item.Quantity.String(), item.NormalizedUnit, item.ProductText, item.Confidence)
	}
	fmt.Fprintf(&b, "Overall confidence: %.0f%%. ", r.OverallConfidence)

	switch r.Decision {
	case DecisionAutoAccept:
		b.WriteString("Proceeding automatically.")
	case DecisionNeedsReview:
		b.WriteString(fmt.Sprintf("%d item(s) need clarification.", len(r.Clarifications)))
	case DecisionReject:
		b.WriteString("Could not confidently parse this order, please resend with clearer quantities and product names.")
	}
	return b.String()
}
