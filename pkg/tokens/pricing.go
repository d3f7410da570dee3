// Package tokens records per-task token usage and aggregates daily rollups
// for efficiency reporting. All durable state lives in the KV port; the
// tracker itself is stateless and degrades gracefully when no KV is
// configured.
package tokens

import (
	"strings"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/config"
)

// Cost computes the dollar cost of a token count for a model, splitting
// tokens into input/output by the configured share (default 80/20) when the
// caller reports only a total.
func Cost(pricing *config.PricingConfig, model string, tokens int) float64 {
	rates := lookupRates(pricing, model)

	inputTokens := float64(tokens) * pricing.InputShare
	outputTokens := float64(tokens) - inputTokens

	return inputTokens/1e6*rates.InputPerMillion + outputTokens/1e6*rates.OutputPerMillion
}

// lookupRates matches the longest configured model-family prefix; unknown
// models get the mid-tier default tariff.
func lookupRates(pricing *config.PricingConfig, model string) config.ModelPricing {
	best := ""
	rates := pricing.Default
	for prefix, p := range pricing.Models {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
			rates = p
		}
	}
	return rates
}
