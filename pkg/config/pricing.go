package config

// ModelPricing holds per-million-token rates for one model family.
type ModelPricing struct {
	InputPerMillion  float64 `json:"input_per_million" validate:"gte=0"`
	OutputPerMillion float64 `json:"output_per_million" validate:"gte=0"`
}

// PricingConfig is the immutable pricing table keyed by model family prefix.
// Lookup matches the longest prefix; unknown models fall back to the
// mid-tier default tariff. The rates are deployment configuration, not part
// of the tracker's contract.
type PricingConfig struct {
	Models map[string]ModelPricing `json:"models"`

	// Default is applied when no prefix matches.
	Default ModelPricing `json:"default"`

	// InputShare is the fraction of a task's tokens attributed to input
	// when the caller reports only a total. Output gets the remainder.
	InputShare float64 `json:"input_share" validate:"gte=0,lte=1"`

	// TargetReduction is the validated token-reduction target used by
	// the efficiency report's validation ratio.
	TargetReduction float64 `json:"target_reduction" validate:"gte=0,lte=1"`
}

// DefaultPricingConfig returns the built-in pricing table.
func DefaultPricingConfig() *PricingConfig {
	return &PricingConfig{
		Models: map[string]ModelPricing{
			"gpt-4o":       {InputPerMillion: 2.50, OutputPerMillion: 10.00},
			"gpt-4o-mini":  {InputPerMillion: 0.15, OutputPerMillion: 0.60},
			"gpt-4":        {InputPerMillion: 30.00, OutputPerMillion: 60.00},
			"gpt-3.5":      {InputPerMillion: 0.50, OutputPerMillion: 1.50},
			"claude-3-5":   {InputPerMillion: 3.00, OutputPerMillion: 15.00},
			"claude-3-haiku": {InputPerMillion: 0.25, OutputPerMillion: 1.25},
		},
		Default:         ModelPricing{InputPerMillion: 3.00, OutputPerMillion: 15.00},
		InputShare:      0.8,
		TargetReduction: 0.681,
	}
}
