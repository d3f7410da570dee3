package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ChunkyTortoise/EnterpriseHub-sub048/pkg/config"
)

func TestCost(t *testing.T) {
	pricing := config.DefaultPricingConfig()

	tests := []struct {
		name   string
		model  string
		tokens int
		want   float64
	}{
		{
			name:   "known model splits input and output",
			model:  "gpt-4o-2024-08-06",
			tokens: 1_000_000,
			// 800k input at $2.50/M + 200k output at $10.00/M
			want: 0.8*2.50 + 0.2*10.00,
		},
		{
			name:   "longest prefix wins over shorter family",
			model:  "gpt-4o-mini-2024-07-18",
			tokens: 1_000_000,
			want:   0.8*0.15 + 0.2*0.60,
		},
		{
			name:   "unknown model uses default tariff",
			model:  "some-local-model",
			tokens: 1_000_000,
			want:   0.8*3.00 + 0.2*15.00,
		},
		{
			name:   "zero tokens cost nothing",
			model:  "gpt-4o",
			tokens: 0,
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cost(pricing, tt.model, tt.tokens), 1e-9)
		})
	}
}

func TestLookupRates_EmptyModel(t *testing.T) {
	pricing := config.DefaultPricingConfig()
	rates := lookupRates(pricing, "")
	assert.Equal(t, pricing.Default, rates)
}
