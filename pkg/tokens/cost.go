package tokens

import "strings"

// Pricing is USD per 1,000,000 tokens.
type Pricing struct {
	Input  float64
	Output float64
}

// DefaultPricing is the published per-provider pricing table.
var DefaultPricing = map[string]Pricing{
	"claude":     {Input: 3.00, Output: 15.00},
	"chatgpt":    {Input: 10.00, Output: 30.00},
	"gemini":     {Input: 1.25, Output: 5.00},
	"perplexity": {Input: 1.00, Output: 1.00},
}

// CostCalculator applies a pricing table to token counts, with optional
// per-provider overrides.
type CostCalculator struct {
	overrides map[string]Pricing
}

// NewCostCalculator returns a calculator using DefaultPricing, optionally
// overridden per provider.
func NewCostCalculator(overrides map[string]Pricing) *CostCalculator {
	return &CostCalculator{overrides: overrides}
}

func (c *CostCalculator) pricingFor(provider string) Pricing {
	key := strings.ToLower(provider)
	if c.overrides != nil {
		if p, ok := c.overrides[key]; ok {
			return p
		}
	}
	return DefaultPricing[key]
}

// Calculate returns the USD cost of in input tokens and out output tokens
// for provider.
func (c *CostCalculator) Calculate(in, out int, provider string) float64 {
	p := c.pricingFor(provider)
	return (float64(in)/1_000_000)*p.Input + (float64(out)/1_000_000)*p.Output
}
