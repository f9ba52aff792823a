package usage

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed pricing.yaml
var defaultPricing []byte

// CostPrecision is the number of fractional digits kept on every cost
const CostPrecision = 6

var perMillion = decimal.NewFromInt(1_000_000)

// Price is a per-model rate in USD per 1M tokens
type Price struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

// PriceTable maps provider to model to price
type PriceTable map[string]map[string]Price

// PriceEntry is a flattened price table row
type PriceEntry struct {
	Provider string
	Model    string
	Price
}

// Cost is the valued result of one call
type Cost struct {
	InputCost  decimal.Decimal
	OutputCost decimal.Decimal
	TotalCost  decimal.Decimal
}

type rawPrice struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// ParsePriceTable decodes a provider -> model -> {input, output} YAML document
func ParsePriceTable(data []byte) (PriceTable, error) {
	var raw map[string]map[string]rawPrice
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse price table: %w", err)
	}
	table := PriceTable{}
	for provider, modelPrices := range raw {
		for model, p := range modelPrices {
			if p.Input < 0 || p.Output < 0 {
				return nil, fmt.Errorf("negative price for %s/%s", provider, model)
			}
			table.Set(provider, model, Price{
				Input:  decimal.NewFromFloat(p.Input),
				Output: decimal.NewFromFloat(p.Output),
			})
		}
	}
	return table, nil
}

// LoadPriceTable returns the built-in prices overlaid with the optional file at path
func LoadPriceTable(path string) (PriceTable, error) {
	table, err := ParsePriceTable(defaultPricing)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read price file: %w", err)
	}
	overrides, err := ParsePriceTable(data)
	if err != nil {
		return nil, err
	}
	for provider, modelPrices := range overrides {
		for model, price := range modelPrices {
			table.Set(provider, model, price)
		}
	}
	return table, nil
}

// Set stores a price, normalising the keys
func (t PriceTable) Set(provider, model string, price Price) {
	provider, model = normalizeKey(provider), normalizeKey(model)
	if t[provider] == nil {
		t[provider] = map[string]Price{}
	}
	t[provider][model] = price
}

// Lookup returns the price for provider and model
func (t PriceTable) Lookup(provider, model string) (Price, bool) {
	p, ok := t[normalizeKey(provider)][normalizeKey(model)]
	return p, ok
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CostModel values token counts against a static price table
type CostModel struct {
	prices PriceTable
	logger *zap.Logger
}

// NewCostModel creates a cost model. A nil logger is replaced with a no-op logger.
func NewCostModel(prices PriceTable, logger *zap.Logger) *CostModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if prices == nil {
		prices = PriceTable{}
	}
	return &CostModel{prices: prices, logger: logger}
}

// Cost values a call. Unknown models cost zero and log a warning; negative counts are treated as zero.
func (m *CostModel) Cost(provider, model string, inputTokens, outputTokens int) Cost {
	price, ok := m.prices.Lookup(provider, model)
	if !ok {
		m.logger.Warn("model_price_not_found",
			zap.String("provider", provider),
			zap.String("model", model),
		)
		return Cost{InputCost: decimal.Zero, OutputCost: decimal.Zero, TotalCost: decimal.Zero}
	}

	in := tokenCost(inputTokens, price.Input)
	out := tokenCost(outputTokens, price.Output)
	return Cost{InputCost: in, OutputCost: out, TotalCost: in.Add(out)}
}

// Prices lists the table sorted by provider then model
func (m *CostModel) Prices() []PriceEntry {
	var entries []PriceEntry
	for provider, modelPrices := range m.prices {
		for model, price := range modelPrices {
			entries = append(entries, PriceEntry{Provider: provider, Model: model, Price: price})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Provider != entries[j].Provider {
			return entries[i].Provider < entries[j].Provider
		}
		return entries[i].Model < entries[j].Model
	})
	return entries
}

func tokenCost(tokens int, pricePerMillion decimal.Decimal) decimal.Decimal {
	if tokens <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(tokens)).Mul(pricePerMillion).Div(perMillion).Round(CostPrecision)
}
