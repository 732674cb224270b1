// Package testkit generates seeded synthetic customer frames for end-to-end
// training and scoring tests.
package testkit

import (
	"fmt"
	"math"
	"math/rand"

	"scorekit/domain/frame"
)

// Column names of the generated customer frame
const (
	ColTenure    = "tenure_days"
	ColOrders    = "orders"
	ColRisk      = "risk_score"
	ColCountry   = "country"
	ColLoyalty   = "loyalty_tier"
	ColSpend     = "spend"
	ColChurned   = "churned"
	unseenRegion = "atlantis"
)

var (
	countries = []string{"ca", "de", "fr", "uk", "us"}
	tiers     = []string{"bronze", "gold", "none", "silver"}
	churned   = frame.NewDomain("no", "yes")
)

// ShoppingConfig configures the customer generator
type ShoppingConfig struct {
	CustomerCount int
	// RiskMissingRate is the share of customers without a risk score.
	RiskMissingRate float64
	// LabelNoise is the share of churn labels flipped at random.
	LabelNoise float64
	Seed       int64
}

// DefaultShoppingConfig returns the defaults used by the end-to-end tests
func DefaultShoppingConfig() ShoppingConfig {
	return ShoppingConfig{
		CustomerCount:   1000,
		RiskMissingRate: 0.2,
		LabelNoise:      0.05,
		Seed:            42,
	}
}

// ShoppingGenerator produces customer frames. The same config always yields
// the same frame.
type ShoppingGenerator struct {
	config ShoppingConfig
	rng    *rand.Rand
}

// NewShoppingGenerator creates a generator
func NewShoppingGenerator(config ShoppingConfig) *ShoppingGenerator {
	return &ShoppingGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Customers generates one row per customer. Churn is driven by short tenure
// combined with few orders; loyalty tier follows tenure and so only
// correlates with churn. Spend is roughly linear in orders.
func (g *ShoppingGenerator) Customers(chunkRows int) (*frame.Frame, error) {
	n := g.config.CustomerCount
	if n <= 0 {
		return nil, fmt.Errorf("customer count must be positive, got %d", n)
	}
	tenure := make([]float64, n)
	orders := make([]float64, n)
	risk := make([]float64, n)
	spend := make([]float64, n)
	country := make([]string, n)
	loyalty := make([]string, n)
	label := make([]string, n)

	for i := 0; i < n; i++ {
		tenure[i] = float64(g.rng.Intn(365))
		o := math.Round(2.5 + g.rng.NormFloat64()*1.5)
		orders[i] = math.Max(0, math.Min(10, o))
		if g.rng.Float64() < g.config.RiskMissingRate {
			risk[i] = math.NaN()
		} else {
			risk[i] = g.rng.Float64()
		}
		spend[i] = 40*orders[i] + g.rng.NormFloat64()*5
		country[i] = countries[g.rng.Intn(len(countries))]
		loyalty[i] = tier(tenure[i])

		churn := tenure[i] < 120 && orders[i] <= 2
		if g.rng.Float64() < g.config.LabelNoise {
			churn = !churn
		}
		label[i] = "no"
		if churn {
			label[i] = "yes"
		}
	}

	return frame.FromColumns(chunkRows,
		frame.NumericColumn(ColTenure, tenure...),
		frame.NumericColumn(ColOrders, orders...),
		frame.NumericColumn(ColRisk, risk...),
		frame.CategoricalColumn(ColCountry, frame.NewDomain(countries...), country...),
		frame.CategoricalColumn(ColLoyalty, frame.NewDomain(tiers...), loyalty...),
		frame.NumericColumn(ColSpend, spend...),
		frame.CategoricalColumn(ColChurned, churned, label...),
	)
}

func tier(tenureDays float64) string {
	switch {
	case tenureDays > 180:
		return "gold"
	case tenureDays > 90:
		return "silver"
	case tenureDays > 30:
		return "bronze"
	default:
		return "none"
	}
}

// Drift derives a scoring frame the way production data tends to arrive:
// columns in reverse order, the drop columns removed, and the first row of
// the country column relabelled to a level no training frame contains.
// The country domain is rebuilt in sorted order, so its indices differ from
// the training encoding.
func Drift(fr *frame.Frame, chunkRows int, drop ...string) (*frame.Frame, error) {
	skip := make(map[string]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}

	names := fr.Names()
	var cols []frame.Column
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		if skip[name] {
			continue
		}
		vec := fr.VecAt(i)
		values := vec.Values()
		dom := vec.Domain()
		if dom == nil {
			cols = append(cols, frame.NumericColumn(name, values...))
			continue
		}
		labels := make([]string, len(values))
		for r, v := range values {
			if !math.IsNaN(v) {
				labels[r] = dom.Level(int(v))
			}
		}
		levels := dom.Levels()
		if name == ColCountry && len(labels) > 0 {
			labels[0] = unseenRegion
			levels = append([]string{unseenRegion}, levels...)
		}
		cols = append(cols, frame.CategoricalColumn(name, frame.NewDomain(levels...), labels...))
	}
	return frame.FromColumns(chunkRows, cols...)
}

// Split returns the first n rows and the rest as two frames.
func Split(fr *frame.Frame, n int, chunkRows int) (*frame.Frame, *frame.Frame, error) {
	total := int(fr.NumRows())
	if n <= 0 || n >= total {
		return nil, nil, fmt.Errorf("split point %d outside (0, %d)", n, total)
	}
	var head, tail []frame.Column
	for i, name := range fr.Names() {
		vec := fr.VecAt(i)
		values := vec.Values()
		head = append(head, frame.Column{Name: name, Values: values[:n], Domain: vec.Domain()})
		tail = append(tail, frame.Column{Name: name, Values: values[n:], Domain: vec.Domain()})
	}
	a, err := frame.FromColumns(chunkRows, head...)
	if err != nil {
		return nil, nil, err
	}
	b, err := frame.FromColumns(chunkRows, tail...)
	if err != nil {
		return nil, nil, err
	}
	return a, b, nil
}
