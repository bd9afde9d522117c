// Package category assigns a spending category to a receipt from vendor
// and line-item keywords.
package category

import (
	"strings"

	"receipts/internal/core"
)

// Rule maps a category to the keywords that select it. Rules are checked
// in order; the first keyword hit wins.
type Rule struct {
	Category string
	Keywords []string
}

// Classifier is an immutable keyword matcher. Construct it with the rule
// set you want; tests substitute their own rules.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier over the given rules.
func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// DefaultRules is the built-in vendor keyword table.
func DefaultRules() []Rule {
	return []Rule{
		{Category: core.CategoryGrocery, Keywords: []string{
			"supermarket", "grocery", "freshco", "whole foods", "costco",
			"market", "mart", "trader joe", "save on",
		}},
		{Category: core.CategoryDining, Keywords: []string{
			"restaurant", "cafe", "coffee", "tea", "diner", "pizza",
			"burger", "sushi", "bbq", "kitchen",
		}},
		{Category: core.CategoryTransport, Keywords: []string{
			"uber", "lyft", "taxi", "gas", "fuel", "petro", "shell",
			"chevron", "parking", "transit",
		}},
		{Category: core.CategoryHealth, Keywords: []string{
			"pharmacy", "drug", "clinic", "hospital", "dental", "health",
			"medicine",
		}},
		{Category: core.CategoryShopping, Keywords: []string{
			"amazon", "walmart", "target", "store", "shop", "mall", "ikea",
			"best buy",
		}},
		{Category: core.CategoryTravel, Keywords: []string{
			"hotel", "airbnb", "airlines", "flight", "booking", "expedia",
		}},
		{Category: core.CategoryUtilities, Keywords: []string{
			"hydro", "electric", "internet", "phone", "water", "utility",
			"telus", "rogers", "bell",
		}},
	}
}

// Classify returns the first category whose keywords appear in the vendor
// name or any item name, or "other" when nothing matches.
func (c *Classifier) Classify(vendor string, items []core.Item) string {
	var b strings.Builder
	b.WriteString(vendor)
	for _, it := range items {
		b.WriteByte(' ')
		b.WriteString(it.Name)
	}
	blob := strings.ToLower(b.String())

	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(blob, kw) {
				return rule.Category
			}
		}
	}
	return core.CategoryOther
}
