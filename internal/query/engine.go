// Package query turns a classified intent into one deterministic store
// operation and shapes its output.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"receipts/internal/core"
)

// Store is the subset of the receipt store the engine needs.
type Store interface {
	Find(ctx context.Context, f core.ReceiptFilter) ([]core.Receipt, error)
	All(ctx context.Context) ([]core.Receipt, error)
}

// Result is what an executed intent produces: either a receipt list or a
// month summary.
type Result interface {
	result()
}

// ReceiptList is the result of Search and List intents.
type ReceiptList struct {
	Receipts []core.Receipt
}

// Summary is the result of a Summarize intent.
type Summary struct {
	Summary core.MonthSummary
}

func (ReceiptList) result() {}
func (Summary) result()     {}

type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Execute maps one intent to one store operation. Unknown intents fail with
// *core.UnresolvedIntentError so callers can report that the text was not
// understood instead of silently doing nothing.
func (e *Engine) Execute(ctx context.Context, intent core.Intent) (Result, error) {
	switch it := intent.(type) {
	case core.SearchIntent:
		token := strings.TrimSpace(it.Token)
		if token == "" {
			return nil, &core.InvalidQueryError{Reason: "search token must not be empty"}
		}
		receipts, err := e.store.Find(ctx, core.ReceiptFilter{Vendor: token})
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", token, err)
		}
		return ReceiptList{Receipts: receipts}, nil

	case core.ListIntent:
		category := strings.TrimSpace(it.Category)
		var (
			receipts []core.Receipt
			err      error
		)
		if category == "" {
			receipts, err = e.store.All(ctx)
		} else {
			receipts, err = e.store.Find(ctx, core.ReceiptFilter{Category: category})
		}
		if err != nil {
			return nil, fmt.Errorf("list receipts: %w", err)
		}
		return ReceiptList{Receipts: receipts}, nil

	case core.SummarizeIntent:
		if it.Month.IsZero() {
			return nil, &core.InvalidQueryError{Reason: "month must be YYYY-MM"}
		}
		receipts, err := e.store.Find(ctx, core.ReceiptFilter{Month: it.Month})
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", it.Month, err)
		}
		return Summary{Summary: summarize(it.Month, receipts)}, nil

	case core.UnknownIntent:
		return nil, &core.UnresolvedIntentError{Utterance: it.Utterance}

	default:
		return nil, &core.UnresolvedIntentError{}
	}
}

// summarize reduces the matched receipts into per-currency totals with a
// category breakdown inside each currency. Sums are integer cents; mixed
// currencies are never folded into one number. An empty match yields a
// zero summary, not an error.
func summarize(month core.Month, receipts []core.Receipt) core.MonthSummary {
	type bucket struct {
		total      int64
		byCategory map[string]int64
	}
	buckets := make(map[string]*bucket)

	for _, r := range receipts {
		b := buckets[r.Currency]
		if b == nil {
			b = &bucket{byCategory: make(map[string]int64)}
			buckets[r.Currency] = b
		}
		b.total += r.Total.Cents
		category := r.Category
		if category == "" {
			category = core.CategoryOther
		}
		b.byCategory[category] += r.Total.Cents
	}

	summary := core.MonthSummary{Month: month, Count: len(receipts)}

	currencies := make([]string, 0, len(buckets))
	for code := range buckets {
		currencies = append(currencies, code)
	}
	sort.Strings(currencies)

	for _, code := range currencies {
		b := buckets[code]
		ct := core.CurrencyTotal{Currency: code, Total: core.Money{Cents: b.total}}

		categories := make([]string, 0, len(b.byCategory))
		for cat := range b.byCategory {
			categories = append(categories, cat)
		}
		// Largest spend first; names break ties so the order is stable.
		sort.Slice(categories, func(i, j int) bool {
			ci, cj := b.byCategory[categories[i]], b.byCategory[categories[j]]
			if ci != cj {
				return ci > cj
			}
			return categories[i] < categories[j]
		})
		for _, cat := range categories {
			ct.ByCategory = append(ct.ByCategory, core.CategoryAmount{
				Category: cat,
				Amount:   core.Money{Cents: b.byCategory[cat]},
			})
		}
		summary.Totals = append(summary.Totals, ct)
	}

	return summary
}
