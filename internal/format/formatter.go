// Package format renders query results as short, stable text. The same
// result always produces the same string: numbers are rendered with a fixed
// dot decimal separator and never pass through locale-aware formatting.
package format

import (
	"fmt"
	"strings"

	"receipts/internal/core"
	"receipts/internal/query"
)

// currencySymbols maps ISO codes to a display symbol. Codes outside the map
// render without a symbol.
var currencySymbols = map[string]string{
	"USD": "$",
	"CAD": "$",
	"EUR": "€",
	"GBP": "£",
	"CNY": "¥",
	"JPY": "¥",
}

// Amount renders a money value with its currency symbol and code, for
// example "$45.50 CAD" or "12.00 NOK".
func Amount(m core.Money, currency string) string {
	if sym, ok := currencySymbols[currency]; ok {
		return sym + m.Decimal() + " " + currency
	}
	return m.Decimal() + " " + currency
}

// Result renders any query result.
func Result(res query.Result) string {
	switch r := res.(type) {
	case query.ReceiptList:
		return Receipts(r.Receipts)
	case query.Summary:
		return Summary(r.Summary)
	default:
		return fmt.Sprintf("unrenderable result %T", res)
	}
}

// Receipts renders a receipt list, one line per receipt in store order.
// An empty list says so instead of producing empty output.
func Receipts(receipts []core.Receipt) string {
	if len(receipts) == 0 {
		return "no receipts found"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d %s:", len(receipts), plural(len(receipts)))
	for _, r := range receipts {
		fmt.Fprintf(&b, "\n#%d  %s  %s  %s  [%s]",
			r.ID, r.Date, r.Vendor, Amount(r.Total, r.Currency), r.Category)
	}
	return b.String()
}

// Receipt renders one receipt in full, including line items.
func Receipt(r core.Receipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "receipt #%d\n", r.ID)
	fmt.Fprintf(&b, "vendor:   %s\n", r.Vendor)
	fmt.Fprintf(&b, "date:     %s\n", r.Date)
	fmt.Fprintf(&b, "total:    %s\n", Amount(r.Total, r.Currency))
	fmt.Fprintf(&b, "category: %s", r.Category)
	for _, item := range r.Items {
		fmt.Fprintf(&b, "\n  - %s  %s", item.Name, Amount(item.Price, r.Currency))
	}
	if r.ImagePath != "" {
		fmt.Fprintf(&b, "\nimage:    %s", r.ImagePath)
	}
	return b.String()
}

// Summary renders a month summary. Each currency gets its own clause with
// its own top category, so totals in different currencies are never shown
// as one number.
func Summary(s core.MonthSummary) string {
	if s.Count == 0 {
		return fmt.Sprintf("%s: no receipts", s.Month)
	}

	clauses := make([]string, 0, len(s.Totals))
	for _, ct := range s.Totals {
		clause := Amount(ct.Total, ct.Currency)
		if len(ct.ByCategory) > 0 {
			top := ct.ByCategory[0]
			clause += fmt.Sprintf(", top category: %s %s", top.Category, Amount(top.Amount, ct.Currency))
		}
		clauses = append(clauses, clause)
	}
	return fmt.Sprintf("%s: %d %s, %s", s.Month, s.Count, plural(s.Count), strings.Join(clauses, "; "))
}

func plural(n int) string {
	if n == 1 {
		return "receipt"
	}
	return "receipts"
}
