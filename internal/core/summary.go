package core

// CategoryAmount is spend aggregated under one category.
type CategoryAmount struct {
	Category string
	Amount   Money
}

// CurrencyTotal is the spend of one month in one currency. Currencies are
// never converted or co-mingled: a month with receipts in two currencies
// reports two totals.
type CurrencyTotal struct {
	Currency   string
	Total      Money
	ByCategory []CategoryAmount
}

// MonthSummary is the aggregation result for one month. It is computed
// fresh on every query and never persisted or cached. A month with no
// receipts is a valid summary with Count 0 and no totals.
type MonthSummary struct {
	Month  Month
	Count  int
	Totals []CurrencyTotal // sorted by currency code
}
