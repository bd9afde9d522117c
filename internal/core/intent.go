package core

// Intent is the contract between the NL interpreter and the query engine:
// a closed set of variants, one per engine operation. The engine switches
// exhaustively over the concrete types, so adding an operation is a
// compile-time extension rather than a runtime lookup.
type Intent interface {
	intent()
}

// SearchIntent asks for receipts whose vendor contains Token,
// case-insensitively.
type SearchIntent struct {
	Token string
}

// ListIntent asks for receipts in Category, or every receipt when
// Category is empty.
type ListIntent struct {
	Category string
}

// SummarizeIntent asks for the aggregated spend of one month.
type SummarizeIntent struct {
	Month Month
}

// UnknownIntent is the explicit fallback for free text that matched no rule.
type UnknownIntent struct {
	Utterance string
}

func (SearchIntent) intent()    {}
func (ListIntent) intent()      {}
func (SummarizeIntent) intent() {}
func (UnknownIntent) intent()   {}
