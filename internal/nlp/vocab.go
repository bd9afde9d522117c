package nlp

import "time"

// CategoryKeyword maps one surface keyword to a canonical category.
// Keywords are kept in an ordered slice, not a map, so classification is
// deterministic when an utterance mentions several of them.
type CategoryKeyword struct {
	Keyword  string
	Category string
}

// Vocabulary is the fixed word list the interpreter matches against.
// It is constructed once and passed in, never mutated, so tests can
// substitute their own vocabularies.
type Vocabulary struct {
	// SpendingCues mark a summarize question ("how much", "花了多少").
	SpendingCues []string
	// ListingCues mark a search/list request ("list", "列出", "查").
	ListingCues []string
	// Categories maps category keywords in both languages to the canonical
	// category names.
	Categories []CategoryKeyword
	// MonthNames resolves English month tokens.
	MonthNames map[string]time.Month
	// Stopwords are tokens that can never be a vendor name.
	Stopwords []string
}

// DefaultVocabulary returns the built-in English and Chinese word lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		SpendingCues: []string{
			"how much", "spent", "spend",
			"花了多少", "花费", "消费多少", "汇总",
		},
		ListingCues: []string{
			"list", "show me", "show", "search", "find",
			"列出", "查", "找",
		},
		Categories: []CategoryKeyword{
			{Keyword: "groceries", Category: "grocery"},
			{Keyword: "grocery", Category: "grocery"},
			{Keyword: "日用品", Category: "grocery"},
			{Keyword: "食品", Category: "grocery"},
			{Keyword: "dining", Category: "dining"},
			{Keyword: "restaurants", Category: "dining"},
			{Keyword: "restaurant", Category: "dining"},
			{Keyword: "餐饮", Category: "dining"},
			{Keyword: "transport", Category: "transport"},
			{Keyword: "交通", Category: "transport"},
			{Keyword: "health", Category: "health"},
			{Keyword: "医疗", Category: "health"},
			{Keyword: "shopping", Category: "shopping"},
			{Keyword: "购物", Category: "shopping"},
			{Keyword: "travel", Category: "travel"},
			{Keyword: "旅行", Category: "travel"},
			{Keyword: "utilities", Category: "utilities"},
			{Keyword: "水电", Category: "utilities"},
			{Keyword: "other", Category: "other"},
			{Keyword: "杂项", Category: "other"},
		},
		MonthNames: map[string]time.Month{
			"january": time.January, "jan": time.January,
			"february": time.February, "feb": time.February,
			"march": time.March, "mar": time.March,
			"april": time.April, "apr": time.April,
			"may":  time.May,
			"june": time.June, "jun": time.June,
			"july": time.July, "jul": time.July,
			"august": time.August, "aug": time.August,
			"september": time.September, "sep": time.September,
			"october": time.October, "oct": time.October,
			"november": time.November, "nov": time.November,
			"december": time.December, "dec": time.December,
		},
		Stopwords: []string{
			"receipt", "receipts", "all", "my", "me", "the", "a", "an",
			"in", "on", "for", "from", "at", "of", "did", "i", "this",
			"last", "month", "year",
			"收据", "类",
		},
	}
}
