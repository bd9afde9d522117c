// Package nlp maps a free-text utterance (English or Chinese) to one query
// intent. It is a rule-based pattern and slot extractor, not a statistical
// model: rules are tried in a fixed priority order and the first match wins,
// so identical input always yields the identical intent.
package nlp

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"receipts/internal/core"
)

var (
	// 2026-02, 2026/2, 2026年2月
	yearMonthRe = regexp.MustCompile(`(20\d{2})\s*[-/年.]\s*(\d{1,2})`)
	// bare 2月 / 2月份 (current year assumed)
	bareMonthRe = regexp.MustCompile(`(\d{1,2})\s*月`)
	yearRe      = regexp.MustCompile(`\b(20\d{2})\b`)
	// 查吹风机在哪个收据
	searchZhRe = regexp.MustCompile(`查\s*(.+?)\s*在.*收据`)
)

type Interpreter struct {
	vocab Vocabulary
	now   func() time.Time
}

// NewInterpreter builds an interpreter over the given vocabulary.
func NewInterpreter(vocab Vocabulary) *Interpreter {
	return &Interpreter{vocab: vocab, now: time.Now}
}

// Interpret classifies an utterance. Priority order:
//
//  1. month reference + spending cue  -> Summarize
//  2. listing cue + vendor token      -> Search
//  3. listing cue + category keyword  -> List
//  4. otherwise                       -> Unknown
//
// The first satisfied rule wins even if a later one would also match, so
// "how much did I spend at Walmart in February" summarizes the month and
// ignores the vendor. A token counts as a plausible vendor only when it is
// not a category keyword, month name or stopword.
func (in *Interpreter) Interpret(utterance string) core.Intent {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return core.UnknownIntent{Utterance: utterance}
	}

	if containsAny(text, in.vocab.SpendingCues) {
		if month, ok := in.extractMonth(text); ok {
			return core.SummarizeIntent{Month: month}
		}
	}

	if containsAny(text, in.vocab.ListingCues) {
		if token, ok := in.vendorToken(text); ok {
			return core.SearchIntent{Token: token}
		}
		if category, ok := in.categoryOf(text); ok {
			return core.ListIntent{Category: category}
		}
	}

	return core.UnknownIntent{Utterance: utterance}
}

// extractMonth finds a year-month reference in the utterance.
func (in *Interpreter) extractMonth(text string) (core.Month, bool) {
	if m := yearMonthRe.FindStringSubmatch(text); m != nil {
		return makeMonth(atoi(m[1]), atoi(m[2]))
	}

	now := in.now()
	if strings.Contains(text, "this month") || strings.Contains(text, "本月") || strings.Contains(text, "这个月") {
		return core.MonthOf(now), true
	}
	if strings.Contains(text, "last month") || strings.Contains(text, "上月") || strings.Contains(text, "上个月") {
		return core.MonthOf(now.AddDate(0, -1, 0)), true
	}

	// Bare Chinese month: the current year is assumed.
	if m := bareMonthRe.FindStringSubmatch(text); m != nil {
		return makeMonth(now.Year(), atoi(m[1]))
	}

	// English month name, with an explicit year anywhere in the text or the
	// current year assumed.
	for _, tok := range tokenize(text) {
		month, ok := in.vocab.MonthNames[tok]
		if !ok {
			continue
		}
		year := now.Year()
		if y := yearRe.FindStringSubmatch(text); y != nil {
			year = atoi(y[1])
		}
		return makeMonth(year, int(month))
	}

	return core.Month{}, false
}

// vendorToken extracts a plausible vendor name from a listing request.
func (in *Interpreter) vendorToken(text string) (string, bool) {
	// Chinese form: 查 <token> 在...收据
	if m := searchZhRe.FindStringSubmatch(text); m != nil {
		token := strings.TrimSpace(m[1])
		if token != "" && !in.isCategoryKeyword(token) {
			return token, true
		}
		return "", false
	}

	for _, tok := range tokenize(text) {
		if hasCJK(tok) {
			// Unsegmented Chinese text is only handled by the regex form
			// above; a whole CJK clause is not a vendor token.
			continue
		}
		if in.skipAsVendor(tok) {
			continue
		}
		return tok, true
	}
	return "", false
}

func (in *Interpreter) skipAsVendor(tok string) bool {
	if tok == "" || isNumeric(tok) {
		return true
	}
	for _, cue := range in.vocab.ListingCues {
		for _, w := range strings.Fields(cue) {
			if tok == w {
				return true
			}
		}
	}
	for _, cue := range in.vocab.SpendingCues {
		for _, w := range strings.Fields(cue) {
			if tok == w {
				return true
			}
		}
	}
	for _, sw := range in.vocab.Stopwords {
		if tok == sw {
			return true
		}
	}
	if _, ok := in.vocab.MonthNames[tok]; ok {
		return true
	}
	return in.isCategoryKeyword(tok)
}

// categoryOf finds the first category keyword mentioned in the utterance.
func (in *Interpreter) categoryOf(text string) (string, bool) {
	for _, kw := range in.vocab.Categories {
		if strings.Contains(text, kw.Keyword) {
			return kw.Category, true
		}
	}
	return "", false
}

func (in *Interpreter) isCategoryKeyword(tok string) bool {
	for _, kw := range in.vocab.Categories {
		if tok == kw.Keyword {
			return true
		}
	}
	return false
}

func makeMonth(year, month int) (core.Month, bool) {
	if month < 1 || month > 12 {
		return core.Month{}, false
	}
	return core.Month{Year: year, Month: time.Month(month)}, true
}

func containsAny(text string, cues []string) bool {
	for _, cue := range cues {
		if strings.Contains(text, cue) {
			return true
		}
	}
	return false
}

func tokenize(text string) []string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `.,!?;:"'()[]`)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func hasCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
