package symbols

import (
	"regexp"
	"strings"
)

// alias maps a company-name variation to its CSE ticker. Longer variations
// sit next to their substrings so either spelling resolves to the same symbol.
type alias struct {
	Name   string
	Symbol string
}

var companyAliases = []alias{
	{"JOHN KEELLS", "JKH"},
	{"JOHN KEELLS HOLDINGS", "JKH"},
	{"KEELLS", "JKH"},
	{"DIALOG", "DIAL"},
	{"DIALOG AXIATA", "DIAL"},
	{"COMMERCIAL BANK", "COMB"},
	{"COMMERCIAL", "COMB"},
	{"COMBANK", "COMB"},
	{"HATTON NATIONAL", "HNB"},
	{"HATTON NATIONAL BANK", "HNB"},
	{"HATTON", "HNB"},
}

var knownSymbols = map[string]bool{
	"JKH":  true,
	"DIAL": true,
	"COMB": true,
	"HNB":  true,
}

// Tickers on the CSE are 2-5 uppercase letters. Matching runs on the raw
// input so only genuinely capitalized tokens count.
var symbolPattern = regexp.MustCompile(`\b[A-Z]{2,5}\b`)

// Extract returns the first stock symbol referenced by the text. Company-name
// aliases win over bare ticker tokens; a ticker-shaped token that is not in the
// known set is still returned so unlisted symbols can be looked up.
func Extract(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	upper := strings.ToUpper(text)
	for _, a := range companyAliases {
		if strings.Contains(upper, a.Name) {
			return a.Symbol, true
		}
	}

	matches := symbolPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	for _, m := range matches {
		if knownSymbols[m] {
			return m, true
		}
	}
	return matches[0], true
}

// ExtractAll returns every symbol referenced by the text, alias matches first,
// then ticker-shaped tokens, deduplicated in order of first discovery.
func ExtractAll(text string) []string {
	if text == "" {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	add := func(sym string) {
		if !seen[sym] {
			seen[sym] = true
			out = append(out, sym)
		}
	}

	upper := strings.ToUpper(text)
	for _, a := range companyAliases {
		if strings.Contains(upper, a.Name) {
			add(a.Symbol)
		}
	}
	for _, m := range symbolPattern.FindAllString(text, -1) {
		add(m)
	}
	return out
}

// IsKnown reports whether the symbol is in the curated validation set.
func IsKnown(symbol string) bool {
	return knownSymbols[strings.ToUpper(symbol)]
}

// Known returns the curated symbol set.
func Known() []string {
	out := make([]string, 0, len(knownSymbols))
	for s := range knownSymbols {
		out = append(out, s)
	}
	return out
}
