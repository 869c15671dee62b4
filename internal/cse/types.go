package cse

// Quote is a normalized snapshot of a single security's trading state.
// Once built it is never mutated; cached copies are returned as-is.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	LastUpdated   string  `json:"lastUpdated"`
}

// companyInfo is the item shape shared by the companyInfoSummery response and
// the tradeSummary/topGainers/topLooses list entries.
type companyInfo struct {
	Symbol           string  `json:"symbol"`
	SecurityName     string  `json:"securityName"`
	LastTradedPrice  float64 `json:"lastTradedPrice"`
	Change           float64 `json:"change"`
	PercentageChange float64 `json:"percentageChange"`
	OpeningPrice     float64 `json:"openingPrice"`
	PreviousClose    float64 `json:"previousClose"`
	HighPrice        float64 `json:"highPrice"`
	LowPrice         float64 `json:"lowPrice"`
	LastTradedTime   string  `json:"lastTradedTime"`
}

type listResponse struct {
	Data []companyInfo `json:"data"`
}
