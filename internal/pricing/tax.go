package pricing

import "strings"

// taxRates is a small built-in table keyed by "COUNTRY" or "COUNTRY:STATE".
// Stands in for a real tax service.
var taxRates = map[string]float64{
	"US":    0.06,
	"US:CA": 0.0725,
	"US:NY": 0.08875,
	"US:TX": 0.0625,
	"US:FL": 0.06,
	"US:OR": 0,
	"GB":    0.20,
	"DE":    0.19,
	"FR":    0.20,
	"AE":    0.05,
	"CA":    0.05,
	"CA:ON": 0.13,
	"CA:QC": 0.14975,
}

// TaxRate resolves the rate for a shipping destination. State-level entries
// win over country defaults; unknown destinations are untaxed.
func TaxRate(country, state string) float64 {
	country = strings.ToUpper(strings.TrimSpace(country))
	state = strings.ToUpper(strings.TrimSpace(state))

	if state != "" {
		if rate, ok := taxRates[country+":"+state]; ok {
			return rate
		}
	}
	if rate, ok := taxRates[country]; ok {
		return rate
	}
	return 0
}
