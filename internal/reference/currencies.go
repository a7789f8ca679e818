package reference

import (
	"sort"
	"strings"

	"github.com/sabbirahammad/currency/internal/detect"
)

// Currency describes one currency the recognition endpoint is trained on.
// Field names mirror the detection result wire form.
type Currency struct {
	Code    string `json:"currencyCode"`
	Name    string `json:"currencyName"`
	Symbol  string `json:"symbol"`
	Country string `json:"country"`
}

var catalog = []Currency{
	{Code: "AED", Name: "UAE Dirham", Symbol: "د.إ", Country: "United Arab Emirates"},
	{Code: "AUD", Name: "Australian Dollar", Symbol: "$", Country: "Australia"},
	{Code: "BDT", Name: "Bangladeshi Taka", Symbol: "৳", Country: "Bangladesh"},
	{Code: "CAD", Name: "Canadian Dollar", Symbol: "$", Country: "Canada"},
	{Code: "CHF", Name: "Swiss Franc", Symbol: "Fr", Country: "Switzerland"},
	{Code: "CNY", Name: "Chinese Yuan", Symbol: "¥", Country: "China"},
	{Code: "EUR", Name: "Euro", Symbol: "€", Country: "Eurozone"},
	{Code: "GBP", Name: "Pound Sterling", Symbol: "£", Country: "United Kingdom"},
	{Code: "INR", Name: "Indian Rupee", Symbol: "₹", Country: "India"},
	{Code: "JPY", Name: "Japanese Yen", Symbol: "¥", Country: "Japan"},
	{Code: "KRW", Name: "South Korean Won", Symbol: "₩", Country: "South Korea"},
	{Code: "LKR", Name: "Sri Lankan Rupee", Symbol: "Rs", Country: "Sri Lanka"},
	{Code: "MYR", Name: "Malaysian Ringgit", Symbol: "RM", Country: "Malaysia"},
	{Code: "NPR", Name: "Nepalese Rupee", Symbol: "Rs", Country: "Nepal"},
	{Code: "PKR", Name: "Pakistani Rupee", Symbol: "Rs", Country: "Pakistan"},
	{Code: "SAR", Name: "Saudi Riyal", Symbol: "﷼", Country: "Saudi Arabia"},
	{Code: "SGD", Name: "Singapore Dollar", Symbol: "$", Country: "Singapore"},
	{Code: "THB", Name: "Thai Baht", Symbol: "฿", Country: "Thailand"},
	{Code: "TRY", Name: "Turkish Lira", Symbol: "₺", Country: "Turkey"},
	{Code: "USD", Name: "US Dollar", Symbol: "$", Country: "United States"},
}

var byCode = func() map[string]Currency {
	index := make(map[string]Currency, len(catalog))
	for _, currency := range catalog {
		index[currency.Code] = currency
	}
	return index
}()

// All returns the catalog sorted by code.
func All() []Currency {
	out := make([]Currency, len(catalog))
	copy(out, catalog)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Lookup finds a currency by its ISO code, case-insensitively.
func Lookup(code string) (Currency, bool) {
	currency, ok := byCode[strings.ToUpper(strings.TrimSpace(code))]
	return currency, ok
}

// Enrich fills missing name, symbol and country on a result whose code is in
// the catalog. Fields the endpoint already populated are left alone.
func Enrich(result *detect.Result) {
	if result == nil || result.CurrencyCode == "" {
		return
	}
	currency, ok := Lookup(result.CurrencyCode)
	if !ok {
		return
	}
	if result.CurrencyName == "" {
		result.CurrencyName = currency.Name
	}
	if result.Symbol == "" {
		result.Symbol = currency.Symbol
	}
	if result.Country == "" {
		result.Country = currency.Country
	}
}
