package patterns

// SupportedCurrencies lists the ISO-4217 codes recognised in statement cells.
// Every entry must also be known to go-money; library_test.go enforces this.
var SupportedCurrencies = []string{
	"EUR", "USD", "GBP", "CHF", "JPY", "CNY", "INR", "RUB",
	"AUD", "CAD", "NZD", "SEK", "NOK", "DKK", "ISK", "PLN",
	"CZK", "HUF", "RON", "BGN", "RSD", "TRY", "UAH", "ILS",
	"AED", "SAR", "QAR", "KWD", "EGP", "MAD", "ZAR", "NGN",
	"KES", "BRL", "ARS", "CLP", "COP", "MXN", "PEN", "HKD",
	"SGD", "KRW", "TWD", "THB", "MYR", "IDR", "PHP", "VND",
}
