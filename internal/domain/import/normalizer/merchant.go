package normalizer

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Merchant is the cleaned counterparty of a statement row plus a coarse
// category hint that downstream categorization may use or ignore.
type Merchant struct {
	Name         string `json:"name"`
	CategoryHint string `json:"category_hint,omitempty"`
}

type merchantRule struct {
	re       *regexp.Regexp
	name     string
	category string
}

// MerchantSanitizer strips bank boilerplate from titles and recognizes
// common Italian and European merchants.
type MerchantSanitizer struct {
	rules []merchantRule
}

// NewMerchantSanitizer returns a sanitizer preloaded with the built-in rules.
func NewMerchantSanitizer() *MerchantSanitizer {
	return &MerchantSanitizer{rules: builtinMerchantRules()}
}

// AddRule registers an extra merchant rule checked after the built-in ones.
func (s *MerchantSanitizer) AddRule(pattern, name, category string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.rules = append(s.rules, merchantRule{re: re, name: name, category: category})
	return nil
}

// Sanitize derives a merchant from a cleaned transaction title.
func (s *MerchantSanitizer) Sanitize(title string) Merchant {
	stripped := stripBankNoise(title)
	if stripped == "" {
		return Merchant{}
	}
	for _, r := range s.rules {
		if r.re.MatchString(stripped) {
			return Merchant{Name: r.name, CategoryHint: r.category}
		}
	}
	return Merchant{Name: cases.Title(language.Und).String(strings.ToLower(stripped))}
}

var (
	bankPrefixRe = regexp.MustCompile(`(?i)^(pagamento\s+(pos|pagobancomat|carta|sdd)|pagamento|addebito\s+(sdd|diretto)|addebito|acquisto|operazione\s+carta|bonifico\s+(sepa\s+)?(a\s+vostro\s+favore|disposto\s+a\s+favore\s+di|istantaneo)?|prelievo(\s+bancomat)?|pos|compra|purchase|payment|card\s+payment|visa|mastercard|maestro|sepa)\b[\s:.\-]*`)
	cardMaskRe   = regexp.MustCompile(`(?i)(\b(carta|card)\s*)?[x*]{4,}\d{2,4}\b`)
	trailingRef  = regexp.MustCompile(`\s+(del\s+)?\d{1,2}[/.]\d{1,2}([/.]\d{2,4})?(\s+(ore\s+)?\d{1,2}[:.]\d{2})?\s*$`)
	trailingNum  = regexp.MustCompile(`\s+\d{4,}\s*$`)
)

func stripBankNoise(title string) string {
	s := CleanDescription(title)
	for i := 0; i < 2; i++ {
		next := bankPrefixRe.ReplaceAllString(s, "")
		if next == s {
			break
		}
		s = strings.TrimSpace(next)
	}
	s = cardMaskRe.ReplaceAllString(s, " ")
	s = trailingRef.ReplaceAllString(s, "")
	s = trailingNum.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

func builtinMerchantRules() []merchantRule {
	rule := func(pattern, name, category string) merchantRule {
		return merchantRule{re: regexp.MustCompile(`(?i)` + pattern), name: name, category: category}
	}
	return []merchantRule{
		// Groceries
		rule(`\besselunga\b`, "Esselunga", "Groceries"),
		rule(`\bconad\b`, "Conad", "Groceries"),
		rule(`\bcoop\b`, "Coop", "Groceries"),
		rule(`\bcarrefour\b`, "Carrefour", "Groceries"),
		rule(`\blidl\b`, "Lidl", "Groceries"),
		rule(`\beurospin\b`, "Eurospin", "Groceries"),
		rule(`\bpam\b|\bpanorama\b`, "Pam Panorama", "Groceries"),
		rule(`\baldi\b`, "Aldi", "Groceries"),
		rule(`\bsupermercat`, "Supermercato", "Groceries"),

		// Food and drink
		rule(`\bjust\s*eat\b`, "Just Eat", "Food & Drink"),
		rule(`\bdeliveroo\b`, "Deliveroo", "Food & Drink"),
		rule(`\bglovo\b`, "Glovo", "Food & Drink"),
		rule(`mc\s*donald`, "McDonald's", "Food & Drink"),
		rule(`\bautogrill\b`, "Autogrill", "Food & Drink"),

		// Transport
		rule(`\btrenitalia\b`, "Trenitalia", "Transport"),
		rule(`\bitalo\b`, "Italo", "Transport"),
		rule(`\batm\s+milano\b`, "ATM Milano", "Transport"),
		rule(`\bautostrade\b|\btelepass\b`, "Autostrade", "Transport"),
		rule(`\beni\s*station\b|\bq8\b|\btamoil\b|\bip\s+stazione\b`, "Carburante", "Transport"),
		rule(`\buber\b`, "Uber", "Transport"),
		rule(`\bryanair\b`, "Ryanair", "Travel"),
		rule(`\bita\s+airways\b`, "ITA Airways", "Travel"),
		rule(`\bbooking\.com\b`, "Booking.com", "Travel"),
		rule(`\bairbnb\b`, "Airbnb", "Travel"),

		// Bills and utilities
		rule(`\benel\b`, "Enel", "Utilities"),
		rule(`\bhera\b|\ba2a\b|\biren\b`, "Multiutility", "Utilities"),
		rule(`\btim\b|\bvodafone\b|\bwindtre\b|\biliad\b|\bfastweb\b`, "Telefonia", "Utilities"),

		// Subscriptions and shopping
		rule(`\bnetflix\b`, "Netflix", "Subscriptions"),
		rule(`\bspotify\b`, "Spotify", "Subscriptions"),
		rule(`\bdisney\s*\+|\bdisney\s*plus\b`, "Disney+", "Subscriptions"),
		rule(`\bamazon\s*prime\b`, "Amazon Prime", "Subscriptions"),
		rule(`\bamzn\b|\bamazon\b`, "Amazon", "Shopping"),
		rule(`\bpaypal\b`, "PayPal", "Shopping"),
		rule(`\bzalando\b`, "Zalando", "Shopping"),
		rule(`\bikea\b`, "IKEA", "Shopping"),

		// Income and transfers
		rule(`\bstipendio\b|\bemolument|\bsalary\b`, "Stipendio", "Income"),
		rule(`\bgiroconto\b`, "Giroconto", "Transfer"),
		rule(`\bcommission|\bcanone\b|\bimposta\s+di\s+bollo\b`, "Banca", "Fees"),
		rule(`\bf24\b|\bagenzia\s+entrate\b`, "Agenzia Entrate", "Taxes"),
	}
}
