package patterns

import (
	"strings"
	"unicode"

	"github.com/cloudflare/ahocorasick"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// KeywordSet matches normalized header text against a fixed list of keywords.
// Substring lookups run through an Aho-Corasick automaton so a header is scanned
// once regardless of how many keywords the set holds.
type KeywordSet struct {
	words   []string
	exact   map[string]struct{}
	matcher *ahocorasick.Matcher
}

// NewKeywordSet builds a set from substring keywords and exact header names.
// Both lists are normalized with Normalize before being stored.
func NewKeywordSet(words []string, exact []string) *KeywordSet {
	ks := &KeywordSet{
		words: make([]string, 0, len(words)),
		exact: make(map[string]struct{}, len(exact)),
	}
	for _, w := range words {
		if w = Normalize(w); w != "" {
			ks.words = append(ks.words, w)
		}
	}
	for _, w := range exact {
		if w = Normalize(w); w != "" {
			ks.exact[w] = struct{}{}
		}
	}
	if len(ks.words) > 0 {
		ks.matcher = ahocorasick.NewStringMatcher(ks.words)
	}
	return ks
}

// Contains reports whether any keyword occurs inside the normalized text.
// Contains does not mutate matcher state and is safe for concurrent use.
func (k *KeywordSet) Contains(normalized string) bool {
	if k == nil || k.matcher == nil || normalized == "" {
		return false
	}
	return k.matcher.Contains([]byte(normalized))
}

// IsExact reports whether the normalized text equals one of the exact names.
func (k *KeywordSet) IsExact(normalized string) bool {
	if k == nil {
		return false
	}
	_, ok := k.exact[normalized]
	return ok
}

// Words returns a copy of the normalized substring keywords.
func (k *KeywordSet) Words() []string {
	out := make([]string, len(k.words))
	copy(out, k.words)
	return out
}

// Normalize trims, case-folds and strips diacritics so that "Descripción",
// "DESCRIPCION" and " descripcion " compare equal.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	// Transformers and casers keep internal state; build them per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}

// Multilingual header vocabularies (English, Italian, German, French, Spanish, Portuguese).
var (
	dateKeywords = []string{
		"date", "data", "datum", "fecha", "giorno", "dt.", "day",
		"buchungstag", "wertstellung", "valutadatum", "date operation", "date valeur",
		"posted", "posting", "booking", "transaction date", "data operazione",
		"data contabile", "data mov", "fecha valor", "fecha operacion",
	}
	dateExact = []string{
		"date", "data", "datum", "fecha", "data operazione", "data contabile",
		"transaction date", "posting date", "booking date", "buchungstag", "date operation",
	}

	amountKeywords = []string{
		"amount", "importo", "betrag", "montant", "importe", "valor", "valore",
		"totale", "total", "somma", "debit", "credit", "addebit", "accredit",
		"entrate", "uscite", "cargo", "abono", "umsatz", "money", "prezzo", "price",
		"ammontare", "montante", "soll", "haben", "debito", "credito",
		"withdrawal", "deposit", "paid in", "paid out", "money in", "money out",
	}
	amountExact = []string{
		"amount", "importo", "betrag", "montant", "importe", "valor", "valore",
		"totale", "total", "importo eur", "amount eur", "betrag eur", "montante", "umsatz",
		"dare", "avere",
	}

	debitKeywords = []string{
		"debit", "addebit", "uscite", "uscita", "cargo", "soll", "withdrawal",
		"paid out", "money out", "ausgabe", "sortie", "gasto", "dare",
	}
	creditKeywords = []string{
		"credit", "accredit", "entrate", "entrata", "abono", "haben", "deposit",
		"paid in", "money in", "einnahme", "entree", "ingreso", "avere",
	}

	currencyKeywords = []string{
		"currency", "valuta", "divisa", "devise", "wahrung", "moneda", "moeda", "ccy",
	}
	currencyExact = []string{
		"currency", "valuta", "divisa", "devise", "wahrung", "moneda", "moeda", "ccy",
	}

	titleKeywords = []string{
		"description", "descrizione", "descripcion", "descricao", "beschreibung", "libelle",
		"causale", "details", "dettagli", "memo", "payee", "merchant", "narrative", "concepto",
		"operazione", "verwendungszweck", "buchungstext", "nome", "name", "title", "titolo",
		"esercente", "beneficiario", "empfanger", "destinatario", "motivo", "reference", "riferimento",
		"counterparty", "controparte", "movimento", "text",
	}
	titleExact = []string{
		"description", "descrizione", "descripcion", "descricao", "beschreibung", "libelle",
		"causale", "details", "memo", "payee", "merchant", "concepto", "verwendungszweck",
		"buchungstext", "name", "title", "titolo", "narrative",
	}

	legendHeaderKeywords = []string{
		"legenda", "legend", "note", "nota", "info", "informazioni", "avvertenz",
		"disclaimer", "hinweis", "remarque", "aviso",
	}

	bannerKeywords = []string{
		"legenda", "legend", "descrizione campi", "field description", "estratto conto",
		"account statement", "kontoauszug", "releve de compte", "extracto",
		"saldo iniziale", "saldo finale", "opening balance", "closing balance",
		"generated on", "generato il", "periodo dal", "statement period", "page ", "pagina ",
	}
)
