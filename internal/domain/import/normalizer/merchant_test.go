package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerchantSanitizer_Sanitize(t *testing.T) {
	s := NewMerchantSanitizer()

	tests := []struct {
		title    string
		name     string
		category string
	}{
		{"PAGAMENTO POS ESSELUNGA MILANO 12/02 ore 18:31", "Esselunga", "Groceries"},
		{"Spesa supermercato", "Supermercato", "Groceries"},
		{"ADDEBITO SDD NETFLIX.COM", "Netflix", "Subscriptions"},
		{"Bonifico a vostro favore STIPENDIO FEBBRAIO", "Stipendio", "Income"},
		{"Trenitalia Roma Termini", "Trenitalia", "Transport"},
		{"AMZN Mktp IT", "Amazon", "Shopping"},
		{"CARD PAYMENT Amazon Prime", "Amazon Prime", "Subscriptions"},
		{"Imposta di bollo", "Banca", "Fees"},
		{"PAGAMENTO POS BAR DEL CORSO 4711", "Bar Del Corso", ""},
		{"  pizzeria   da   mario  ", "Pizzeria Da Mario", ""},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := s.Sanitize(tt.title)
			assert.Equal(t, tt.name, got.Name)
			assert.Equal(t, tt.category, got.CategoryHint)
		})
	}
}

func TestMerchantSanitizer_EmptyTitle(t *testing.T) {
	assert.Equal(t, Merchant{}, NewMerchantSanitizer().Sanitize("   "))
}

func TestMerchantSanitizer_AddRule(t *testing.T) {
	s := NewMerchantSanitizer()
	require.NoError(t, s.AddRule(`(?i)palestra`, "Palestra", "Health"))
	assert.Equal(t, Merchant{Name: "Palestra", CategoryHint: "Health"}, s.Sanitize("Abbonamento palestra marzo"))

	assert.Error(t, s.AddRule(`(unclosed`, "x", "y"))
}

func TestStripBankNoise(t *testing.T) {
	assert.Equal(t, "ESSELUNGA", stripBankNoise("PAGAMENTO POS ESSELUNGA 12/02/2024"))
	assert.Equal(t, "Bar Roma", stripBankNoise("Operazione carta ****1234 Bar Roma"))
	assert.Equal(t, "Negozio", stripBankNoise("Negozio 99887766"))
}
