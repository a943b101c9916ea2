package mapper

import (
	"sort"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/patterns"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/table"
)

const (
	exactHeaderScore   = 20
	keywordHeaderScore = 10
	typedCellScore     = 5
	titleCellScore     = 2
	maxFallbacks       = 3
	defaultSampleRows  = 10
)

// ColumnScore holds the per-role evidence collected for one header.
type ColumnScore struct {
	Header string       `json:"header"`
	Scores map[Role]int `json:"scores"`
}

// Mapper scores headers and sampled cells against the four roles.
type Mapper struct {
	lib        *patterns.Library
	classifier *normalizer.Classifier
	sampleRows int
}

// New creates a mapper. sampleRows <= 0 uses the default of 10.
func New(lib *patterns.Library, sampleRows int) *Mapper {
	if sampleRows <= 0 {
		sampleRows = defaultSampleRows
	}
	return &Mapper{
		lib:        lib,
		classifier: normalizer.NewClassifier(lib),
		sampleRows: sampleRows,
	}
}

// Map assigns a primary and up to three fallback columns to each role.
func (m *Mapper) Map(headers []string, sample []table.Row) FieldMapping {
	scores := m.Score(headers, sample)

	var fm FieldMapping
	for _, role := range Roles {
		fm.set(role, pick(scores, role))
	}
	fm.Split = m.detectSplit(scores)

	total := fm.Date.Score + fm.Amount.Score + fm.Title.Score
	fm.Confidence = min(100, max(0, 2*total))
	return fm
}

// Score returns the raw role scores of every header, in header order.
func (m *Mapper) Score(headers []string, sample []table.Row) []ColumnScore {
	if len(sample) > m.sampleRows {
		sample = sample[:m.sampleRows]
	}

	out := make([]ColumnScore, len(headers))
	for i, h := range headers {
		cs := ColumnScore{Header: h, Scores: m.headerScores(h)}
		for _, row := range sample {
			v := row.Value(h)
			if v == "" {
				continue
			}
			typed := false
			if m.classifier.LooksLikeDate(v) {
				cs.Scores[RoleDate] += typedCellScore
				typed = true
			}
			if m.classifier.LooksLikeAmount(v) {
				cs.Scores[RoleAmount] += typedCellScore
				typed = true
			}
			if m.classifier.LooksLikeCurrency(v) {
				cs.Scores[RoleCurrency] += typedCellScore
				typed = true
			}
			if !typed && len([]rune(v)) > 2 {
				cs.Scores[RoleTitle] += titleCellScore
			}
		}
		out[i] = cs
	}
	return out
}

func (m *Mapper) headerScores(header string) map[Role]int {
	h := patterns.Normalize(header)
	scores := map[Role]int{
		RoleDate:     keywordScore(m.lib.DateKeywords, h),
		RoleAmount:   keywordScore(m.lib.AmountKeywords, h),
		RoleCurrency: keywordScore(m.lib.CurrencyKeywords, h),
		RoleTitle:    keywordScore(m.lib.TitleKeywords, h),
	}
	// "Data valuta" is a value date, not a currency column.
	if scores[RoleDate] > 0 {
		scores[RoleCurrency] = 0
	}
	return scores
}

func keywordScore(set *patterns.KeywordSet, normalized string) int {
	switch {
	case set.IsExact(normalized):
		return exactHeaderScore
	case set.Contains(normalized):
		return keywordHeaderScore
	}
	return 0
}

// detectSplit looks for an unsigned debit/credit column pair among the
// amount candidates.
func (m *Mapper) detectSplit(scores []ColumnScore) *SplitAmount {
	var debit, credit string
	for _, cs := range scores {
		if cs.Scores[RoleAmount] <= 0 {
			continue
		}
		h := patterns.Normalize(cs.Header)
		switch {
		case debit == "" && m.lib.DebitKeywords.Contains(h):
			debit = cs.Header
		case credit == "" && m.lib.CreditKeywords.Contains(h):
			credit = cs.Header
		}
	}
	if debit == "" || credit == "" {
		return nil
	}
	return &SplitAmount{Debit: debit, Credit: credit}
}

// pick chooses the best positive column for a role. Ties keep header order.
func pick(scores []ColumnScore, role Role) RoleMapping {
	type candidate struct {
		header string
		score  int
	}
	var candidates []candidate
	for _, cs := range scores {
		if s := cs.Scores[role]; s > 0 {
			candidates = append(candidates, candidate{header: cs.Header, score: s})
		}
	}
	if len(candidates) == 0 {
		return RoleMapping{}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	rm := RoleMapping{Primary: candidates[0].header, Score: candidates[0].score}
	for _, c := range candidates[1:] {
		if len(rm.Fallbacks) == maxFallbacks {
			break
		}
		rm.Fallbacks = append(rm.Fallbacks, c.header)
	}
	return rm
}
