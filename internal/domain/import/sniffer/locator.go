// Package sniffer finds where the transaction table starts inside a statement
// export that may carry banners, legends and account metadata above it.
package sniffer

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/FACorreiaa/echo-statements/internal/domain/import/normalizer"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/patterns"
	"github.com/FACorreiaa/echo-statements/internal/domain/import/table"
)

const (
	defaultMaxCandidates = 20
	defaultPreviewRows   = 5
	minHeaders           = 3
)

// Location is the winning table start. Headers is empty when no candidate
// line qualified.
type Location struct {
	StartRow    int
	Delimiter   rune
	Headers     []string
	Fingerprint string
	Score       int
}

// Found reports whether a table was located.
func (l Location) Found() bool {
	return len(l.Headers) > 0
}

// Locator scores candidate header lines.
type Locator struct {
	lib           *patterns.Library
	classifier    *normalizer.Classifier
	maxCandidates int
	previewRows   int
}

// Option configures a Locator.
type Option func(*Locator)

// WithMaxCandidates bounds how many leading lines are tried as the header.
func WithMaxCandidates(n int) Option {
	return func(l *Locator) {
		if n > 0 {
			l.maxCandidates = n
		}
	}
}

// WithPreviewRows sets how many rows below a candidate are scored.
func WithPreviewRows(n int) Option {
	return func(l *Locator) {
		if n > 0 {
			l.previewRows = n
		}
	}
}

// NewLocator creates a locator over the shared pattern library.
func NewLocator(lib *patterns.Library, opts ...Option) *Locator {
	l := &Locator{
		lib:           lib,
		classifier:    normalizer.NewClassifier(lib),
		maxCandidates: defaultMaxCandidates,
		previewRows:   defaultPreviewRows,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SplitLines returns the non-blank lines of text with BOM and CR removed.
func SplitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for i, line := range raw {
		line = cleanLine(line, i == 0)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// Locate scans the leading lines of text and returns the best header line.
// Indices refer to the non-blank lines returned by SplitLines.
func (l *Locator) Locate(text string) Location {
	return l.LocateLines(SplitLines(text))
}

// LocateLines is Locate over lines already produced by SplitLines.
func (l *Locator) LocateLines(lines []string) Location {
	best := Location{StartRow: -1}
	limit := min(len(lines)-1, l.maxCandidates)

	for i := 0; i < limit; i++ {
		delimiter, _ := detectDelimiter(lines[i])
		score, headers, ok := l.scoreCandidate(lines, i, delimiter)
		if !ok {
			continue
		}
		if best.StartRow < 0 || score > best.Score {
			best = Location{
				StartRow:  i,
				Delimiter: delimiter,
				Headers:   headers,
				Score:     score,
			}
		}
	}

	if best.StartRow < 0 {
		return Location{}
	}
	best.Fingerprint = generateFingerprint(best.Headers)
	return best
}

func (l *Locator) scoreCandidate(lines []string, start int, delimiter rune) (int, []string, bool) {
	raw := table.SplitRecord(lines[start], delimiter)
	if nonBlank(raw) < minHeaders {
		return 0, nil, false
	}

	end := min(start+1+l.previewRows, len(lines))
	preview, err := table.Read(strings.Join(lines[start:end], "\n"), table.ReadOptions{
		Delimiter: delimiter,
		MaxRows:   l.previewRows,
	})
	if err != nil || len(preview.Rows) == 0 {
		return 0, nil, false
	}

	score := 0
	for _, h := range raw {
		score += l.headerScore(h)
	}
	for _, row := range preview.Rows {
		score += l.rowScore(row)
	}
	return score, preview.Headers, true
}

func (l *Locator) headerScore(header string) int {
	h := patterns.Normalize(header)
	if h == "" {
		return 0
	}
	score := 0
	if l.lib.DateKeywords.Contains(h) || l.lib.AmountKeywords.Contains(h) {
		score += 10
	}
	if l.lib.TitleKeywords.Contains(h) {
		score += 5
	}
	if l.lib.LegendKeywords.Contains(h) {
		score -= 5
	}
	if n := len([]rune(strings.TrimSpace(header))); n >= 3 && n < 30 {
		score += 2
	}
	return score
}

func (l *Locator) rowScore(row table.Row) int {
	score := 0
	for _, v := range row.Values() {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if l.classifier.LooksLikeDate(v) {
			score += 3
		}
		if l.classifier.LooksLikeAmount(v) {
			score += 3
		}
		if l.classifier.LooksLikeCurrency(v) {
			score += 2
		}
	}
	if row.NonEmpty() >= 3 {
		score += 5
	}
	if l.lib.BannerKeywords.Contains(patterns.Normalize(row.Text())) {
		score -= 3
	}
	return score
}

func nonBlank(fields []string) int {
	n := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			n++
		}
	}
	return n
}

func cleanLine(line string, firstLine bool) string {
	line = strings.TrimRight(line, "\r")
	if firstLine {
		line = strings.TrimPrefix(line, "\uFEFF")
	}
	return strings.TrimSpace(line)
}

// detectDelimiter picks the most frequent separator on a line.
// Ties keep the earlier entry of the list.
func detectDelimiter(line string) (rune, int) {
	delimiters := []rune{';', '\t', ',', '|'}
	bestDelimiter := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		count := strings.Count(line, string(d))
		if count > bestCount {
			bestCount = count
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount
}

// generateFingerprint hashes the normalized header names so repeated exports
// from the same bank layout can be recognized.
func generateFingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}
	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}
