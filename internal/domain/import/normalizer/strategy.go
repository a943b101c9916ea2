// Package normalizer classifies raw statement cells and converts them into
// canonical amounts, dates, currency codes and cleaned titles.
package normalizer

// Strategy is one named attempt at converting raw cell text into T.
type Strategy[T any] struct {
	Name  string
	Apply func(string) (T, bool)
}

// FirstMatch runs the strategies in order and returns the first success
// together with the name of the strategy that produced it.
func FirstMatch[T any](s string, strategies []Strategy[T]) (T, string, bool) {
	for _, st := range strategies {
		if v, ok := st.Apply(s); ok {
			return v, st.Name, true
		}
	}
	var zero T
	return zero, "", false
}
