package dates

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeRecognizedDates(t *testing.T) {
	t.Parallel()

	n := Ukrainian()
	cases := map[string]string{
		"створено 3 травня":      "03.05",
		"створено 12 грудня":     "12.12",
		"створено 1 січня":       "01.01",
		"створено  7  листопада": "07.11",
		"28 лютого":              "28.02",
	}
	for raw, want := range cases {
		require.Equal(t, want, n.Normalize(raw), raw)
	}
}

func TestNormalizeFallsBackToRaw(t *testing.T) {
	t.Parallel()

	n := Ukrainian()
	for _, raw := range []string{
		"",
		"створено сьогодні",
		"створено 3 травня 2024",
		"створено 3 may",
		"оновлено 3 травня",
		"3",
	} {
		require.Equal(t, raw, n.Normalize(raw), raw)
	}
}

func TestNormalizeEveryMonth(t *testing.T) {
	t.Parallel()

	n := Ukrainian()
	require.Len(t, n.Months, 12)
	for name, number := range n.Months {
		require.Equal(t, "09."+number, n.Normalize(UkrainianPrefix+"9 "+name))
	}
}

func TestNormalizeInjectedTable(t *testing.T) {
	t.Parallel()

	n := Normalizer{Prefix: "created ", Months: MonthTable{"May": "05"}}
	require.Equal(t, "03.05", n.Normalize("created 3 May"))
	require.Equal(t, "created 3 June", n.Normalize("created 3 June"))
}
