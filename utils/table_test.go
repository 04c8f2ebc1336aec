package utils

import "testing"

func TestFormatTablePadsByDisplayWidth(t *testing.T) {
	got := FormatTable(
		[]string{"name", "n"},
		[][]string{{"救援", "1"}, {"ab", "22"}},
	)

	want := "name  n\n" +
		"----  --\n" +
		"救援  1\n" +
		"ab    22\n"
	if got != want {
		t.Errorf("FormatTable() =\n%s\nwant\n%s", got, want)
	}
}

func TestFormatTableShortRows(t *testing.T) {
	got := FormatTable([]string{"a", "b"}, [][]string{{"x"}})

	want := "a  b\n" +
		"-  -\n" +
		"x  \n"
	if got != want {
		t.Errorf("FormatTable() = %q, want %q", got, want)
	}
}
