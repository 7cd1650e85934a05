package sanitizer

import "testing"

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trim spaces", input: "  bring the workbook  ", want: "bring the workbook"},
		{name: "multiple spaces between words", input: "bring    the workbook", want: "bring the workbook"},
		{name: "tabs and newlines", input: "chapter\t\n3", want: "chapter 3"},
		{name: "empty string", input: "", want: ""},
		{name: "only whitespace", input: "   \t\n  ", want: ""},
		{name: "unicode", input: " Révision   d'algèbre ", want: "Révision d'algèbre"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TrimAndNormalize(tt.input); got != tt.want {
				t.Errorf("TrimAndNormalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeCurrency(t *testing.T) {
	tests := map[string]string{
		"xaf":   "XAF",
		" Eur ": "EUR",
		"":      "",
		"XAF":   "XAF",
	}
	for input, want := range tests {
		if got := NormalizeCurrency(input); got != want {
			t.Errorf("NormalizeCurrency(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeReference(t *testing.T) {
	tests := map[string]string{
		" MP231004.1532.A12345 ": "MP231004.1532.A12345",
		"MP 2310 04":             "MP231004",
		"":                       "",
	}
	for input, want := range tests {
		if got := NormalizeReference(input); got != want {
			t.Errorf("NormalizeReference(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizersAreIdempotent(t *testing.T) {
	inputs := []string{"  a  b ", "xaf", "MP 23 10", "\tstud-1 "}
	normalizers := map[string]Strategy{
		"TrimAndNormalize":   TrimAndNormalize,
		"NormalizeID":        NormalizeID,
		"NormalizeCurrency":  NormalizeCurrency,
		"NormalizeReference": NormalizeReference,
	}

	for name, fn := range normalizers {
		for _, in := range inputs {
			once := fn(in)
			if twice := fn(once); twice != once {
				t.Errorf("%s not idempotent for %q: %q then %q", name, in, once, twice)
			}
		}
	}
}
