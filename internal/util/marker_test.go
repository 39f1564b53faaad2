package util

import "testing"

func TestParseListMarker(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		text    string
		ordinal int
		repeat  int
	}{
		{name: "bullet", input: "• Hemograma completo", text: "Hemograma completo"},
		{name: "dash bullet", input: "- TSH", text: "TSH"},
		{name: "enumeration paren", input: "1) Glicose", text: "Glicose", ordinal: 1},
		{name: "enumeration padded dash", input: "01 - Ureia", text: "Ureia", ordinal: 1},
		{name: "enumeration dot", input: "12. Creatinina", text: "Creatinina", ordinal: 12},
		{name: "repeat suffix", input: "3) Urocultura (2x)", text: "Urocultura", ordinal: 3, repeat: 2},
		{name: "vitamin kept", input: "Vitamina D", text: "Vitamina D"},
		{name: "t4 kept", input: "T4 livre", text: "T4 livre"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseListMarker(tc.input)
			if got.Text != tc.text {
				t.Fatalf("text got %q want %q", got.Text, tc.text)
			}
			if tc.ordinal == 0 && got.Ordinal != nil {
				t.Fatalf("unexpected ordinal %d", *got.Ordinal)
			}
			if tc.ordinal != 0 && (got.Ordinal == nil || *got.Ordinal != tc.ordinal) {
				t.Fatalf("ordinal got %v want %d", got.Ordinal, tc.ordinal)
			}
			if tc.repeat == 0 && got.Repeat != nil {
				t.Fatalf("unexpected repeat %d", *got.Repeat)
			}
			if tc.repeat != 0 && (got.Repeat == nil || *got.Repeat != tc.repeat) {
				t.Fatalf("repeat got %v want %d", got.Repeat, tc.repeat)
			}
		})
	}
}
