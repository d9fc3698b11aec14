package textutil

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"collapse", "  Quarterly\t report \n draft ", "Quarterly report draft"},
		{"nfc", "Cafe\u0301 menu", "Caf\u00e9 menu"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeLines(t *testing.T) {
	got := NormalizeLines("first   line\n\n   \nsecond\tline  \n")
	if got != "first line\nsecond line" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("héllo wörld", 4); got != "héll" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := Truncate("unbounded", 0); got != "unbounded" {
		t.Fatalf("unexpected truncation %q", got)
	}
}
