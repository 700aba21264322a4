package config

import "testing"

func TestParseList(t *testing.T) {
	cases := map[string][]string{
		"":              nil,
		"112":           {"112"},
		"112,911":       {"112", "911"},
		"112, 911 , ":   {"112", "911"},
		" , ":           nil,
	}
	for in, want := range cases {
		got := parseList(in)
		if len(got) != len(want) {
			t.Fatalf("parseList(%q) = %v, want %v", in, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("parseList(%q) = %v, want %v", in, got, want)
			}
		}
	}
}

func TestAtoiOrDefault(t *testing.T) {
	if got := AtoiOrDefault("250", 100); got != 250 {
		t.Fatalf("AtoiOrDefault(250) = %d, want 250", got)
	}
	if got := AtoiOrDefault(" 250 ", 100); got != 250 {
		t.Fatalf("AtoiOrDefault(\" 250 \") = %d, want 250", got)
	}
	if got := AtoiOrDefault("not-a-number", 100); got != 100 {
		t.Fatalf("AtoiOrDefault(garbage) = %d, want default 100", got)
	}
}
