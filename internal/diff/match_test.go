package diff

import "testing"

func TestMatch(t *testing.T) {
	opts := DefaultOptions()
	opts.MatchDistance = 100
	opts.MatchThreshold = 0.5
	e := NewEngine(opts)

	cases := []struct {
		name          string
		text, pattern string
		loc, want     int
	}{
		{"equality", "abcdef", "abcdef", 1000, 0},
		{"empty text", "", "abcdef", 1, -1},
		{"exact at loc", "abcdef", "de", 3, 3},
		{"exact nearby", "abcdefghijk", "fgh", 5, 5},
		{"exact before loc", "abcdefghijk", "fgh", 0, 5},
		{"fuzzy", "abcdefghijk", "efxhi", 0, 4},
		{"fuzzy long", "abcdefghijk", "cdefxyhijk", 5, 2},
		{"no match", "abcdefghijk", "bxy", 1, -1},
		{"overflow", "123456789xx0", "3456789x0", 2, 2},
		{"long pattern exact", "the quick brown fox jumps over the lazy dog", "quick brown fox jumps over the lazy", 0, 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := e.Match(tc.text, tc.pattern, tc.loc); got != tc.want {
				t.Fatalf("Match(%q, %q, %d) = %d, want %d", tc.text, tc.pattern, tc.loc, got, tc.want)
			}
		})
	}
}

func TestMatchThreshold(t *testing.T) {
	strict := DefaultOptions()
	strict.MatchDistance = 100
	strict.MatchThreshold = 0.3
	loose := strict
	loose.MatchThreshold = 0.4

	text, pattern := "abcdefghijk", "efxyhi"
	if got := NewEngine(loose).Match(text, pattern, 1); got != 4 {
		t.Fatalf("loose threshold: got %d, want 4", got)
	}
	if got := NewEngine(strict).Match(text, pattern, 1); got != -1 {
		t.Fatalf("strict threshold: got %d, want -1", got)
	}
}
