package diff

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func testEngine() *Engine {
	opts := DefaultOptions()
	opts.Timeout = 0
	return NewEngine(opts)
}

var roundTripPairs = []struct {
	name string
	a, b string
}{
	{"empty to text", "", "hello"},
	{"text to empty", "hello", ""},
	{"case fix", "i went to the store yesterday.", "I went to the store yesterday."},
	{"insertion", "The cat sat.", "The black cat sat."},
	{"deletion", "It is very very good.", "It is very good."},
	{"replacement", "Their going too fast.", "They're going too fast."},
	{"unicode", "naïve café crème", "naive café crème brûlée"},
	{"unrelated", "abcdef", "uvwxyz"},
	{"multiline", "line one\nline two\nline three\n", "line one\nline 2\nline three\nline four\n"},
}

func TestDiffRoundTrip(t *testing.T) {
	e := testEngine()
	for _, tc := range roundTripPairs {
		t.Run(tc.name, func(t *testing.T) {
			for _, diffs := range [][]Diff{e.Diff(tc.a, tc.b), e.DiffRaw(tc.a, tc.b)} {
				if got := Text1(diffs); got != tc.a {
					t.Fatalf("old side: got %q, want %q", got, tc.a)
				}
				if got := Text2(diffs); got != tc.b {
					t.Fatalf("new side: got %q, want %q", got, tc.b)
				}
			}
		})
	}
}

func TestDiffLineModeRoundTrip(t *testing.T) {
	var a, b strings.Builder
	for i := 0; i < 40; i++ {
		a.WriteString("This is sentence number ")
		a.WriteString(strings.Repeat("x", i%7))
		a.WriteString(" in the document.\n")
		if i%9 == 0 {
			b.WriteString("This was sentence number ")
		} else {
			b.WriteString("This is sentence number ")
		}
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString(" in the document.\n")
		if i == 20 {
			b.WriteString("An inserted line.\n")
		}
	}
	e := NewEngine(DefaultOptions())
	diffs := e.Diff(a.String(), b.String())
	if Text1(diffs) != a.String() || Text2(diffs) != b.String() {
		t.Fatal("line-mode diff does not reconstruct its inputs")
	}
	got, err := ApplyChanges(a.String(), e.Changes(a.String(), b.String()))
	if err != nil {
		t.Fatalf("ApplyChanges: %v", err)
	}
	if got != b.String() {
		t.Fatal("applying changes did not reproduce the corrected text")
	}
}

func TestDiffIdentical(t *testing.T) {
	e := testEngine()
	if d := e.Diff("", ""); d != nil {
		t.Fatalf("expected nil diff for empty inputs, got %v", d)
	}
	want := []Diff{{OpEqual, "same text"}}
	if d := e.Diff("same text", "same text"); !cmp.Equal(d, want) {
		t.Fatalf("unexpected diff: %s", cmp.Diff(want, d))
	}
}

func TestDiffSubstringShortcut(t *testing.T) {
	e := testEngine()
	got := e.DiffRaw("abc", "xabcy")
	want := []Diff{{OpInsert, "x"}, {OpEqual, "abc"}, {OpInsert, "y"}}
	if !cmp.Equal(got, want) {
		t.Fatalf("unexpected diff: %s", cmp.Diff(want, got))
	}
}

func TestDiffDeadlineDegrades(t *testing.T) {
	e := testEngine()
	got := e.DiffDeadline("cat", "map", time.Now().Add(-time.Second), false)
	want := []Diff{{OpDelete, "cat"}, {OpInsert, "map"}}
	if !cmp.Equal(got, want) {
		t.Fatalf("expired deadline should degrade to delete+insert: %s", cmp.Diff(want, got))
	}
}

func TestDiffBisectMinimal(t *testing.T) {
	e := testEngine()
	got := e.DiffRaw("cat", "map")
	want := []Diff{{OpDelete, "c"}, {OpInsert, "m"}, {OpEqual, "a"}, {OpDelete, "t"}, {OpInsert, "p"}}
	if !cmp.Equal(got, want) {
		t.Fatalf("unexpected diff: %s", cmp.Diff(want, got))
	}
}

func TestCommonPrefixSuffix(t *testing.T) {
	cases := []struct {
		a, b           string
		prefix, suffix int
	}{
		{"abc", "xyz", 0, 0},
		{"1234abcdef", "1234xyz", 4, 0},
		{"abcdef1234", "xyz1234", 0, 4},
		{"1234", "1234xyz", 4, 0},
		{"", "abc", 0, 0},
		{"héllo wörld", "héllo world", 7, 3},
	}
	for _, tc := range cases {
		a, b := []rune(tc.a), []rune(tc.b)
		if got := commonPrefixLen(a, b); got != tc.prefix {
			t.Errorf("prefix(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.prefix)
		}
		if got := commonSuffixLen(a, b); got != tc.suffix {
			t.Errorf("suffix(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.suffix)
		}
	}
}

func TestCommonOverlap(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"", "abcd", 0},
		{"abc", "abcd", 3},
		{"123456", "abcd", 0},
		{"123456xxx", "xxxabcd", 3},
		{"fi", "ﬁi", 0},
	}
	for _, tc := range cases {
		if got := commonOverlapLen([]rune(tc.a), []rune(tc.b)); got != tc.want {
			t.Errorf("overlap(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestLevenshteinAndXIndex(t *testing.T) {
	diffs := []Diff{{OpDelete, "abc"}, {OpInsert, "1234"}, {OpEqual, "xyz"}}
	if got := Levenshtein(diffs); got != 4 {
		t.Fatalf("Levenshtein = %d, want 4", got)
	}
	diffs = []Diff{{OpEqual, "xyz"}, {OpDelete, "abc"}, {OpInsert, "1234"}}
	if got := Levenshtein(diffs); got != 4 {
		t.Fatalf("Levenshtein = %d, want 4", got)
	}

	if got := XIndex([]Diff{{OpDelete, "a"}, {OpInsert, "1234"}, {OpEqual, "xyz"}}, 2); got != 5 {
		t.Fatalf("XIndex translation = %d, want 5", got)
	}
	if got := XIndex([]Diff{{OpEqual, "a"}, {OpDelete, "1234"}, {OpEqual, "xyz"}}, 3); got != 1 {
		t.Fatalf("XIndex inside deletion = %d, want 1", got)
	}
}

func TestEngineConcurrentUse(t *testing.T) {
	e := NewEngine(DefaultOptions())
	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for _, tc := range roundTripPairs {
				d := e.Diff(tc.a, tc.b)
				if Text1(d) != tc.a || Text2(d) != tc.b {
					t.Errorf("concurrent diff of %q broke round trip", tc.name)
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
