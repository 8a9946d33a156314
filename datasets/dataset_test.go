package datasets

import (
	"fmt"
	"testing"
)

func numbered(n int) Split {
	s := make(Split, n)
	for i := range s {
		s[i] = Example{Text: fmt.Sprintf("example %d", i), Label: i % 4}
	}
	return s
}

func TestSubsampleDeterministic(t *testing.T) {
	s := numbered(1000)
	a := Subsample(s, 0.1, 42)
	b := Subsample(s, 0.1, 42)
	if len(a) != 100 || len(b) != 100 {
		t.Fatalf("got lengths %d, %d, want 100", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("subsamples diverge at %d: %v vs %v", i, a[i], b[i])
		}
	}
	c := Subsample(s, 0.1, 43)
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical subsamples")
	}
}

func TestSubsampleDoesNotMutateInput(t *testing.T) {
	s := numbered(50)
	orig := make(Split, len(s))
	copy(orig, s)
	Subsample(s, 0.5, 7)
	for i := range s {
		if s[i] != orig[i] {
			t.Fatalf("input mutated at %d", i)
		}
	}
}

func TestSubsampleBounds(t *testing.T) {
	s := numbered(10)
	if got := Subsample(s, 0, 1); len(got) != 0 {
		t.Errorf("fraction 0: got %d examples", len(got))
	}
	if got := Subsample(s, 2, 1); len(got) != 10 {
		t.Errorf("fraction > 1: got %d examples, want 10", len(got))
	}
}

type fixedEncoder struct{ n int }

func (f fixedEncoder) Encode(text string, maxLen int) ([]int, []int) {
	ids := make([]int, maxLen)
	mask := make([]int, maxLen)
	for i := 0; i < f.n && i < maxLen; i++ {
		ids[i] = 1
		mask[i] = 1
	}
	return ids, mask
}

func TestTokenize(t *testing.T) {
	s := numbered(3)
	enc := Tokenize(s, fixedEncoder{n: 2}, 4)
	if len(enc) != 3 {
		t.Fatalf("got %d encoded examples, want 3", len(enc))
	}
	for i, e := range enc {
		if e.Example != s[i] {
			t.Errorf("example %d not carried through", i)
		}
		if len(e.IDs) != 4 || len(e.Mask) != 4 {
			t.Errorf("example %d: ids/mask length %d/%d, want 4/4", i, len(e.IDs), len(e.Mask))
		}
	}
}
