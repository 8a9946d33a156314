package tokenizer

import "testing"

func testTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	vocab := map[string]int{
		"h": 0, "i": 1, "hi": 2, EndOfText: 3, "Ġ": 4, "Ġhi": 5, "1": 6, "!": 7,
	}
	merges := [][2]string{{"h", "i"}, {"Ġ", "hi"}}
	tok, err := New(vocab, merges)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func TestNewRequiresEndOfText(t *testing.T) {
	if _, err := New(map[string]int{"h": 0}, nil); err == nil {
		t.Fatal("expected error for vocabulary without end-of-text token")
	}
}

func TestEncodePadsToFixedLength(t *testing.T) {
	tok := testTokenizer(t)
	ids, mask := tok.Encode("hi", 5)
	wantIDs := []int{2, 3, 3, 3, 3}
	wantMask := []int{1, 0, 0, 0, 0}
	for i := range wantIDs {
		if ids[i] != wantIDs[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], wantIDs[i])
		}
		if mask[i] != wantMask[i] {
			t.Errorf("mask[%d] = %d, want %d", i, mask[i], wantMask[i])
		}
	}
	if tok.EOS() != 3 {
		t.Errorf("EOS() = %d, want 3", tok.EOS())
	}
}

func TestEncodeTruncates(t *testing.T) {
	tok := testTokenizer(t)
	ids, mask := tok.Encode("hi hi hi hi", 2)
	if len(ids) != 2 || len(mask) != 2 {
		t.Fatalf("got %d ids, %d mask entries, want 2 each", len(ids), len(mask))
	}
	if ids[0] != 2 || ids[1] != 5 {
		t.Errorf("ids = %v, want [2 5]", ids)
	}
	if mask[0] != 1 || mask[1] != 1 {
		t.Errorf("mask = %v, want [1 1]", mask)
	}
}

// Every input must come out at exactly the configured length when a
// maximum is set, regardless of content.
func TestEncodeLengthInvariant(t *testing.T) {
	tok := testTokenizer(t)
	for _, text := range []string{"", "hi", "hi hi hi hi hi hi", "1!", "unknown words here"} {
		ids, mask := tok.Encode(text, 8)
		if len(ids) != 8 || len(mask) != 8 {
			t.Errorf("Encode(%q, 8): got %d ids, %d mask entries", text, len(ids), len(mask))
		}
	}
}

func TestDecode(t *testing.T) {
	tok := testTokenizer(t)
	ids, _ := tok.Encode("hi hi", 0)
	if got := tok.Decode(ids); got != "hi hi" {
		t.Errorf("Decode = %q, want %q", got, "hi hi")
	}
}

func TestSplitPieces(t *testing.T) {
	got := splitPieces("it's 42 here!")
	want := []string{"it", "'s", " 42", " here", "!"}
	if len(got) != len(want) {
		t.Fatalf("splitPieces = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("piece %d = %q, want %q", i, got[i], want[i])
		}
	}
}
