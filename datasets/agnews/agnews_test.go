package agnews

import (
	"strings"
	"testing"
)

const sample = `"3","Wall St. Bears Claw Back Into the Black","Short-sellers see green again."
"4","New Chip Doubles Speed","Researchers announce a breakthrough."
"1","Peace Talks Resume","Delegations met on Monday."
"2","Local Team Wins Final","A dramatic overtime finish."
`

func TestParse(t *testing.T) {
	s, err := parse(strings.NewReader(sample))
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 4 {
		t.Fatalf("got %d examples, want 4", len(s))
	}
	wantLabels := []int{Business, SciTech, World, Sports}
	for i, want := range wantLabels {
		if s[i].Label != want {
			t.Errorf("example %d: label %d, want %d", i, s[i].Label, want)
		}
	}
	if s[0].Text != "Wall St. Bears Claw Back Into the Black Short-sellers see green again." {
		t.Errorf("unexpected joined text: %q", s[0].Text)
	}
}

func TestParseRejectsBadClass(t *testing.T) {
	for _, bad := range []string{
		`"5","title","desc"` + "\n",
		`"0","title","desc"` + "\n",
		`"x","title","desc"` + "\n",
	} {
		if _, err := parse(strings.NewReader(bad)); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestLoadUnknownSplit(t *testing.T) {
	if _, err := Load(t.TempDir(), "validation"); err == nil {
		t.Fatal("expected error for unknown split")
	}
}

func TestLabels(t *testing.T) {
	if NumLabels != len(Labels) {
		t.Fatalf("NumLabels = %d, Labels has %d entries", NumLabels, len(Labels))
	}
	if Labels[World] != "World" || Labels[SciTech] != "Sci/Tech" {
		t.Errorf("unexpected label names: %v", Labels)
	}
}
