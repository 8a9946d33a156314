package safetensors

import (
	"bytes"
	"encoding/binary"
	"testing"

	"gorgonia.org/tensor"
)

func TestRoundTrip(t *testing.T) {
	in := map[string]*tensor.Dense{
		"a.weight": tensor.New(tensor.WithShape(2, 3), tensor.WithBacking([]float32{1, 2, 3, 4, 5, 6})),
		"a.bias":   tensor.New(tensor.WithShape(3), tensor.WithBacking([]float32{-1, 0, 1})),
	}
	var buf bytes.Buffer
	if err := Write(&buf, in); err != nil {
		t.Fatal(err)
	}
	out, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d tensors, want %d", len(out), len(in))
	}
	for name, want := range in {
		got, ok := out[name]
		if !ok {
			t.Fatalf("missing tensor %q", name)
		}
		if !got.Shape().Eq(want.Shape()) {
			t.Errorf("%s: shape %v, want %v", name, got.Shape(), want.Shape())
		}
		gd := got.Data().([]float32)
		wd := want.Data().([]float32)
		for i := range wd {
			if gd[i] != wd[i] {
				t.Errorf("%s[%d] = %v, want %v", name, i, gd[i], wd[i])
			}
		}
	}
}

func TestReadRejectsGarbage(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(1<<40))
	if _, err := Read(&buf); err == nil {
		t.Fatal("expected error for implausible header length")
	}

	buf.Reset()
	binary.Write(&buf, binary.LittleEndian, uint64(4))
	buf.WriteString("nope")
	if _, err := Read(&buf); err == nil {
		t.Fatal("expected error for malformed JSON header")
	}
}

func TestReadRejectsNonF32(t *testing.T) {
	header := `{"x":{"dtype":"F16","shape":[1],"data_offsets":[0,2]}}`
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, uint64(len(header)))
	buf.WriteString(header)
	buf.Write([]byte{0, 0})
	if _, err := Read(&buf); err == nil {
		t.Fatal("expected error for unsupported dtype")
	}
}
