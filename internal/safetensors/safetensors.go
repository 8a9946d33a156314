package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"

	"gorgonia.org/tensor"
)

// maxHeaderSize bounds the JSON header so a corrupt file cannot make us
// allocate gigabytes.
const maxHeaderSize = 100 << 20

type entry struct {
	Dtype   string `json:"dtype"`
	Shape   []int  `json:"shape"`
	Offsets [2]int `json:"data_offsets"`
}

// Load reads all tensors from a safetensors file. Only F32 tensors are
// supported, which covers the GPT-2 checkpoints and the adapter
// artifacts this module produces.
func Load(path string) (map[string]*tensor.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a safetensors stream.
func Read(r io.Reader) (map[string]*tensor.Dense, error) {
	var hlen uint64
	if err := binary.Read(r, binary.LittleEndian, &hlen); err != nil {
		return nil, fmt.Errorf("safetensors: reading header length: %w", err)
	}
	if hlen == 0 || hlen > maxHeaderSize {
		return nil, fmt.Errorf("safetensors: implausible header length %d", hlen)
	}
	header := make([]byte, hlen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("safetensors: reading header: %w", err)
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(header, &entries); err != nil {
		return nil, fmt.Errorf("safetensors: malformed header: %w", err)
	}

	type named struct {
		name string
		e    entry
	}
	var ordered []named
	for name, raw := range entries {
		if name == "__metadata__" {
			continue
		}
		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
		}
		if e.Dtype != "F32" {
			return nil, fmt.Errorf("safetensors: tensor %q has unsupported dtype %s", name, e.Dtype)
		}
		ordered = append(ordered, named{name, e})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].e.Offsets[0] < ordered[j].e.Offsets[0] })

	out := make(map[string]*tensor.Dense, len(ordered))
	pos := 0
	for _, n := range ordered {
		start, end := n.e.Offsets[0], n.e.Offsets[1]
		if start != pos || end < start {
			return nil, fmt.Errorf("safetensors: tensor %q has bad offsets [%d,%d]", n.name, start, end)
		}
		numel := 1
		for _, d := range n.e.Shape {
			numel *= d
		}
		if end-start != numel*4 {
			return nil, fmt.Errorf("safetensors: tensor %q: %d bytes for %d elements", n.name, end-start, numel)
		}
		raw := make([]byte, end-start)
		if _, err := io.ReadFull(r, raw); err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q data: %w", n.name, err)
		}
		data := make([]float32, numel)
		for i := range data {
			data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
		shape := n.e.Shape
		if len(shape) == 0 {
			shape = []int{1}
		}
		out[n.name] = tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
		pos = end
	}
	return out, nil
}

// Save writes tensors to path in safetensors format. Tensor data is
// laid out in sorted name order so output is reproducible.
func Save(path string, tensors map[string]*tensor.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := Write(f, tensors); err != nil {
		return err
	}
	return f.Close()
}

// Write encodes tensors to w.
func Write(w io.Writer, tensors map[string]*tensor.Dense) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]entry, len(names))
	pos := 0
	for _, name := range names {
		t := tensors[name]
		if t.Dtype() != tensor.Float32 {
			return fmt.Errorf("safetensors: tensor %q: only float32 supported", name)
		}
		n := t.Shape().TotalSize()
		header[name] = entry{
			Dtype:   "F32",
			Shape:   append([]int(nil), t.Shape()...),
			Offsets: [2]int{pos, pos + n*4},
		}
		pos += n * 4
	}
	hdr, err := json.Marshal(header)
	if err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint64(len(hdr))); err != nil {
		return err
	}
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	buf := make([]byte, 4)
	for _, name := range names {
		data := tensors[name].Data().([]float32)
		for _, v := range data {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
	}
	return nil
}
