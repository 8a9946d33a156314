package tokenizer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// EndOfText is the GPT-2 end-of-text marker. It doubles as the padding
// token because the base vocabulary has no dedicated pad symbol.
const EndOfText = "<|endoftext|>"

type pair struct {
	a, b string
}

// Tokenizer encodes text into GPT-2 token ids.
type Tokenizer struct {
	vocab   map[string]int
	ids     map[int]string
	ranks   map[pair]int
	byteEnc [256]rune
	byteDec map[rune]byte
	eos     int
}

// Load reads a GPT-2 vocabulary and merge list from disk.
func Load(vocabPath, mergesPath string) (*Tokenizer, error) {
	raw, err := os.ReadFile(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}
	var vocab map[string]int
	if err := json.Unmarshal(raw, &vocab); err != nil {
		return nil, fmt.Errorf("tokenizer: parsing %s: %w", vocabPath, err)
	}

	f, err := os.Open(mergesPath)
	if err != nil {
		return nil, fmt.Errorf("tokenizer: %w", err)
	}
	defer f.Close()

	var merges [][2]string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\n")
		if line == "" || strings.HasPrefix(line, "#version") {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("tokenizer: malformed merge line %q", line)
		}
		merges = append(merges, [2]string{parts[0], parts[1]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("tokenizer: reading %s: %w", mergesPath, err)
	}
	return New(vocab, merges)
}

// New builds a tokenizer from an in-memory vocabulary and ordered merge
// list. Merge rank is the list position.
func New(vocab map[string]int, merges [][2]string) (*Tokenizer, error) {
	eos, ok := vocab[EndOfText]
	if !ok {
		return nil, fmt.Errorf("tokenizer: vocabulary has no %s token", EndOfText)
	}
	t := &Tokenizer{
		vocab:   vocab,
		ids:     make(map[int]string, len(vocab)),
		ranks:   make(map[pair]int, len(merges)),
		byteDec: make(map[rune]byte, 256),
		eos:     eos,
	}
	for tok, id := range vocab {
		t.ids[id] = tok
	}
	for rank, m := range merges {
		t.ranks[pair{m[0], m[1]}] = rank
	}
	t.buildByteTable()
	return t, nil
}

// EOS returns the end-of-text (and padding) token id.
func (t *Tokenizer) EOS() int { return t.eos }

// VocabSize returns the number of entries in the vocabulary.
func (t *Tokenizer) VocabSize() int { return len(t.vocab) }

// Encode tokenizes text into exactly maxLen ids when maxLen > 0:
// overlong input is truncated, short input padded with EOS. The mask
// is 1 for real tokens and 0 for padding. With maxLen <= 0 the full
// unpadded sequence is returned.
func (t *Tokenizer) Encode(text string, maxLen int) (ids, mask []int) {
	for _, piece := range splitPieces(text) {
		ids = append(ids, t.bpe(piece)...)
		if maxLen > 0 && len(ids) >= maxLen {
			break
		}
	}
	if maxLen <= 0 {
		mask = make([]int, len(ids))
		for i := range mask {
			mask[i] = 1
		}
		return ids, mask
	}
	if len(ids) > maxLen {
		ids = ids[:maxLen]
	}
	mask = make([]int, maxLen)
	for i := range ids {
		mask[i] = 1
	}
	for len(ids) < maxLen {
		ids = append(ids, t.eos)
	}
	return ids, mask
}

// Decode maps ids back to text. Padding EOS tokens decode to the
// end-of-text marker like any other id; callers trim as needed.
func (t *Tokenizer) Decode(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		tok, ok := t.ids[id]
		if !ok {
			continue
		}
		if tok == EndOfText {
			sb.WriteString(tok)
			continue
		}
		for _, r := range tok {
			if b, ok := t.byteDec[r]; ok {
				sb.WriteByte(b)
			}
		}
	}
	return sb.String()
}

// bpe encodes one pre-split piece of text.
func (t *Tokenizer) bpe(piece string) []int {
	word := make([]string, 0, len(piece))
	for _, b := range []byte(piece) {
		word = append(word, string(t.byteEnc[b]))
	}
	for len(word) > 1 {
		best, bestRank := -1, -1
		for i := 0; i < len(word)-1; i++ {
			if rank, ok := t.ranks[pair{word[i], word[i+1]}]; ok {
				if bestRank == -1 || rank < bestRank {
					best, bestRank = i, rank
				}
			}
		}
		if best == -1 {
			break
		}
		merged := word[best] + word[best+1]
		word = append(word[:best+1], word[best+2:]...)
		word[best] = merged
	}
	ids := make([]int, 0, len(word))
	for _, tok := range word {
		if id, ok := t.vocab[tok]; ok {
			ids = append(ids, id)
		} else {
			ids = append(ids, t.eos)
		}
	}
	return ids
}

// buildByteTable constructs the reversible byte-to-unicode mapping used
// by GPT-2 so that arbitrary bytes become printable vocabulary
// characters.
func (t *Tokenizer) buildByteTable() {
	printable := func(b int) bool {
		return (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
	}
	n := 0
	for b := 0; b < 256; b++ {
		if printable(b) {
			t.byteEnc[b] = rune(b)
		} else {
			t.byteEnc[b] = rune(256 + n)
			n++
		}
		t.byteDec[t.byteEnc[b]] = byte(b)
	}
}

// splitPieces approximates the GPT-2 pre-tokenization pattern: common
// contractions, runs of letters, digits and other symbols each with an
// optional leading space, and remaining whitespace runs.
func splitPieces(text string) []string {
	var pieces []string
	runes := []rune(text)
	i := 0
	contractions := []string{"'s", "'t", "'re", "'ve", "'m", "'ll", "'d"}
	for i < len(runes) {
		// contraction suffixes bind to the previous word
		if runes[i] == '\'' {
			matched := false
			rest := string(runes[i:])
			for _, c := range contractions {
				if strings.HasPrefix(rest, c) {
					pieces = append(pieces, c)
					i += len([]rune(c))
					matched = true
					break
				}
			}
			if matched {
				continue
			}
		}
		start := i
		hasSpace := runes[i] == ' '
		if hasSpace && i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			i++
		}
		switch {
		case i < len(runes) && unicode.IsLetter(runes[i]):
			for i < len(runes) && unicode.IsLetter(runes[i]) {
				i++
			}
		case i < len(runes) && unicode.IsNumber(runes[i]):
			for i < len(runes) && unicode.IsNumber(runes[i]) {
				i++
			}
		case i < len(runes) && unicode.IsSpace(runes[i]):
			for i < len(runes) && unicode.IsSpace(runes[i]) {
				i++
			}
		default:
			for i < len(runes) && !unicode.IsSpace(runes[i]) && !unicode.IsLetter(runes[i]) && !unicode.IsNumber(runes[i]) && runes[i] != '\'' {
				i++
			}
			if i == start+boolToInt(hasSpace) { // lone apostrophe with no contraction
				i++
			}
		}
		pieces = append(pieces, string(runes[start:i]))
	}
	return pieces
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
