// Package tokenizer implements the GPT-2 byte-level BPE tokenizer.
//
// Vocabularies are loaded from the vocab.json and merges.txt files
// shipped with GPT-2 checkpoints. GPT-2 has no dedicated padding
// symbol, so fixed-length encoding pads with the end-of-text token.
package tokenizer
