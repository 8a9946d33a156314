// Package safetensors reads and writes the safetensors weight format
// used by the Hugging Face Hub: an 8-byte little-endian header length,
// a JSON header mapping tensor names to dtype, shape and byte offsets,
// then the raw tensor data.
package safetensors
