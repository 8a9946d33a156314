// Package lora implements low-rank adaptation of frozen linear
// projections: the frozen weight W is left untouched and a trainable
// delta (alpha/r)·A·B is added alongside it, so optimization touches
// only the small adapter matrices.
package lora
