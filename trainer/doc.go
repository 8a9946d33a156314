// Package trainer runs the adapter fine-tuning loop: epoch-wise
// shuffled mini-batches with Adam over the trainable parameters, a
// validation pass at every epoch boundary, per-epoch checkpoints and
// retention of the lowest-validation-loss adapter state.
package trainer
