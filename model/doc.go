// Package model assembles a GPT-2 backbone with a classification head
// as a gorgonia compute graph. Backbone weights enter the graph with
// their values bound and stay out of the trainable set, so they remain
// frozen; only the injected low-rank adapters and the head are
// learnable.
package model
