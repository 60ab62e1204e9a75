// Package aggregates defines the write boundaries of the training pipeline
// whose invariants must hold atomically, e.g. "at most one active model".
package aggregates
