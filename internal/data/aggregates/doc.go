// Package aggregates implements the write boundaries of internal/domain/aggregates.
//
// Each aggregate composes table repos from internal/data/repos and runs its
// writes inside one TxRunner transaction, mapping failures to coded errors.
package aggregates
