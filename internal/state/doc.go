// Package state defines the value model shared by every store subsystem:
// the state tree, mutation and action records, dotted-path reads, deep
// cloning, and the module contract.
//
// State values are plain data: maps keyed by string, slices, strings,
// booleans, and numbers. Anything that round-trips through JSON is a valid
// sub-state. Modules own the shape of their slice; the rest of the store
// treats sub-states as opaque values.
package state
