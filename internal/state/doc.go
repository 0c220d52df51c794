// Package state holds the replay's mutable aggregates behind one Store
// contract with two interchangeable implementations: the dedup hash set,
// per-topic velocity windows, the breaking-news map, counters and clock
// fields.
//
// Memory keeps everything in native containers guarded by a single RWMutex;
// it is the zero-dependency default for a single process.
//
// Redis mirrors the same semantics on a shared backend so multiple readers
// can follow one replay: windows are sorted sets scored by entry timestamp
// (ascending order and range pruning come from the backend's own ordering),
// the dedup filter is a native set, and breaking entries are JSON strings
// that round-trip losslessly through one encode/decode pair.
//
// RunJanitor drives the periodic TTL cleanup against either implementation.
package state
