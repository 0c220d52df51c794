// Package scoring computes the composite breaking-news score.
//
// score.go provides the pure component functions (keyword urgency, topic
// burst velocity, source-category priority and recency decay, each clamped
// to [0,1]) and the fixed weighted combination:
// keyword(40%) + velocity(35%) + category(15%) + recency(10%), with articles
// at or above 0.50 flagged as breaking.
//
// engine.go provides the stateful Engine that gates each article through the
// dedup filter, mutates the topic window (append, then prune-and-count; the
// side effect is part of the contract, not hidden), records breaking items
// and advances the counters. Engine.now is injectable so tests control
// DetectedAt without sleeping.
package scoring
