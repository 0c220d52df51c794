// Package model defines the data records shared across flashwire: the raw
// Article produced by feed sources and the ScoredArticle produced by the
// scoring engine. Both are immutable after creation; a later re-score of the
// same article id replaces the stored record wholesale, never edits it.
package model
