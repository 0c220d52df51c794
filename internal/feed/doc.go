// Package feed loads the article sequences the replayer drives through the
// pipeline: a CSV dataset export for accelerated replay, or a live RSS/Atom
// feed via gofeed. Both sources emit the same chronologically sorted Article
// slice and derive stable ids and link-based categories the same way.
package feed
