// Package replay implements the paced feed replayer: a cancellable
// background run that replays a chronological article feed at an accelerated
// pace, advancing the simulated clock to each article's publish time before
// handing it to the scoring engine. Start is idempotent; Stop interrupts the
// pacing delay and waits for an orderly exit. Article processing itself is
// never interrupted: an article is either fully scored or never started.
package replay
