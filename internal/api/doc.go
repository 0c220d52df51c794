// Package api exposes the read-only projections of the state store (the
// breaking-news list, topic activity, and run statistics) plus the
// replay-control and admin routes. Mutating routes can be protected with an
// API key configured via server.auth.
package api
