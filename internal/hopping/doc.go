// Package hopping holds the client-side channel-hopping controls: a cooldown
// that briefly disables switching after every channel change, and a persisted
// ledger that locks a user out for a while after rapid hopping.
//
// Both are advisory UX state owned by the client. No server reads or enforces
// them; a client that skips them is only stopped by the upstream backend.
package hopping
