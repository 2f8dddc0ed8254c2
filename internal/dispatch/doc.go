// Package dispatch translates discrete user actions into an immediate
// overlay mutation plus an asynchronous persistence call, and
// compensates when persistence fails.
//
// Every operation follows the same shape: apply locally first (the view
// updates without waiting on the network), then persist, then either
// confirm (replace the placeholder with the server-assigned entity) or
// roll the local mutation back and surface the error to the caller.
// The dispatcher never blocks the caller's view on a round-trip; it
// suspends only at the persistence boundary.
package dispatch
