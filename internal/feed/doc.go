// Package feed moves authoritative snapshots from a store to overlay
// sessions. A mutation publishes a refresh notice; the feed loop reacts by
// pulling a fresh snapshot and handing it to the session's reconciler.
//
// Notices travel either in-process (LocalNotifier) or across processes
// through Redis pub/sub (RedisNotifier). The websocket hub and client pair
// extends the same flow to remote sessions.
package feed
