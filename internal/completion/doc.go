// Package completion relays one chat turn from an upstream model to a client
// and commits the finished turn to the conversation cache.
//
// A request moves through Idle, HistoryLoaded, Streaming, Committing and Done.
// Client cancellation ends in Aborted; any store, upstream or decode error ends
// in Failed. Only Done writes to the store, and it writes exactly once, after
// the upstream terminal marker and before the client sees its final event.
//
// With Options.SerializeSessions, turns on the same session run one after
// another; otherwise concurrent turns race and the last commit wins.
package completion
