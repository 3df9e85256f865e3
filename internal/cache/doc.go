// Package cache is the agent's offline mirror of its assigned playlist,
// plus a small key/value preference table (pairing code, fallback identity).
//
// The playlist mirror is replaced atomically on every successful sync, so a
// cold start with no connectivity always finds either the last complete
// playlist or nothing, never a partial write.
package cache
