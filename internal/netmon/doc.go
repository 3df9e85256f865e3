// Package netmon watches network reachability for the agent.
//
// Playback never depends on connectivity; the monitor exists so the pairing
// and sync layers know when to attempt remote work and when to fall back to
// the local cache.
package netmon
