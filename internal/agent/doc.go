// Package agent composes the signage subsystems into one running device.
//
// The agent enforces the startup contract: cached playback first, network
// later. Everything remote hangs off the network monitor's first online
// transition, so a device with no connectivity still plays its last
// reconciled playlist forever.
package agent
