// Package playlist defines media items and keeps the device's assigned
// playlist reconciled from the control plane.
//
// The sync client is deliberately thin: it decodes documents tolerantly,
// hands every usable playlist to the rotation engine (which owns the
// deferred-update policy), and mirrors it into the offline cache so the
// device survives restarts without connectivity.
package playlist
