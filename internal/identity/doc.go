// Package identity resolves the stable device identifier that keys every
// control-plane document for this device.
//
// Identity must survive restarts, reinstalls, and offline periods, so the
// provider prefers hardware-derived sources (configured serial, machine-id,
// DMI product UUID) and only generates a random identifier as a last resort,
// persisting it in the local preference store so it never changes again.
package identity
