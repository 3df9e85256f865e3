// Package pairing pairs the device with an operator account.
//
// On first start the device generates a short code, registers itself on the
// control plane, and displays the code until an operator claims it. The
// machine watches both the device-keyed record and the legacy code-keyed
// path, heartbeats while paired, and clears the local playlist mirror when
// the pairing is revoked.
//
// The pairing code is resolved idempotently: once persisted locally it never
// changes, so a device that restarts mid-pairing keeps showing the same code.
package pairing
