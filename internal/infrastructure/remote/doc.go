// Package remote provides the agent's connection to the control plane.
//
// The control plane is modelled as a document store over MQTT retained
// messages: each logical path (screen record, assigned playlist, pairing
// record) maps to a topic whose retained payload is the current document.
// Read fetches the retained copy, Write replaces it, and Subscribe delivers
// the current document plus every later change, giving the pairing and
// playlist layers Firebase-style listener semantics over a plain broker.
//
// The Client underneath handles connection lifecycle: auto-reconnect with
// exponential backoff, subscription restoration after reconnect, and a
// retained Last Will so the control plane can observe unexpected offline.
package remote
