package remote

import "strings"

// Paths builds the logical document paths used by the pairing and playlist
// layers. Paths are relative to the configured root namespace; the Store
// prepends the root when mapping a path to a broker topic.
//
// Layout:
//
//	screens/{deviceID}      — per-device registration record
//	playlists/{playlistID}  — playlist contents, keyed by assignment
//	pairings/{code}         — legacy code-keyed pairing record
//	status/{deviceID}       — online/offline presence (written by the client)
type Paths struct{}

// Screen returns the path of a device's registration record.
func (Paths) Screen(deviceID string) string {
	return "screens/" + deviceID
}

// Playlist returns the path of a playlist document. The ID comes from the
// device record's assignment field.
func (Paths) Playlist(playlistID string) string {
	return "playlists/" + playlistID
}

// Pairing returns the legacy code-keyed pairing path.
//
// Older control-plane versions write the registration under the pairing code
// instead of the device ID; the agent watches both during pairing.
func (Paths) Pairing(code string) string {
	return "pairings/" + code
}

// Status returns the presence path for a device.
func (Paths) Status(deviceID string) string {
	return "status/" + deviceID
}

// joinTopic maps a logical path to a broker topic under the root namespace.
func joinTopic(root, path string) string {
	root = strings.TrimSuffix(root, "/")
	path = strings.TrimPrefix(path, "/")
	if root == "" {
		return path
	}
	return root + "/" + path
}
