package pairing

import (
	"encoding/json"
	"fmt"
	"time"
)

// creationDateLayout is the legacy date format used by the control plane.
const creationDateLayout = "01-02-2006"

// State of the pairing lifecycle.
type State int

const (
	// StateInitializing means the machine has not resolved its code yet.
	StateInitializing State = iota

	// StateUnpaired means the device is registered and displaying its code,
	// waiting for an operator to claim it.
	StateUnpaired

	// StatePairedNoPlaylist means an operator has claimed the device but
	// assigned no playlist yet.
	StatePairedNoPlaylist

	// StatePairedWithPlaylist means the device is claimed and has an
	// assigned playlist to synchronize.
	StatePairedWithPlaylist
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateUnpaired:
		return "unpaired"
	case StatePairedNoPlaylist:
		return "paired-no-playlist"
	case StatePairedWithPlaylist:
		return "paired-with-playlist"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Paired reports whether the state is one of the claimed states.
func (s State) Paired() bool {
	return s == StatePairedNoPlaylist || s == StatePairedWithPlaylist
}

// stateFor derives the lifecycle state implied by a registration record.
func stateFor(record ScreenRecord) State {
	switch {
	case !record.Paired:
		return StateUnpaired
	case record.CurrentPlaylistAssigned == "":
		return StatePairedNoPlaylist
	default:
		return StatePairedWithPlaylist
	}
}

// ScreenRecord is the device's registration document on the control plane.
// Field names match the legacy wire format.
type ScreenRecord struct {
	// UUID is the device identifier keying the record.
	UUID string `json:"uuid"`

	// PairingCode is the short code an operator enters to claim the device.
	PairingCode string `json:"pairingCode"`

	// Name is the configured human-readable label, if any.
	Name string `json:"name,omitempty"`

	// Paired is set by the control plane when an operator claims the
	// device, and cleared to revoke the pairing.
	Paired bool `json:"paired"`

	// CurrentPlaylistAssigned names the assigned playlist, if any.
	CurrentPlaylistAssigned string `json:"currentPlaylistAssigned"`

	// LastHeartbeat is the epoch-millisecond timestamp of the device's
	// most recent heartbeat.
	LastHeartbeat int64 `json:"lastHeartbeat"`

	// CreationDate records when the device first registered.
	CreationDate string `json:"creationDate"`

	// Status is the device's self-reported status string.
	Status string `json:"status"`
}

// newScreenRecord builds the initial registration record for a device.
func newScreenRecord(deviceID, code, name string, now time.Time) ScreenRecord {
	// Status starts offline; the heartbeat flips it online once paired.
	return ScreenRecord{
		UUID:          deviceID,
		PairingCode:   code,
		Name:          name,
		Paired:        false,
		LastHeartbeat: now.UnixMilli(),
		CreationDate:  now.Format(creationDateLayout),
		Status:        "offline",
	}
}

// decodeScreenRecord parses a registration document.
func decodeScreenRecord(data []byte) (ScreenRecord, error) {
	var record ScreenRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return ScreenRecord{}, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return record, nil
}
