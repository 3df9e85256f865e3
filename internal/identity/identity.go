package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Pref key for the generated fallback identifier.
const persistentIDKey = "device_persistent_id"

// Default host identity sources, probed in order. The DMI product UUID comes
// last because some boards ship a placeholder value.
var defaultSourcePaths = []string{
	"/etc/machine-id",
	"/var/lib/dbus/machine-id",
	"/sys/class/dmi/id/product_uuid",
}

// ErrUnavailable indicates no identity could be resolved or persisted.
var ErrUnavailable = errors.New("device identity unavailable")

// PrefStore persists the generated fallback identifier across restarts.
// Satisfied by cache.Repository.
type PrefStore interface {
	// GetPref returns the stored value, or "" if the key is unset.
	GetPref(ctx context.Context, key string) (string, error)
	SetPref(ctx context.Context, key, value string) error
}

// Provider resolves the stable device identifier.
//
// Resolution order:
//  1. Configured serial override (fleet deployments with known serials)
//  2. Host machine-id files and DMI product UUID
//  3. A generated UUID persisted in the preference store
//
// The resolved identifier is stable across restarts: host sources are
// inherently stable, and the generated fallback is written to the store
// before first use.
type Provider struct {
	serialOverride string
	prefs          PrefStore

	// sourcePaths is overridable in tests.
	sourcePaths []string
}

// New creates a Provider.
//
// Parameters:
//   - serialOverride: Value of device.serial from config; "" means unset
//   - prefs: Store for the generated fallback identifier
func New(serialOverride string, prefs PrefStore) *Provider {
	return &Provider{
		serialOverride: serialOverride,
		prefs:          prefs,
		sourcePaths:    defaultSourcePaths,
	}
}

// DeviceID resolves the device identifier.
//
// Returns:
//   - string: Stable, topic-safe identifier
//   - error: ErrUnavailable if no source yields an identity and the
//     fallback cannot be persisted
func (p *Provider) DeviceID(ctx context.Context) (string, error) {
	if id := sanitize(p.serialOverride); id != "" {
		return id, nil
	}

	for _, path := range p.sourcePaths {
		if id := readIdentityFile(path); id != "" {
			return id, nil
		}
	}

	return p.persistedID(ctx)
}

// persistedID returns the stored fallback identifier, generating and
// persisting one on first use.
func (p *Provider) persistedID(ctx context.Context) (string, error) {
	stored, err := p.prefs.GetPref(ctx, persistentIDKey)
	if err != nil {
		return "", fmt.Errorf("%w: reading persisted id: %w", ErrUnavailable, err)
	}
	if stored != "" {
		return stored, nil
	}

	id := uuid.NewString()
	if err := p.prefs.SetPref(ctx, persistentIDKey, id); err != nil {
		return "", fmt.Errorf("%w: persisting generated id: %w", ErrUnavailable, err)
	}
	return id, nil
}

// readIdentityFile reads and sanitizes a host identity file.
// Returns "" for missing, empty, or placeholder content.
func readIdentityFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	id := sanitize(string(data))

	// Some DMI implementations report an all-zero or filler UUID.
	if id == "" || strings.Trim(id, "0-") == "" {
		return ""
	}
	return id
}

// sanitize normalizes an identity string for use in document paths:
// lowercased, trimmed, with path-significant characters stripped.
func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return -1
		}
	}, s)
}
