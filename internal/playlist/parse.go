package playlist

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// rawItem is the tolerant wire shape of a playlist entry. Duration is a
// json.Number so both 3000 and "3000" decode.
type rawItem struct {
	URL      string      `json:"url"`
	Type     string      `json:"type"`
	Duration json.Number `json:"duration"`
}

// rawPlaylist is the enveloped wire shape.
type rawPlaylist struct {
	Items []rawItem `json:"items"`
}

// videoExtensions maps file extensions to the video type for entries that
// omit an explicit type.
var videoExtensions = map[string]bool{
	".mp4":  true,
	".webm": true,
	".mov":  true,
	".mkv":  true,
}

// Parse decodes a playlist document into items.
//
// The decoder is deliberately tolerant of control-plane drift:
//   - Accepts either a bare JSON array or an {"items": [...]} envelope
//   - Drops entries with no URL instead of failing the whole document
//   - Infers the type from the URL extension when absent
//   - Substitutes defaultDuration for missing or non-positive durations
//
// Parameters:
//   - data: Raw playlist document
//   - defaultDuration: Fallback display time in milliseconds
//
// Returns:
//   - []Item: Usable entries in document order; may be empty
//   - error: ErrMalformedPlaylist if the document is not valid JSON in
//     either accepted shape
func Parse(data []byte, defaultDuration int) ([]Item, error) {
	var raw []rawItem

	if err := json.Unmarshal(data, &raw); err != nil {
		var enveloped rawPlaylist
		if err := json.Unmarshal(data, &enveloped); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedPlaylist, err)
		}
		raw = enveloped.Items
	}

	items := make([]Item, 0, len(raw))
	for _, entry := range raw {
		url := strings.TrimSpace(entry.URL)
		if url == "" {
			continue
		}

		items = append(items, Item{
			URL:      url,
			Type:     normalizeType(entry.Type, url),
			Duration: normalizeDuration(entry.Duration, defaultDuration),
		})
	}
	return items, nil
}

// normalizeType resolves the media type, inferring from the URL when absent.
func normalizeType(declared, url string) string {
	switch strings.ToLower(strings.TrimSpace(declared)) {
	case TypeImage:
		return TypeImage
	case TypeVideo:
		return TypeVideo
	}

	ext := strings.ToLower(path.Ext(stripQuery(url)))
	if videoExtensions[ext] {
		return TypeVideo
	}
	return TypeImage
}

// normalizeDuration resolves the display duration in milliseconds.
func normalizeDuration(raw json.Number, defaultDuration int) int {
	if raw.String() == "" {
		return defaultDuration
	}
	ms, err := raw.Int64()
	if err != nil || ms <= 0 {
		return defaultDuration
	}
	return int(ms)
}

// stripQuery removes a query string so extension sniffing works on CDN URLs.
func stripQuery(url string) string {
	if i := strings.IndexByte(url, '?'); i >= 0 {
		return url[:i]
	}
	return url
}
