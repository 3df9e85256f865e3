// Package rotation cycles the display through the active playlist.
//
// Images advance on a duration timer; videos advance on completion with the
// duration as an upper bound. Playlist replacements are staged and applied
// at the wrap to the start of the cycle, so the item on screen is never
// interrupted by a sync.
package rotation
