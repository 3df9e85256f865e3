package playlist

// Media types recognized by the renderer.
const (
	TypeImage = "image"
	TypeVideo = "video"
)

// Item is a single playlist entry.
type Item struct {
	// URL locates the media asset.
	URL string `json:"url"`

	// Type is TypeImage or TypeVideo.
	Type string `json:"type"`

	// Duration is the display time in milliseconds. For videos it acts as
	// an upper bound; playback advances on completion or when the bound
	// elapses, whichever comes first.
	Duration int `json:"duration"`
}

// IsVideo reports whether the item advances on playback completion.
func (i Item) IsVideo() bool {
	return i.Type == TypeVideo
}
