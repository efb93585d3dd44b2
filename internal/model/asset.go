package model

// VideoAsset is a quadruple on disk: the required video plus three optional
// sidecars (subtitle, thumbnail, metadata) sharing the video's base name.
// Per invariant 3, Video is never empty for an asset this package hands out;
// sidecars may be absent but never orphaned (i.e. never reference a
// nonexistent video).
type VideoAsset struct {
	// ID is the base name shared by the video and its sidecars, e.g.
	// "20250101_120000_Xマッチ_ガチホコ_WIN_ユノハナ大渓谷".
	ID string

	// Video is the absolute path to the video file. Never empty.
	Video string
	// Subtitle is the absolute path to the .srt sidecar, or "" if absent.
	Subtitle string
	// Thumbnail is the absolute path to the .png sidecar, or "" if absent.
	Thumbnail string
	// MetadataPath is the absolute path to the .json sidecar, or "" if absent.
	MetadataPath string

	// Metadata is the parsed sidecar content, if MetadataPath is non-empty
	// and parsed successfully.
	Metadata *RecordingMetadata
}

// HasSubtitle reports whether the asset has a subtitle sidecar.
func (a VideoAsset) HasSubtitle() bool { return a.Subtitle != "" }

// HasThumbnail reports whether the asset has a thumbnail sidecar.
func (a VideoAsset) HasThumbnail() bool { return a.Thumbnail != "" }

// HasMetadata reports whether the asset has a metadata sidecar.
func (a VideoAsset) HasMetadata() bool { return a.MetadataPath != "" }
