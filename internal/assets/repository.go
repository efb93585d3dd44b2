// Package assets implements C6, the asset repository: the on-disk layout
// for a completed recording (video + optional subtitle/thumbnail + metadata
// sidecar), its filename grammar, listing, and deletion.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nasubidev/splatrecorder/internal/model"
	"gocv.io/x/gocv"
)

// Publisher is the event-bus dependency (same shape as weapon.Publisher and
// recorder.Publisher).
type Publisher interface {
	Publish(eventType string, payload map[string]any)
}

// Repository is C6: atomic save-ordering, listing and deletion rooted at
// two configured directories.
type Repository struct {
	RecordedDir string
	EditedDir   string
	Bus         Publisher
}

func NewRepository(recordedDir, editedDir string, bus Publisher) *Repository {
	return &Repository{RecordedDir: recordedDir, EditedDir: editedDir, Bus: bus}
}

// Base returns the filename grammar from spec.md §4.6: StartedAt formatted
// YYYYMMDD_HHMMSS, extended for battle recordings with
// _<match>_<rule>_<judgement>_<stage>.
func Base(meta model.RecordingMetadata) string {
	base := meta.StartedAt.Format("20060102_150405")
	br, ok := meta.Result.(model.BattleResult)
	if !ok {
		return base
	}
	return fmt.Sprintf("%s_%s_%s_%s_%s", base, br.Match, br.Rule, meta.Judgement, br.Stage)
}

// SaveRecording implements recorder.AssetSaver: it adapts C5's call shape
// (ctx first, no VideoAsset return) onto Save.
func (r *Repository) SaveRecording(ctx context.Context, videoPath string, meta model.RecordingMetadata, resultFrame *model.Frame, srt string) error {
	_, err := r.Save(videoPath, resultFrame, srt, meta)
	return err
}

// Save implements C6's save operation: create the destination directory,
// move the input video into place (falling back to the source path if the
// move fails), write the optional PNG thumbnail and SRT subtitle, and
// finally write the metadata sidecar — writing the video first and the
// sidecar last so the video is never observed without it being fully in
// place (invariant 3: VideoAsset.Video is never orphaned).
//
// videoPath is the path to the already-finished video file the external
// recorder produced; it is moved (not copied) into the recorded directory.
func (r *Repository) Save(videoPath string, resultFrame *model.Frame, srt string, meta model.RecordingMetadata) (model.VideoAsset, error) {
	if err := os.MkdirAll(r.RecordedDir, 0o755); err != nil {
		return model.VideoAsset{}, fmt.Errorf("assets: mkdir %q: %w", r.RecordedDir, err)
	}
	base := Base(meta)
	ext := filepath.Ext(videoPath)
	dest := filepath.Join(r.RecordedDir, base+ext)

	finalVideo := dest
	if err := os.Rename(videoPath, dest); err != nil {
		// Move across filesystems (or other failure) — keep the source path
		// as the final path rather than fail the whole save (spec.md §4.6
		// step 2: "if move fails, keep the source path as the final path").
		finalVideo = videoPath
	}

	asset := model.VideoAsset{ID: base, Video: finalVideo}

	if resultFrame != nil && !resultFrame.Empty() {
		pngPath := filepath.Join(r.RecordedDir, base+".png")
		if err := writePNG(pngPath, *resultFrame); err != nil {
			return asset, fmt.Errorf("assets: write thumbnail: %w", err)
		}
		asset.Thumbnail = pngPath
	}

	if srt != "" {
		srtPath := filepath.Join(r.RecordedDir, base+".srt")
		if err := writeFileAtomic(srtPath, []byte(srt)); err != nil {
			return asset, fmt.Errorf("assets: write subtitle: %w", err)
		}
		asset.Subtitle = srtPath
	}

	metaBytes, err := meta.ToDict()
	if err != nil {
		return asset, fmt.Errorf("assets: encode metadata: %w", err)
	}
	metaPath := filepath.Join(r.RecordedDir, base+".json")
	if err := writeFileAtomic(metaPath, metaBytes); err != nil {
		return asset, fmt.Errorf("assets: write metadata: %w", err)
	}
	asset.MetadataPath = metaPath
	m := meta
	asset.Metadata = &m

	if r.Bus != nil {
		r.Bus.Publish(model.EventAssetRecordedSaved, map[string]any{"id": asset.ID})
	}
	return asset, nil
}

// writeFileAtomic writes b to a ".tmp" sibling of path then renames it into
// place, the teacher's generateM3U8 temp-then-rename idiom generalized from
// an m3u8 playlist to any sidecar file.
func writeFileAtomic(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func writePNG(path string, frame model.Frame) error {
	buf, err := gocv.IMEncode(".png", frame.Mat)
	if err != nil {
		return err
	}
	defer buf.Close()
	return writeFileAtomic(path, buf.GetBytes())
}

// ListRecordings returns one VideoAsset per *.mkv in RecordedDir, loading
// sidecars opportunistically — a file set is complete even when sidecars
// are missing (spec.md §4.6).
func (r *Repository) ListRecordings() ([]model.VideoAsset, error) {
	return list(r.RecordedDir)
}

// ListEdited returns the paths of *.mkv in EditedDir.
func (r *Repository) ListEdited() ([]string, error) {
	entries, err := os.ReadDir(r.EditedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("assets: list edited %q: %w", r.EditedDir, err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".mkv") {
			out = append(out, filepath.Join(r.EditedDir, e.Name()))
		}
	}
	return out, nil
}

func list(dir string) ([]model.VideoAsset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("assets: list %q: %w", dir, err)
	}
	var out []model.VideoAsset
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".mkv") {
			continue
		}
		base := strings.TrimSuffix(e.Name(), ".mkv")
		asset := model.VideoAsset{ID: base, Video: filepath.Join(dir, e.Name())}

		if p := filepath.Join(dir, base+".srt"); fileExists(p) {
			asset.Subtitle = p
		}
		if p := filepath.Join(dir, base+".png"); fileExists(p) {
			asset.Thumbnail = p
		}
		if p := filepath.Join(dir, base+".json"); fileExists(p) {
			asset.MetadataPath = p
			if b, err := os.ReadFile(p); err == nil {
				if m, err := model.FromDict(b); err == nil {
					asset.Metadata = &m
				}
			}
		}
		out = append(out, asset)
	}
	return out, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DeleteRecording removes all four files (video + sidecars) for id in
// RecordedDir, tolerating sidecars that are already absent.
func (r *Repository) DeleteRecording(id string) error {
	return r.deleteByID(r.RecordedDir, id, model.EventAssetRecordedDeleted)
}

// DeleteEdited removes the edited video (no sidecars) for id in EditedDir.
func (r *Repository) DeleteEdited(id string) error {
	path := filepath.Join(r.EditedDir, id+".mkv")
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("assets: delete edited %q: %w", path, err)
	}
	if r.Bus != nil {
		r.Bus.Publish(model.EventAssetEditedDeleted, map[string]any{"id": id})
	}
	return nil
}

func (r *Repository) deleteByID(dir, id, event string) error {
	suffixes := []string{".mkv", ".srt", ".png", ".json"}
	for _, suffix := range suffixes {
		path := filepath.Join(dir, id+suffix)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("assets: delete %q: %w", path, err)
		}
	}
	if r.Bus != nil {
		r.Bus.Publish(event, map[string]any{"id": id})
	}
	return nil
}

// UpdateMetadata overwrites the metadata sidecar for id, publishing
// asset.recorded.metadata_updated.
func (r *Repository) UpdateMetadata(id string, meta model.RecordingMetadata) error {
	b, err := meta.ToDict()
	if err != nil {
		return fmt.Errorf("assets: encode metadata: %w", err)
	}
	path := filepath.Join(r.RecordedDir, id+".json")
	if err := writeFileAtomic(path, b); err != nil {
		return fmt.Errorf("assets: update metadata %q: %w", path, err)
	}
	if r.Bus != nil {
		r.Bus.Publish(model.EventAssetRecordedMetadataUpdated, map[string]any{"id": id})
	}
	return nil
}

// UpdateSubtitle overwrites the SRT sidecar for id, publishing
// asset.recorded.subtitle_updated.
func (r *Repository) UpdateSubtitle(id, srt string) error {
	path := filepath.Join(r.RecordedDir, id+".srt")
	if err := writeFileAtomic(path, []byte(srt)); err != nil {
		return fmt.Errorf("assets: update subtitle %q: %w", path, err)
	}
	if r.Bus != nil {
		r.Bus.Publish(model.EventAssetRecordedSubtitleUpdated, map[string]any{"id": id})
	}
	return nil
}

// ReadSubtitle returns the raw SRT text for id, or "" if absent.
func (r *Repository) ReadSubtitle(id string) (string, error) {
	path := filepath.Join(r.RecordedDir, id+".srt")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("assets: read subtitle %q: %w", path, err)
	}
	return string(bytes.TrimRight(b, "\n")) + "\n", nil
}
