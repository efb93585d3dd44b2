package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nasubidev/splatrecorder/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

type stubBus struct {
	events []string
}

func (b *stubBus) Publish(eventType string, payload map[string]any) {
	b.events = append(b.events, eventType)
}

func battleMeta() model.RecordingMetadata {
	return model.RecordingMetadata{
		GameMode:  model.GameModeBattle,
		StartedAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		Judgement: model.JudgementWin,
		Result: model.BattleResult{
			Match: model.MatchX,
			Rule:  model.RuleRainmaker,
			Stage: model.StageScorchGorge,
			Kill:  10, Death: 3, Special: 4,
		},
	}
}

func writeFakeVideo(t *testing.T, dir string) string {
	t.Helper()
	p := filepath.Join(dir, "incoming.mkv")
	require.NoError(t, os.WriteFile(p, []byte("fake video bytes"), 0o644))
	return p
}

func TestBaseBattleGrammar(t *testing.T) {
	base := Base(battleMeta())
	assert.Equal(t, "20250101_120000_Xマッチ_ガチホコ_WIN_ユノハナ大渓谷", base)
}

func TestBaseNonBattleOmitsSuffix(t *testing.T) {
	meta := model.RecordingMetadata{StartedAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	assert.Equal(t, "20250101_120000", Base(meta))
}

func TestSaveRecordingMovesVideoAndWritesSidecars(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	video := writeFakeVideo(t, src)
	bus := &stubBus{}
	repo := NewRepository(dest, filepath.Join(dest, "edited"), bus)

	frame := model.Frame{Mat: gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)}
	defer frame.Close()

	asset, err := repo.Save(video, &frame, "1\n00:00:00,000 --> 00:00:01,000\nhi\n", battleMeta())
	require.NoError(t, err)

	assert.Equal(t, "20250101_120000_Xマッチ_ガチホコ_WIN_ユノハナ大渓谷", asset.ID)
	assert.FileExists(t, asset.Video)
	assert.NoFileExists(t, video) // moved, not copied
	assert.FileExists(t, asset.Subtitle)
	assert.FileExists(t, asset.Thumbnail)
	assert.FileExists(t, asset.MetadataPath)
	require.NotNil(t, asset.Metadata)
	assert.Equal(t, model.JudgementWin, asset.Metadata.Judgement)
	assert.Contains(t, bus.events, model.EventAssetRecordedSaved)
}

func TestSaveRecordingWithoutThumbnailOrSubtitle(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	video := writeFakeVideo(t, src)
	repo := NewRepository(dest, filepath.Join(dest, "edited"), nil)

	asset, err := repo.Save(video, nil, "", battleMeta())
	require.NoError(t, err)

	assert.FileExists(t, asset.Video)
	assert.Empty(t, asset.Subtitle)
	assert.Empty(t, asset.Thumbnail)
	assert.FileExists(t, asset.MetadataPath) // always written
}

func TestSaveRecordingKeepsSourcePathWhenMoveFails(t *testing.T) {
	// A directory already sitting at the destination path makes os.Rename
	// of the video file onto it fail, exercising the "keep the source path"
	// fallback.
	src := t.TempDir()
	dest := t.TempDir()
	video := writeFakeVideo(t, src)
	require.NoError(t, os.Mkdir(filepath.Join(dest, Base(battleMeta())+".mkv"), 0o755))
	repo := NewRepository(dest, filepath.Join(dest, "edited"), nil)

	asset, err := repo.Save(video, nil, "", battleMeta())
	require.NoError(t, err)
	assert.Equal(t, video, asset.Video)
}

func TestListRecordingsLoadsSidecarsOpportunistically(t *testing.T) {
	dir := t.TempDir()
	repo := NewRepository(dir, filepath.Join(dir, "edited"), nil)

	video := writeFakeVideo(t, dir)
	base := baseNameOf(video)
	meta := battleMeta()
	b, err := meta.ToDict()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, base+".json"), b, 0o644))
	// No .srt, no .png written — must still list the asset (invariant 3).

	got, err := repo.ListRecordings()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, base, got[0].ID)
	assert.False(t, got[0].HasSubtitle())
	assert.False(t, got[0].HasThumbnail())
	require.True(t, got[0].HasMetadata())
	assert.Equal(t, model.JudgementWin, got[0].Metadata.Judgement)
}

func baseNameOf(videoPath string) string {
	base := filepath.Base(videoPath)
	return base[:len(base)-len(filepath.Ext(base))]
}

func TestListRecordingsEmptyDirReturnsNilNotError(t *testing.T) {
	repo := NewRepository(filepath.Join(t.TempDir(), "missing"), filepath.Join(t.TempDir(), "missing2"), nil)
	got, err := repo.ListRecordings()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteRecordingRemovesAllFourFiles(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	video := writeFakeVideo(t, src)
	bus := &stubBus{}
	repo := NewRepository(dest, filepath.Join(dest, "edited"), bus)
	frame := model.Frame{Mat: gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)}
	defer frame.Close()

	asset, err := repo.Save(video, &frame, "srt text", battleMeta())
	require.NoError(t, err)

	require.NoError(t, repo.DeleteRecording(asset.ID))
	assert.NoFileExists(t, asset.Video)
	assert.NoFileExists(t, asset.Subtitle)
	assert.NoFileExists(t, asset.Thumbnail)
	assert.NoFileExists(t, asset.MetadataPath)
	assert.Contains(t, bus.events, model.EventAssetRecordedDeleted)
}

func TestDeleteRecordingToleratesMissingSidecars(t *testing.T) {
	dest := t.TempDir()
	repo := NewRepository(dest, filepath.Join(dest, "edited"), nil)
	// Nothing on disk at all for this id.
	assert.NoError(t, repo.DeleteRecording("nonexistent"))
}

func TestUpdateMetadataAndReadSubtitle(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	video := writeFakeVideo(t, src)
	bus := &stubBus{}
	repo := NewRepository(dest, filepath.Join(dest, "edited"), bus)

	asset, err := repo.Save(video, nil, "original\n", battleMeta())
	require.NoError(t, err)

	updated := battleMeta()
	updated.Judgement = model.JudgementLose
	require.NoError(t, repo.UpdateMetadata(asset.ID, updated))
	assert.Contains(t, bus.events, model.EventAssetRecordedMetadataUpdated)

	require.NoError(t, repo.UpdateSubtitle(asset.ID, "replaced\n"))
	got, err := repo.ReadSubtitle(asset.ID)
	require.NoError(t, err)
	assert.Equal(t, "replaced\n", got)
}

func TestReadSubtitleMissingReturnsEmptyNotError(t *testing.T) {
	repo := NewRepository(t.TempDir(), t.TempDir(), nil)
	got, err := repo.ReadSubtitle("nope")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListEditedListsOnlyMKV(t *testing.T) {
	editedDir := t.TempDir()
	repo := NewRepository(t.TempDir(), editedDir, nil)
	require.NoError(t, os.WriteFile(filepath.Join(editedDir, "clip.mkv"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(editedDir, "notes.txt"), []byte("x"), 0o644))

	got, err := repo.ListEdited()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, filepath.Join(editedDir, "clip.mkv"), got[0])
}

func TestSaveRecordingSatisfiesAssetSaverShape(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	video := writeFakeVideo(t, src)
	repo := NewRepository(dest, filepath.Join(dest, "edited"), nil)

	err := repo.SaveRecording(context.Background(), video, battleMeta(), nil, "")
	require.NoError(t, err)

	got, err := repo.ListRecordings()
	require.NoError(t, err)
	require.Len(t, got, 1)
}
