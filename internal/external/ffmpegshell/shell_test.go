package ffmpegshell

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDeviceNamesLinux(t *testing.T) {
	out := "[video4linux2,v4l2 @ 0x1] Listing devices:\n/dev/video0\n/dev/video1\n"
	require.Equal(t, []string{"/dev/video0", "/dev/video1"}, parseDeviceNames(out, "v4l2"))
}

func TestParseDeviceNamesMac(t *testing.T) {
	out := "[AVFoundation indev @ 0x1] AVFoundation video devices:\n[0] FaceTime HD Camera\n[1] Capture screen 0\n"
	require.Equal(t, []string{"FaceTime HD Camera", "Capture screen 0"}, parseDeviceNames(out, "avfoundation"))
}

func TestParseDeviceNamesWindows(t *testing.T) {
	out := "[dshow @ 0x1] DirectShow video devices\n\"Integrated Camera\"\n\"OBS Virtual Camera\"\n"
	require.Equal(t, []string{"Integrated Camera", "OBS Virtual Camera"}, parseDeviceNames(out, "dshow"))
}

// withFakeBinary puts a shell script named name on PATH for the duration of
// the test, ahead of any real binary of the same name.
func withFakeBinary(t *testing.T, name, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake binaries are posix shell scripts")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestGetVideoLengthParsesFFprobeJSON(t *testing.T) {
	withFakeBinary(t, "ffprobe", `echo '{"format":{"duration":"12.500000"}}'`)
	s := New(t.TempDir())
	d, err := s.GetVideoLength(context.Background(), "in.mkv")
	require.NoError(t, err)
	require.Equal(t, 12500*time.Millisecond, d)
}

func TestGetMetadataParsesFFprobeTags(t *testing.T) {
	withFakeBinary(t, "ffprobe", `echo '{"format":{"tags":{"title":"hello"}}}'`)
	s := New(t.TempDir())
	tags, err := s.GetMetadata(context.Background(), "in.mkv")
	require.NoError(t, err)
	require.Equal(t, map[string]string{"title": "hello"}, tags)
}

func TestMergeWritesConcatListAndInvokesFFmpeg(t *testing.T) {
	root := t.TempDir()
	marker := filepath.Join(root, "invoked-with-args.txt")
	withFakeBinary(t, "ffmpeg", `echo "$@" > `+marker+`; exit 0`)
	s := New(root)

	err := s.Merge(context.Background(), []string{"a.mkv", "b.mkv"}, "out.mkv")
	require.NoError(t, err)

	b, err := os.ReadFile(marker)
	require.NoError(t, err)
	require.Contains(t, string(b), "-f concat")
	require.Contains(t, string(b), "out.mkv")
}

func TestReplaceInPlaceRenamesTempOverOriginalOnSuccess(t *testing.T) {
	root := t.TempDir()
	video := filepath.Join(root, "video.mkv")
	require.NoError(t, os.WriteFile(video, []byte("original"), 0o644))
	withFakeBinary(t, "ffmpeg", `for a in "$@"; do last="$a"; done; printf rewritten > "$last"`)
	s := New(root)

	err := s.EmbedMetadata(context.Background(), video, map[string]string{"title": "x"})
	require.NoError(t, err)

	got, err := os.ReadFile(video)
	require.NoError(t, err)
	require.Equal(t, "rewritten", string(got))
}

func TestReplaceInPlaceCleansUpTempOnFailure(t *testing.T) {
	root := t.TempDir()
	video := filepath.Join(root, "video.mkv")
	require.NoError(t, os.WriteFile(video, []byte("original"), 0o644))
	withFakeBinary(t, "ffmpeg", `exit 1`)
	s := New(root)

	err := s.EmbedMetadata(context.Background(), video, map[string]string{"title": "x"})
	require.Error(t, err)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "video.mkv", entries[0].Name())
}

func TestGetSubtitleReturnsEmptyWhenStreamMissing(t *testing.T) {
	withFakeBinary(t, "ffmpeg", `exit 1`)
	s := New(t.TempDir())
	srt, err := s.GetSubtitle(context.Background(), "in.mkv")
	require.NoError(t, err)
	require.Empty(t, srt)
}
