// Package ffmpegshell is the default video editor (spec.md §6): it wraps
// ffmpeg/ffprobe invocations for merge, embed/get metadata, embed/get
// subtitle, embed/get thumbnail, change_volume, get_video_length,
// add_audio_track and list_video_devices, following the teacher's
// buildFFMPEGCmd/cmdFFMPEG argument-building and process-exec style.
package ffmpegshell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Shell is the default FFmpeg-backed video editor. Root is the working
// directory every command runs in, same as the teacher's cmdFFMPEG.
type Shell struct {
	Root    string
	Verbose bool
}

func New(root string) *Shell { return &Shell{Root: root} }

// run executes ffmpeg/ffprobe the way the teacher's cmdFFMPEG does
// (exec.CommandContext, cmd.Dir = root), capturing stdout/stderr instead of
// inheriting the process's, since every ffmpegshell operation needs to
// inspect or return what the tool printed.
func (s *Shell) run(ctx context.Context, name string, args []string) ([]byte, error) {
	slog.Debug("ffmpegshell: exec", "name", name, "args", args)
	// #nosec G204
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = s.Root
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		slog.Warn("ffmpegshell: failed", "name", name, "err", err, "stderr", stderr.String())
		return nil, fmt.Errorf("ffmpegshell: %s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

func (s *Shell) ffmpegArgs(extra ...string) []string {
	args := []string{"-hide_banner", "-y", "-nostats"}
	if s.Verbose {
		args = append(args, "-loglevel", "repeat+info")
	} else {
		args = append(args, "-loglevel", "repeat+warning")
	}
	return append(args, extra...)
}

// replaceInPlace runs ffmpeg writing to a temp file alongside videoPath,
// then renames it over the original — the teacher's generateM3U8
// temp-then-rename idiom, reused here so a failed ffmpeg run never leaves a
// half-written asset.
func (s *Shell) replaceInPlace(ctx context.Context, videoPath string, buildArgs func(tmp string) []string) error {
	tmp := videoPath + ".tmp" + filepath.Ext(videoPath)
	if _, err := s.run(ctx, "ffmpeg", s.ffmpegArgs(buildArgs(tmp)...)); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, videoPath)
}

// Merge concatenates parts (same codec/container) into dest using ffmpeg's
// concat demuxer.
func (s *Shell) Merge(ctx context.Context, parts []string, dest string) error {
	if len(parts) == 0 {
		return errors.New("ffmpegshell: merge: no parts")
	}
	listPath := filepath.Join(s.Root, "concat-"+strconv.FormatInt(time.Now().UnixNano(), 36)+".txt")
	var b strings.Builder
	for _, p := range parts {
		fmt.Fprintf(&b, "file '%s'\n", p)
	}
	if err := os.WriteFile(listPath, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("ffmpegshell: merge: write list: %w", err)
	}
	defer os.Remove(listPath)

	args := s.ffmpegArgs("-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", dest)
	_, err := s.run(ctx, "ffmpeg", args)
	return err
}

// EmbedMetadata writes key/value pairs as container-level metadata,
// replacing videoPath in place.
func (s *Shell) EmbedMetadata(ctx context.Context, videoPath string, meta map[string]string) error {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return s.replaceInPlace(ctx, videoPath, func(tmp string) []string {
		args := []string{"-i", videoPath}
		for _, k := range keys {
			args = append(args, "-metadata", k+"="+meta[k])
		}
		return append(args, "-codec", "copy", tmp)
	})
}

// GetMetadata reads back container-level metadata via ffprobe.
func (s *Shell) GetMetadata(ctx context.Context, videoPath string) (map[string]string, error) {
	out, err := s.run(ctx, "ffprobe", []string{
		"-v", "quiet", "-print_format", "json", "-show_format", videoPath,
	})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Format struct {
			Tags map[string]string `json:"tags"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("ffmpegshell: get_metadata: parse ffprobe output: %w", err)
	}
	return parsed.Format.Tags, nil
}

// EmbedSubtitle muxes srtPath in as a subtitle stream, replacing videoPath
// in place.
func (s *Shell) EmbedSubtitle(ctx context.Context, videoPath, srtPath string) error {
	return s.replaceInPlace(ctx, videoPath, func(tmp string) []string {
		return []string{
			"-i", videoPath, "-i", srtPath,
			"-map", "0", "-map", "1",
			"-c", "copy", "-c:s", "srt",
			tmp,
		}
	})
}

// GetSubtitle extracts the first subtitle stream as SRT text. Returns ""
// when the video has no subtitle stream.
func (s *Shell) GetSubtitle(ctx context.Context, videoPath string) (string, error) {
	out, err := s.run(ctx, "ffmpeg", s.ffmpegArgs(
		"-i", videoPath, "-map", "0:s:0", "-f", "srt", "pipe:1",
	))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", nil
		}
		return "", err
	}
	return string(out), nil
}

// EmbedThumbnail attaches pngPath as the video's cover art, replacing
// videoPath in place.
func (s *Shell) EmbedThumbnail(ctx context.Context, videoPath, pngPath string) error {
	return s.replaceInPlace(ctx, videoPath, func(tmp string) []string {
		return []string{
			"-i", videoPath, "-i", pngPath,
			"-map", "0", "-map", "1",
			"-c", "copy", "-c:v:1", "png",
			"-disposition:v:1", "attached_pic",
			tmp,
		}
	})
}

// GetThumbnail extracts the attached cover art as PNG bytes, or nil if the
// video carries none.
func (s *Shell) GetThumbnail(ctx context.Context, videoPath string) ([]byte, error) {
	out, err := s.run(ctx, "ffmpeg", s.ffmpegArgs(
		"-i", videoPath, "-map", "0:v:1", "-f", "image2pipe", "-vcodec", "png", "pipe:1",
	))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// ChangeVolume applies a linear gain factor (1.0 = unchanged) to the audio
// track, replacing videoPath in place.
func (s *Shell) ChangeVolume(ctx context.Context, videoPath string, factor float64) error {
	return s.replaceInPlace(ctx, videoPath, func(tmp string) []string {
		return []string{
			"-i", videoPath,
			"-filter:a", fmt.Sprintf("volume=%.3f", factor),
			"-c:v", "copy",
			tmp,
		}
	})
}

// GetVideoLength reports the video's duration via ffprobe.
func (s *Shell) GetVideoLength(ctx context.Context, videoPath string) (time.Duration, error) {
	out, err := s.run(ctx, "ffprobe", []string{
		"-v", "quiet", "-print_format", "json", "-show_entries", "format=duration", videoPath,
	})
	if err != nil {
		return 0, err
	}
	var parsed struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return 0, fmt.Errorf("ffmpegshell: get_video_length: parse ffprobe output: %w", err)
	}
	seconds, err := strconv.ParseFloat(parsed.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("ffmpegshell: get_video_length: parse duration: %w", err)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// AddAudioTrack muxes audioPath in as an additional audio stream,
// replacing videoPath in place.
func (s *Shell) AddAudioTrack(ctx context.Context, videoPath, audioPath string) error {
	return s.replaceInPlace(ctx, videoPath, func(tmp string) []string {
		return []string{
			"-i", videoPath, "-i", audioPath,
			"-map", "0", "-map", "1:a",
			"-c", "copy",
			tmp,
		}
	})
}

// ListVideoDevices enumerates capture devices ffmpeg can see, parsing the
// stderr listing the same way the teacher's buildFFMPEGCmd picks a
// platform-specific input format (v4l2/avfoundation/dshow).
func (s *Shell) ListVideoDevices(ctx context.Context) ([]string, error) {
	var format string
	switch runtime.GOOS {
	case "darwin":
		format = "avfoundation"
	case "linux":
		format = "v4l2"
	case "windows":
		format = "dshow"
	default:
		return nil, errors.New("ffmpegshell: list_video_devices: not implemented for this OS")
	}
	// #nosec G204
	cmd := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-f", format, "-list_devices", "true", "-i", "dummy")
	cmd.Dir = s.Root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	// ffmpeg always exits non-zero for -list_devices; the listing is on
	// stderr regardless of exit status.
	_ = cmd.Run()
	return parseDeviceNames(stderr.String(), format), nil
}

func parseDeviceNames(output, format string) []string {
	var names []string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch format {
		case "avfoundation":
			// e.g. `[0] FaceTime HD Camera`
			if i := strings.Index(line, "] "); i >= 0 && strings.HasPrefix(line, "[") {
				if _, err := strconv.Atoi(line[1:i]); err == nil {
					names = append(names, line[i+2:])
				}
			}
		case "v4l2":
			// e.g. `/dev/video0`
			if strings.HasPrefix(line, "/dev/video") {
				names = append(names, line)
			}
		case "dshow":
			if strings.HasPrefix(line, `"`) && strings.HasSuffix(line, `"`) {
				names = append(names, strings.Trim(line, `"`))
			}
		}
	}
	return names
}
