package archive

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Transcoder converts concatenated transport-stream bytes into a compressed
// audio file. It is a subprocess boundary: input path, output path, exit
// status.
type Transcoder interface {
	Available() bool
	ExtractAudio(ctx context.Context, inputPath, outputPath string) error
}

// FFmpegTranscoder implements Transcoder using the ffmpeg command line tool
// with a fixed audio-only profile.
type FFmpegTranscoder struct {
	Path string
}

// NewFFmpegTranscoder returns a new FFmpegTranscoder. If path is empty, it
// looks for "ffmpeg" in PATH.
func NewFFmpegTranscoder(path string) *FFmpegTranscoder {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegTranscoder{Path: path}
}

// Available checks if ffmpeg is executable.
func (f *FFmpegTranscoder) Available() bool {
	_, err := exec.LookPath(f.Path)
	return err == nil
}

// ExtractAudio extracts the audio stream of inputPath into an MP3 file at
// outputPath. Captured stderr is folded into the returned error.
func (f *FFmpegTranscoder) ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-ab", "128k",
		"-ar", "48000",
		outputPath,
	}

	cmd := exec.CommandContext(ctx, f.Path, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, stderr.String())
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}
