package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

// FFmpegConverter shells out to ffmpeg. CommandContext kills the process
// when the conversion timeout expires, so a stuck encode never holds a
// worker slot indefinitely.
type FFmpegConverter struct {
	binary string
	logger *slog.Logger
}

// NewFFmpegConverter creates a converter using the given ffmpeg binary path.
// An empty path falls back to "ffmpeg" on PATH.
func NewFFmpegConverter(binary string, logger *slog.Logger) *FFmpegConverter {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegConverter{
		binary: binary,
		logger: logger,
	}
}

// buildArgs assembles the ffmpeg invocation: strip the video stream, encode
// the audio as MP3 at the preset bitrate and sample rate.
func buildArgs(inputPath, outputPath string, preset Preset) []string {
	return []string{
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", preset.Bitrate,
		"-ar", strconv.Itoa(preset.SampleRate),
		"-f", "mp3",
		"-y",
		outputPath,
	}
}

func (c *FFmpegConverter) Convert(ctx context.Context, inputPath, outputPath string, preset Preset) error {
	args := buildArgs(inputPath, outputPath, preset)

	cmd := exec.CommandContext(ctx, c.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			c.logger.Error("ffmpeg conversion timed out",
				slog.String("input", inputPath),
				slog.Duration("duration", duration),
			)
			return fmt.Errorf("ffmpeg timed out after %s: %w", duration.Round(time.Millisecond), ctx.Err())
		}

		detail := lastLine(stderr.Bytes())
		c.logger.Error("ffmpeg conversion failed",
			slog.String("input", inputPath),
			slog.String("stderr", detail),
			slog.Duration("duration", duration),
		)
		return fmt.Errorf("ffmpeg failed: %s: %w", detail, err)
	}

	c.logger.Info("Conversion finished",
		slog.String("input", inputPath),
		slog.String("output", outputPath),
		slog.String("bitrate", preset.Bitrate),
		slog.Duration("duration", duration),
	)

	return nil
}

// lastLine extracts the trailing non-empty line of ffmpeg's stderr, which is
// where it reports the actual failure.
func lastLine(out []byte) string {
	lines := bytes.Split(bytes.TrimSpace(out), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		line := bytes.TrimSpace(lines[i])
		if len(line) > 0 {
			return string(line)
		}
	}
	return "unknown error"
}
