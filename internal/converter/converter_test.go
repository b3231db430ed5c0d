package converter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresetFor(t *testing.T) {
	tests := []struct {
		name       string
		quality    Quality
		wantErr    bool
		bitrate    string
		sampleRate int
	}{
		{
			name:       "low quality",
			quality:    QualityLow,
			bitrate:    "96k",
			sampleRate: 22050,
		},
		{
			name:       "medium quality",
			quality:    QualityMedium,
			bitrate:    "128k",
			sampleRate: 44100,
		},
		{
			name:       "high quality",
			quality:    QualityHigh,
			bitrate:    "192k",
			sampleRate: 48000,
		},
		{
			name:    "unknown quality",
			quality: Quality("studio"),
			wantErr: true,
		},
		{
			name:    "empty quality",
			quality: Quality(""),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			preset, err := PresetFor(tt.quality)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "unknown quality preset")
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.bitrate, preset.Bitrate)
				assert.Equal(t, tt.sampleRate, preset.SampleRate)
			}
		})
	}
}

func TestBuildArgs(t *testing.T) {
	preset, err := PresetFor(QualityMedium)
	require.NoError(t, err)

	args := buildArgs("/tmp/in.mp4", "/tmp/out.mp3", preset)

	assert.Equal(t, []string{
		"-i", "/tmp/in.mp4",
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", "128k",
		"-ar", "44100",
		"-f", "mp3",
		"-y",
		"/tmp/out.mp3",
	}, args)
}

func TestLastLine(t *testing.T) {
	tests := []struct {
		name string
		out  []byte
		want string
	}{
		{
			name: "single line",
			out:  []byte("Invalid data found when processing input"),
			want: "Invalid data found when processing input",
		},
		{
			name: "multiple lines returns last",
			out:  []byte("ffmpeg version 6.0\nStream mapping:\nConversion failed!"),
			want: "Conversion failed!",
		},
		{
			name: "trailing blank lines skipped",
			out:  []byte("Conversion failed!\n\n\n"),
			want: "Conversion failed!",
		},
		{
			name: "empty output",
			out:  nil,
			want: "unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lastLine(tt.out))
		})
	}
}

func TestNewFFmpegConverter_DefaultBinary(t *testing.T) {
	c := NewFFmpegConverter("", nil)
	assert.Equal(t, "ffmpeg", c.binary)

	c = NewFFmpegConverter("/usr/local/bin/ffmpeg", nil)
	assert.Equal(t, "/usr/local/bin/ffmpeg", c.binary)
}
