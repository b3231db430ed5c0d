package converter

import (
	"context"
	"fmt"
)

// Quality selects the bitrate/sample-rate pair used for the MP3 output.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
)

// Preset is the concrete encoder configuration behind a Quality.
type Preset struct {
	Bitrate    string
	SampleRate int
}

var presets = map[Quality]Preset{
	QualityLow:    {Bitrate: "96k", SampleRate: 22050},
	QualityMedium: {Bitrate: "128k", SampleRate: 44100},
	QualityHigh:   {Bitrate: "192k", SampleRate: 48000},
}

// PresetFor resolves a quality name to its preset.
func PresetFor(q Quality) (Preset, error) {
	p, ok := presets[q]
	if !ok {
		return Preset{}, fmt.Errorf("unknown quality preset: %q", q)
	}
	return p, nil
}

// Converter turns a video file into an MP3 audio file. Implementations
// enforce their own resource limits; the context carries the wall-clock
// timeout and cancels any external process when exceeded.
type Converter interface {
	Convert(ctx context.Context, inputPath, outputPath string, preset Preset) error
}
