package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_Terminal(t *testing.T) {
	assert.False(t, StateCreated.Terminal())
	assert.False(t, StateQueued.Terminal())
	assert.False(t, StateProcessing.Terminal())
	assert.True(t, StateCompleted.Terminal())
	assert.True(t, StateFailed.Terminal())
}

func TestValidTransition(t *testing.T) {
	tests := []struct {
		name string
		from State
		to   State
		want bool
	}{
		{name: "created to queued", from: StateCreated, to: StateQueued, want: true},
		{name: "queued to processing", from: StateQueued, to: StateProcessing, want: true},
		{name: "processing to completed", from: StateProcessing, to: StateCompleted, want: true},
		{name: "processing to failed", from: StateProcessing, to: StateFailed, want: true},
		{name: "processing back to queued", from: StateProcessing, to: StateQueued, want: true},
		{name: "processing takeover", from: StateProcessing, to: StateProcessing, want: true},
		{name: "created skips queued", from: StateCreated, to: StateProcessing, want: false},
		{name: "queued skips processing", from: StateQueued, to: StateCompleted, want: false},
		{name: "queued to failed", from: StateQueued, to: StateFailed, want: false},
		{name: "completed is final", from: StateCompleted, to: StateQueued, want: false},
		{name: "failed is final", from: StateFailed, to: StateQueued, want: false},
		{name: "no backward to created", from: StateQueued, to: StateCreated, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidTransition(tt.from, tt.to))
		})
	}
}
