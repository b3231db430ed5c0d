package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJobMessage(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		wantErr bool
		jobID   string
		input   string
	}{
		{
			name:  "valid message",
			body:  []byte(`{"job_id":"abc","input_ref":"ref-1"}`),
			jobID: "abc",
			input: "ref-1",
		},
		{
			name:  "missing input_ref still decodes",
			body:  []byte(`{"job_id":"abc"}`),
			jobID: "abc",
			input: "",
		},
		{
			name:  "unknown fields ignored",
			body:  []byte(`{"job_id":"abc","input_ref":"ref-1","extra":42}`),
			jobID: "abc",
			input: "ref-1",
		},
		{
			name:    "invalid json",
			body:    []byte(`{"job_id":`),
			wantErr: true,
		},
		{
			name:    "missing job_id",
			body:    []byte(`{"input_ref":"ref-1"}`),
			wantErr: true,
		},
		{
			name:    "empty body",
			body:    []byte(``),
			wantErr: true,
		},
		{
			name:    "wrong field type",
			body:    []byte(`{"job_id":123}`),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseJobMessage(tt.body)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedMessage)
				assert.Nil(t, msg)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.jobID, msg.JobID)
				assert.Equal(t, tt.input, msg.InputRef)
			}
		})
	}
}

func TestParseCompletionEvent(t *testing.T) {
	tests := []struct {
		name    string
		body    []byte
		wantErr bool
		outcome string
	}{
		{
			name:    "success outcome",
			body:    []byte(`{"job_id":"abc","output_ref":"out-1","outcome":"success"}`),
			outcome: OutcomeSuccess,
		},
		{
			name:    "failure outcome",
			body:    []byte(`{"job_id":"abc","outcome":"failure"}`),
			outcome: OutcomeFailure,
		},
		{
			name:    "missing job_id",
			body:    []byte(`{"outcome":"success"}`),
			wantErr: true,
		},
		{
			name:    "unknown outcome",
			body:    []byte(`{"job_id":"abc","outcome":"done"}`),
			wantErr: true,
		},
		{
			name:    "missing outcome",
			body:    []byte(`{"job_id":"abc"}`),
			wantErr: true,
		},
		{
			name:    "invalid json",
			body:    []byte(`not json`),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseCompletionEvent(tt.body)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedMessage)
				assert.Nil(t, ev)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "abc", ev.JobID)
				assert.Equal(t, tt.outcome, ev.Outcome)
			}
		})
	}
}
