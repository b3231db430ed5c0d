package domain

import (
	"encoding/json"
	"fmt"
)

// JobMessage is the queue payload referencing a job. It never carries the
// file body, only the ledger id and the object store ref of the input.
type JobMessage struct {
	JobID    string `json:"job_id"`
	InputRef string `json:"input_ref"`

	DeliveryTag uint64 `json:"-"`
	Redelivered bool   `json:"-"`
}

// Outcome values carried by a CompletionEvent.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// CompletionEvent signals that a job reached a terminal ledger state.
type CompletionEvent struct {
	JobID     string `json:"job_id"`
	OutputRef string `json:"output_ref"`
	Outcome   string `json:"outcome"`
}

// ParseJobMessage decodes and validates a raw queue payload.
// Any shape violation maps to ErrMalformedMessage.
func ParseJobMessage(body []byte) (*JobMessage, error) {
	var msg JobMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.JobID == "" {
		return nil, fmt.Errorf("%w: missing job_id", ErrMalformedMessage)
	}
	// A missing input_ref is still malformed, but with a job_id present the
	// worker can record the failure on the ledger instead of discarding.
	return &msg, nil
}

// ParseCompletionEvent decodes and validates a raw completion payload.
func ParseCompletionEvent(body []byte) (*CompletionEvent, error) {
	var ev CompletionEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if ev.JobID == "" {
		return nil, fmt.Errorf("%w: missing job_id", ErrMalformedMessage)
	}
	if ev.Outcome != OutcomeSuccess && ev.Outcome != OutcomeFailure {
		return nil, fmt.Errorf("%w: unknown outcome %q", ErrMalformedMessage, ev.Outcome)
	}
	return &ev, nil
}
