// Package llm wraps the remote language model used for extraction and
// insight generation.
package llm

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Attachment is inline binary content sent with a prompt.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Request is a single-turn generation request.
type Request struct {
	Prompt      string
	Attachments []Attachment
}

// Generator produces a text completion for a request.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}
