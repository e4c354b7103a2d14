package classifier

import (
	"context"
	"errors"
	"fmt"

	"medjournal/internal/models"
)

// Classifier produces a structured analysis for a free-text journal entry.
type Classifier interface {
	Classify(ctx context.Context, text string) (*models.AnalysisResult, error)
}

var (
	// ErrInvalidInput means the entry text was empty after trimming. It is
	// returned before any upstream call is made.
	ErrInvalidInput = errors.New("entry text is empty")

	// ErrNotConfigured means the Gemini API key is missing.
	ErrNotConfigured = errors.New("gemini API key is not configured")

	// ErrEmptyResponse means the model returned no content at all.
	ErrEmptyResponse = errors.New("no content returned from the model")

	// ErrUnparsable means the model output contained no usable JSON object.
	ErrUnparsable = errors.New("model output is not valid JSON")
)

// UpstreamError carries the status and body of a failed model call.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gemini API returned status %d: %s", e.Status, e.Body)
}
