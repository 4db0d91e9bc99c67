package provider

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kelsos/genjobs/internal/client"
	"github.com/kelsos/genjobs/internal/models"
)

// GenerationError reports a failed submission. Payload carries the raw
// provider response when there was one. It matches models.ErrSubmission.
type GenerationError struct {
	Op         string
	StatusCode int
	Payload    string
	Code       string
	Message    string
	Err        error
}

func (e *GenerationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: provider returned %d (%s): %s", e.Op, e.StatusCode, e.Code, e.Message)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: provider returned %d: %s", e.Op, e.StatusCode, e.Payload)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() []error {
	return []error{models.ErrSubmission, e.Err}
}

func newGenerationError(op string, err error) *GenerationError {
	genErr := &GenerationError{Op: op, Err: err}
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		genErr.StatusCode = httpErr.StatusCode
		genErr.Payload = httpErr.Body

		var body models.APIErrorBody
		if json.Unmarshal([]byte(httpErr.Body), &body) == nil {
			genErr.Code = body.Error.Code
			genErr.Message = body.Error.Message
		}
	}
	return genErr
}
