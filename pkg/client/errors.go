package client

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrEmptyPrompts is returned before any request is made when a call carries
// no prompts.
var ErrEmptyPrompts = errors.New("prompts must not be empty")

// JSONValidationError is returned by a strict JSON mode call once the retry
// budget is exhausted. It carries every validation failure message gathered
// across the attempts, in order.
type JSONValidationError struct {
	Messages []string
	Attempts int
}

func (e *JSONValidationError) Error() string {
	return fmt.Sprintf("failed to get valid JSON response after %d attempts: %d validation errors", e.Attempts, len(e.Messages))
}
