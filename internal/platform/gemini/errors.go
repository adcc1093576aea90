package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"

	"github.com/planforge/planforge-api/internal/generation"
)

// ErrEmptyTopic is returned when Generate is called without a topic.
var ErrEmptyTopic = errors.New("topic cannot be empty")

// mapProviderError translates raw genai/transport errors into the typed
// errors the orchestrator classifies on. Context expiry always wins so a
// deadline that fires mid-exchange is reported as a timeout rather than a
// transport fault.
func mapProviderError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", generation.ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", generation.ErrTimeout, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", generation.ErrRateLimited, err)
		case http.StatusNotImplemented:
			return fmt.Errorf("%w: %v", generation.ErrNotImplemented, err)
		default:
			return fmt.Errorf("%w: %v", generation.ErrTransport, err)
		}
	}

	return fmt.Errorf("%w: %v", generation.ErrTransport, err)
}
