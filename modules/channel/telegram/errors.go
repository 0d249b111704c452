package telegram

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/flemzord/lookupbot/internal/channel"
	"github.com/flemzord/lookupbot/internal/instance"
)

// ErrUnauthorized means the bot token was rejected.
var ErrUnauthorized = instance.ErrTokenRejected

// classify wraps an API error with the sentinel callers branch on. The
// *APIError stays reachable through errors.As.
func classify(apiErr *APIError) error {
	desc := strings.ToLower(apiErr.Description)
	switch {
	case apiErr.Code == http.StatusConflict:
		return fmt.Errorf("%w: %w", instance.ErrConflict, apiErr)
	case apiErr.Code == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrUnauthorized, apiErr)
	case apiErr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %w", channel.ErrBlocked, apiErr)
	case apiErr.Code == http.StatusBadRequest &&
		(strings.Contains(desc, "message to delete not found") ||
			strings.Contains(desc, "message can't be deleted") ||
			strings.Contains(desc, "message to edit not found")):
		return fmt.Errorf("%w: %w", channel.ErrMessageGone, apiErr)
	default:
		return apiErr
	}
}

// fatal reports whether a polling error ends the bot instead of being
// retried.
func fatal(err error) bool {
	return errors.Is(err, instance.ErrConflict) || errors.Is(err, ErrUnauthorized)
}
