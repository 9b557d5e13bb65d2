package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"

	"github.com/flemzord/mcpflow/internal/provider"
)

// mapError converts an SDK error into a provider sentinel. The error body's
// error.type decides first; the status code is the fallback.
func mapError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *sdkanthropic.Error
	if !errors.As(err, &apiErr) {
		// Mid-stream error events carry the raw body in the message.
		if strings.Contains(err.Error(), "overloaded_error") {
			return fmt.Errorf("%w: %s", provider.ErrProviderDown, err.Error())
		}
		return err
	}

	raw := apiErr.RawJSON()
	kind := gjson.Get(raw, "error.type").String()
	msg := gjson.Get(raw, "error.message").String()
	if msg == "" {
		msg = apiErr.Error()
	}
	status := apiErr.StatusCode

	switch {
	case kind == "rate_limit_error" || status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, msg)
	case kind == "authentication_error" || kind == "permission_error" ||
		status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d: %s", provider.ErrAuth, status, msg)
	case kind == "overloaded_error" || kind == "api_error" || status == 529 || status >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", provider.ErrProviderDown, msg)
	case status == http.StatusBadRequest && exceedsContext(msg):
		return fmt.Errorf("%w: %s", provider.ErrContextLength, msg)
	default:
		return fmt.Errorf("provider.anthropic: HTTP %d: %w", status, err)
	}
}

// exceedsContext reports whether an invalid_request_error message is about
// the context window.
func exceedsContext(msg string) bool {
	msg = strings.ToLower(msg)
	for _, hint := range []string{"prompt is too long", "context length", "context window", "too many tokens"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
