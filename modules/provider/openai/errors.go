package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/flemzord/mcpflow/internal/provider"
)

// mapHTTPError maps a non-2xx response to a provider sentinel error.
// Returns nil for 2xx status codes.
func mapHTTPError(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	apiErr := gjson.GetBytes(body, "error")
	if !apiErr.Exists() {
		return classify(status, "", strings.TrimSpace(string(body)))
	}
	return classifyBody(status, apiErr)
}

// classifyBody maps an error object as sent by OpenAI-compatible servers:
// {"message", "type", "code"}. Some servers put the HTTP status in code.
func classifyBody(status int, apiErr gjson.Result) error {
	msg := apiErr.Get("message").String()
	if msg == "" {
		msg = apiErr.Raw
	}
	code := apiErr.Get("code")
	if status == 0 && code.Type == gjson.Number {
		status = int(code.Int())
	}
	kind := apiErr.Get("type").String()
	if code.Type == gjson.String {
		kind = code.String()
	}
	return classify(status, kind, msg)
}

func classify(status int, kind, msg string) error {
	switch {
	case status == http.StatusTooManyRequests || kind == "rate_limit_exceeded":
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden || kind == "invalid_api_key":
		return fmt.Errorf("%w: %s", provider.ErrAuth, msg)
	case kind == "context_length_exceeded" ||
		(status == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "context_length")):
		return fmt.Errorf("%w: %s", provider.ErrContextLength, msg)
	case status >= http.StatusInternalServerError || kind == "server_error":
		return fmt.Errorf("%w: %s", provider.ErrProviderDown, msg)
	case status == 0:
		return fmt.Errorf("openai: stream error: %s", msg)
	default:
		return fmt.Errorf("openai: HTTP %d: %s", status, msg)
	}
}

// mapConnectionError maps network-level errors to provider sentinel errors.
// Context errors pass through unchanged.
func mapConnectionError(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", provider.ErrProviderDown, err)
	}
	return fmt.Errorf("openai: %w", err)
}
