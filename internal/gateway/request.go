package gateway

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/flemzord/mcpflow/internal/runner"
	"github.com/flemzord/mcpflow/internal/security"
)

var errMissingInput = errors.New("input is required")

// runRequest is a parsed run submission.
type runRequest struct {
	runner.Request
	// Stream selects an SSE response on POST /v1/runs.
	Stream bool
}

// parseRunRequest validates and decodes a run submission:
//
//	{"input": "...", "session_id": "...", "system_prompt": "...",
//	 "max_iterations": 5, "break_if_error": true, "stream": true}
func (g *Gateway) parseRunRequest(body []byte) (runRequest, error) {
	if err := security.CheckPayload(body, g.config.MaxBodyBytes, g.config.MaxBodyDepth); err != nil {
		return runRequest{}, err
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return runRequest{}, fmt.Errorf("%w: body must be a JSON object", security.ErrInvalidPayload)
	}

	req := runRequest{
		Request: runner.Request{
			Input:         doc.Get("input").String(),
			SessionID:     doc.Get("session_id").String(),
			SystemPrompt:  doc.Get("system_prompt").String(),
			MaxIterations: int(doc.Get("max_iterations").Int()),
		},
		Stream: doc.Get("stream").Bool(),
	}
	if req.Input == "" {
		return runRequest{}, errMissingInput
	}
	if req.MaxIterations < 0 {
		return runRequest{}, errors.New("max_iterations must not be negative")
	}
	if v := doc.Get("break_if_error"); v.Exists() {
		b := v.Bool()
		req.BreakIfError = &b
	}
	return req, nil
}
