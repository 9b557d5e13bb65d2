package openai

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/flemzord/mcpflow/internal/provider"
)

// scannerBufferSize is the max SSE line length. Data lines carrying long
// tool arguments exceed bufio.Scanner's 64 KiB default.
const scannerBufferSize = 1 << 20

var errMalformedChunk = errors.New("openai: malformed stream chunk")

// errTruncated reports a body that ended without [DONE] or a finish reason.
var errTruncated = fmt.Errorf("%w: openai: stream ended before [DONE]", provider.ErrProviderDown)

// sendChunk sends a StreamChunk on ch. Returns false if ctx was cancelled.
func sendChunk(ctx context.Context, ch chan<- provider.StreamChunk, chunk provider.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// readStream reads an SSE body and forwards decoded chunks on ch. Tool-call
// fragments are forwarded as indexed deltas; assembling them is left to the
// consumer. ch is closed when the stream ends ([DONE], EOF, an error or ctx
// cancellation) and body is always closed. A body that ends before [DONE]
// and before any finish_reason is reported as errTruncated.
func readStream(ctx context.Context, body io.ReadCloser, ch chan<- provider.StreamChunk) {
	defer close(ch)
	defer func() { _ = body.Close() }()

	// Closing the body unblocks the scanner on cancellation.
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), scannerBufferSize)

	finished := false
	for scanner.Scan() {
		data, ok := strings.CutPrefix(scanner.Text(), "data:")
		if !ok {
			// Comments, event names and blank separators.
			continue
		}
		data = strings.TrimSpace(data)
		switch data {
		case "":
			continue
		case "[DONE]":
			return
		}

		chunk, ok := decodeChunk(data)
		if !ok {
			continue
		}
		if !sendChunk(ctx, ch, chunk) || chunk.Err != nil {
			return
		}
		finished = finished || chunk.FinishReason != ""
	}

	if err := ctx.Err(); err != nil {
		sendChunk(ctx, ch, provider.StreamChunk{Err: err})
		return
	}
	if err := scanner.Err(); err != nil {
		sendChunk(ctx, ch, provider.StreamChunk{Err: mapConnectionError(err)})
		return
	}
	if !finished {
		sendChunk(ctx, ch, provider.StreamChunk{Err: errTruncated})
	}
}

// decodeChunk converts one SSE data payload. It reports false when the
// payload carries nothing worth forwarding. An error payload becomes a chunk
// with Err set.
func decodeChunk(data string) (provider.StreamChunk, bool) {
	if !gjson.Valid(data) {
		return provider.StreamChunk{Err: errMalformedChunk}, true
	}
	payload := gjson.Parse(data)
	if apiErr := payload.Get("error"); apiErr.Exists() {
		return provider.StreamChunk{Err: classifyBody(0, apiErr)}, true
	}

	var sc provider.StreamChunk

	// Usage arrives with stream_options.include_usage, usually on a final
	// chunk without choices.
	if usage := payload.Get("usage"); usage.IsObject() {
		sc.Usage = &provider.TokenUsage{
			PromptTokens:     int(usage.Get("prompt_tokens").Int()),
			CompletionTokens: int(usage.Get("completion_tokens").Int()),
			TotalTokens:      int(usage.Get("total_tokens").Int()),
		}
	}

	choice := payload.Get("choices.0")
	sc.Content = choice.Get("delta.content").String()
	sc.FinishReason = finishReason(choice.Get("finish_reason").String())
	choice.Get("delta.tool_calls").ForEach(func(_, tc gjson.Result) bool {
		sc.ToolCallDeltas = append(sc.ToolCallDeltas, provider.ToolCallDelta{
			Index:     int(tc.Get("index").Int()),
			ID:        tc.Get("id").String(),
			Name:      tc.Get("function.name").String(),
			Arguments: tc.Get("function.arguments").String(),
		})
		return true
	})

	empty := sc.Content == "" && len(sc.ToolCallDeltas) == 0 && sc.FinishReason == "" && sc.Usage == nil
	return sc, !empty
}
