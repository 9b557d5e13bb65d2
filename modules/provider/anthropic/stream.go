package anthropic

import (
	"context"
	"fmt"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/flemzord/mcpflow/internal/provider"
)

// maxToolBlocks bounds the number of tool_use content blocks accepted in a
// single turn, in case a misbehaving server never stops opening new ones.
const maxToolBlocks = 100

const streamBufferSize = 64

// errTruncated reports a stream that ended without a stop reason or
// message_stop.
var errTruncated = fmt.Errorf("%w: provider.anthropic: stream ended before message_stop", provider.ErrProviderDown)

// Stream implements provider.Provider. The first event is read before
// returning so that auth, network and 4xx failures surface as the error;
// later failures arrive as StreamChunk.Err.
func (a *Anthropic) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	params := buildParams(req, &a.config)
	a.logger.Debug("anthropic request",
		"turns", len(params.Messages),
		"tools", len(params.Tools),
		"max_tokens", params.MaxTokens,
	)

	stream := a.client.Messages.NewStreaming(ctx, params)
	if !stream.Next() {
		err := stream.Err()
		_ = stream.Close()
		if err != nil {
			return nil, mapError(err)
		}
		return nil, errTruncated
	}

	ch := make(chan provider.StreamChunk, streamBufferSize)
	go func() {
		defer close(ch)
		defer func() { _ = stream.Close() }()

		dec := decoder{tools: make(map[int64]int)}
		for event := stream.Current(); ; event = stream.Current() {
			chunks, err := dec.decode(event)
			for _, c := range chunks {
				if !emit(ctx, ch, c) {
					return
				}
			}
			if err != nil {
				emit(ctx, ch, provider.StreamChunk{Err: err})
				return
			}
			if !stream.Next() {
				break
			}
		}
		switch err := stream.Err(); {
		case ctx.Err() != nil:
		case err != nil:
			emit(ctx, ch, provider.StreamChunk{Err: mapError(err)})
		case !dec.done:
			emit(ctx, ch, provider.StreamChunk{Err: errTruncated})
		}
	}()
	return ch, nil
}

// decoder turns Messages API stream events into provider chunks for one
// turn.
type decoder struct {
	inputTokens int64

	// tools maps a content block index to the ordinal of the tool call it
	// carries. Text blocks share the block index space, so ordinals are
	// assigned separately to keep tool-call indices dense.
	tools map[int64]int

	// done is set once the turn has a stop reason or message_stop arrived.
	done bool
}

func (d *decoder) decode(event sdkanthropic.MessageStreamEventUnion) ([]provider.StreamChunk, error) {
	switch ev := event.AsAny().(type) {
	case sdkanthropic.MessageStartEvent:
		d.inputTokens = ev.Message.Usage.InputTokens

	case sdkanthropic.ContentBlockStartEvent:
		if ev.ContentBlock.Type != "tool_use" {
			return nil, nil
		}
		if len(d.tools) >= maxToolBlocks {
			return nil, fmt.Errorf("provider.anthropic: more than %d tool calls in one turn", maxToolBlocks)
		}
		idx := len(d.tools)
		d.tools[ev.Index] = idx
		return []provider.StreamChunk{{ToolCallDeltas: []provider.ToolCallDelta{{
			Index: idx,
			ID:    ev.ContentBlock.ID,
			Name:  ev.ContentBlock.Name,
		}}}}, nil

	case sdkanthropic.ContentBlockDeltaEvent:
		switch delta := ev.Delta.AsAny().(type) {
		case sdkanthropic.TextDelta:
			if delta.Text != "" {
				return []provider.StreamChunk{{Content: delta.Text}}, nil
			}
		case sdkanthropic.InputJSONDelta:
			if idx, ok := d.tools[ev.Index]; ok && delta.PartialJSON != "" {
				return []provider.StreamChunk{{ToolCallDeltas: []provider.ToolCallDelta{{
					Index:     idx,
					Arguments: delta.PartialJSON,
				}}}}, nil
			}
		}

	case sdkanthropic.MessageStopEvent:
		d.done = true

	case sdkanthropic.MessageDeltaEvent:
		d.done = d.done || ev.Delta.StopReason != ""
		out := ev.Usage.OutputTokens
		return []provider.StreamChunk{{
			FinishReason: finishReason(ev.Delta.StopReason),
			Usage: &provider.TokenUsage{
				PromptTokens:     int(d.inputTokens),
				CompletionTokens: int(out),
				TotalTokens:      int(d.inputTokens + out),
			},
		}}, nil
	}
	return nil, nil
}

// emit sends a chunk unless ctx is done first.
func emit(ctx context.Context, ch chan<- provider.StreamChunk, chunk provider.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}
