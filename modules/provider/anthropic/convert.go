package anthropic

import (
	"cmp"
	"encoding/json"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"

	"github.com/flemzord/mcpflow/internal/provider"
)

// systemNoteTag marks system messages that appear mid-conversation. The
// Messages API only accepts a system prompt up front, so later notes
// (compaction summaries, repeat warnings) travel as tagged user text.
const systemNoteTag = "[system note]\n"

// buildParams maps a completion request onto Messages API parameters.
// Leading system messages become the system prompt.
func buildParams(req provider.CompletionRequest, cfg *Config) sdkanthropic.MessageNewParams {
	i := 0
	var system []sdkanthropic.TextBlockParam
	for ; i < len(req.Messages) && req.Messages[i].Role == provider.MessageRoleSystem; i++ {
		system = append(system, sdkanthropic.TextBlockParam{Text: req.Messages[i].Content})
	}

	params := sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(cfg.Model),
		MaxTokens: int64(cfg.MaxTokens),
		System:    system,
		Messages:  buildTurns(req.Messages[i:]),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if t := cmp.Or(req.Temperature, cfg.Temperature); t != nil {
		params.Temperature = sdkanthropic.Float(*t)
	}
	if p := cmp.Or(req.TopP, cfg.TopP); p != nil {
		params.TopP = sdkanthropic.Float(*p)
	}
	if len(req.Stop) > 0 {
		params.StopSequences = req.Stop
	}
	for _, def := range req.Tools {
		params.Tools = append(params.Tools, toolParam(def))
	}
	return params
}

// turns accumulates Anthropic messages. Blocks for the same role as the
// previous message are merged into it, so tool results, the notes that
// follow them and user input always form one user turn.
type turns []sdkanthropic.MessageParam

func (t *turns) add(role sdkanthropic.MessageParamRole, blocks ...sdkanthropic.ContentBlockParamUnion) {
	if len(blocks) == 0 {
		return
	}
	if n := len(*t); n > 0 && (*t)[n-1].Role == role {
		(*t)[n-1].Content = append((*t)[n-1].Content, blocks...)
		return
	}
	*t = append(*t, sdkanthropic.MessageParam{Role: role, Content: blocks})
}

// buildTurns converts the conversation after the system prompt.
func buildTurns(msgs []provider.LLMMessage) []sdkanthropic.MessageParam {
	var out turns
	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			out.add(sdkanthropic.MessageParamRoleUser, sdkanthropic.NewTextBlock(msg.Content))
		case provider.MessageRoleSystem:
			out.add(sdkanthropic.MessageParamRoleUser, sdkanthropic.NewTextBlock(systemNoteTag+msg.Content))
		case provider.MessageRoleTool:
			out.add(sdkanthropic.MessageParamRoleUser,
				sdkanthropic.NewToolResultBlock(msg.ToolID, msg.Content, msg.IsError))
		case provider.MessageRoleAssistant:
			var blocks []sdkanthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, sdkanthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, sdkanthropic.NewToolUseBlock(tc.ID, provider.ObjectArguments(tc.Arguments), tc.Name))
			}
			out.add(sdkanthropic.MessageParamRoleAssistant, blocks...)
		}
	}
	return out
}

// toolParam converts a tool definition.
func toolParam(def provider.ToolDefinition) sdkanthropic.ToolUnionParam {
	tp := &sdkanthropic.ToolParam{
		Name:        def.Name,
		InputSchema: inputSchema(def.Parameters),
	}
	if def.Description != "" {
		tp.Description = sdkanthropic.String(def.Description)
	}
	return sdkanthropic.ToolUnionParam{OfTool: tp}
}

// inputSchema splits a JSON Schema into the SDK's typed fields. Keywords
// other than properties and required ($defs, enum, additionalProperties...)
// are carried in ExtraFields; "type" is always "object" and set by the SDK.
func inputSchema(raw json.RawMessage) sdkanthropic.ToolInputSchemaParam {
	var param sdkanthropic.ToolInputSchemaParam
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return param
	}

	extra := make(map[string]any)
	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		switch key.String() {
		case "type":
		case "properties":
			param.Properties = value.Value()
		case "required":
			for _, name := range value.Array() {
				param.Required = append(param.Required, name.String())
			}
		default:
			extra[key.String()] = value.Value()
		}
		return true
	})
	if len(extra) > 0 {
		param.ExtraFields = extra
	}
	return param
}

// finishReason maps an Anthropic stop reason to a provider FinishReason.
func finishReason(reason sdkanthropic.StopReason) provider.FinishReason {
	switch reason {
	case sdkanthropic.StopReasonMaxTokens:
		return provider.FinishReasonLength
	case sdkanthropic.StopReasonToolUse:
		return provider.FinishReasonToolUse
	case sdkanthropic.StopReasonRefusal:
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonStop
	}
}
