package openai

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/flemzord/mcpflow/internal/provider"
)

const (
	completionsPath = "/chat/completions"

	// maxErrorBody bounds how much of a failed response is read.
	maxErrorBody = 1 << 20

	chunkBuffer = 64
)

// chatBody builds the request body. Values set on the request win over
// the configured defaults.
func (p *Provider) chatBody(req provider.CompletionRequest) ([]byte, error) {
	doc := newDocument(`{"stream":true,"stream_options":{"include_usage":true}}`)
	doc.set("model", p.config.Model)
	putMessages(doc, req.Messages)
	putTools(doc, req.Tools)
	if n := cmp.Or(req.MaxTokens, p.config.MaxTokens); n > 0 {
		doc.set("max_tokens", n)
	}
	if t := cmp.Or(req.Temperature, p.config.Temperature); t != nil {
		doc.set("temperature", *t)
	}
	if tp := cmp.Or(req.TopP, p.config.TopP); tp != nil {
		doc.set("top_p", *tp)
	}
	if len(req.Stop) > 0 {
		doc.set("stop", req.Stop)
	}
	body, err := doc.bytes()
	if err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}
	return body, nil
}

// post builds an authenticated POST to path below the base URL. Configured
// extra headers are applied last and may override the defaults.
func (p *Provider) post(ctx context.Context, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if p.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	}
	if p.config.Organization != "" {
		req.Header.Set("OpenAI-Organization", p.config.Organization)
	}
	for k, v := range p.config.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Stream opens a streaming completion. Failures before the first byte of
// the stream (connection, HTTP status) are returned directly; later ones
// arrive as a chunk with Err set, after which the channel is closed.
func (p *Provider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	body, err := p.chatBody(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := p.post(ctx, completionsPath, body)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, mapConnectionError(err)
	}
	if resp.StatusCode/100 != 2 {
		defer func() { _ = resp.Body.Close() }()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, mapHTTPError(resp.StatusCode, raw)
	}

	p.logger.Debug("stream opened", "messages", len(req.Messages), "tools", len(req.Tools), "bytes", len(body))

	ch := make(chan provider.StreamChunk, chunkBuffer)
	go readStream(ctx, resp.Body, ch)
	return ch, nil
}
