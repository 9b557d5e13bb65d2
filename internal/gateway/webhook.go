package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"github.com/flemzord/mcpflow/internal/runner"
	"github.com/flemzord/mcpflow/internal/security"
)

// signatureHeader carries "sha256=<hex HMAC of the body>".
const signatureHeader = "X-Signature-256"

// handleWebhook serves POST /v1/webhooks/{source}. A correctly signed
// delivery starts a run in the background and is acknowledged with 202;
// the run outlives the request and is recorded like any other.
func (g *Gateway) handleWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		source := chi.URLParam(r, "source")
		cfg, ok := g.config.Webhooks[source]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown webhook source")
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(g.config.MaxBodyBytes)+1))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		if !validateHMAC(body, r.Header.Get(signatureHeader), cfg.Secret) {
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
		if err := security.CheckPayload(body, g.config.MaxBodyBytes, g.config.MaxBodyDepth); err != nil {
			g.writeRequestError(w, err)
			return
		}

		input := gjson.GetBytes(body, cfg.Input).String()
		if input == "" {
			writeError(w, http.StatusUnprocessableEntity, "payload has no value at "+cfg.Input)
			return
		}
		if cfg.Prompt != "" {
			input = strings.TrimSpace(cfg.Prompt) + "\n\n" + input
		}
		req := runner.Request{Input: input}
		if cfg.Session != "" {
			req.SessionID = gjson.GetBytes(body, cfg.Session).String()
		}

		release, err := g.limiter.Acquire("webhook:" + source)
		if err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		g.background.Go(func() {
			defer release()
			resp, err := g.runs.Run(g.base, req)
			if err != nil {
				g.logger.Warn("webhook run failed", "source", source, "run_id", resp.RunID, "error", err)
				return
			}
			g.logger.Info("webhook run completed", "source", source, "run_id", resp.RunID)
		})
		writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
	}
}

// validateHMAC checks HMAC-SHA256 signature in constant time.
func validateHMAC(body []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
