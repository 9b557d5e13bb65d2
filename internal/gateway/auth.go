package gateway

import (
	"context"
	"crypto/subtle"
	"net"
	"net/http"
	"strconv"
	"strings"
)

type principalKey struct{}

// authenticator checks API credentials in constant time. A nil
// authenticator means the API is open.
type authenticator struct {
	tokens     [][]byte
	user, pass []byte
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	a := &authenticator{}
	for _, tok := range cfg.bearerTokens() {
		a.tokens = append(a.tokens, []byte(tok))
	}
	if cfg.BasicUser != "" {
		a.user, a.pass = []byte(cfg.BasicUser), []byte(cfg.BasicPass)
	}
	if len(a.tokens) == 0 && a.user == nil {
		return nil
	}
	return a
}

// principal names the caller r authenticates as. Bearer callers are named
// by token position so each token gets its own rate limit.
func (a *authenticator) principal(r *http.Request) (string, bool) {
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		for i, want := range a.tokens {
			if subtle.ConstantTimeCompare([]byte(token), want) == 1 {
				return "bearer:" + strconv.Itoa(i), true
			}
		}
		return "", false
	}
	user, pass, ok := r.BasicAuth()
	if !ok || a.user == nil {
		return "", false
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), a.user)
	passOK := subtle.ConstantTimeCompare([]byte(pass), a.pass)
	if userOK&passOK != 1 {
		return "", false
	}
	return "basic:" + user, true
}

func (a *authenticator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := a.principal(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="mcpflow"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

// clientKey identifies the caller for rate limiting: the authenticated
// principal when there is one, the remote host otherwise.
func clientKey(r *http.Request) string {
	if p, ok := r.Context().Value(principalKey{}).(string); ok {
		return p
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
