// Package security holds the guards applied to secrets and to untrusted
// input: log redaction, request payload checks and run rate limiting.
package security

import (
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// RedactPlaceholder replaces every redacted secret.
const RedactPlaceholder = "***REDACTED***"

// secretKey matches configuration keys whose values are secrets.
var secretKey = regexp.MustCompile(`(?i)(secret|token|password|api_key|apikey|authorization)`)

// defaultPatterns cover the key formats of the providers mcpflow talks to.
var defaultPatterns = []*regexp.Regexp{
	regexp.MustCompile(`sk-ant-[a-zA-Z0-9\-_]{20,}`),
	regexp.MustCompile(`sk-[a-zA-Z0-9\-_]{20,}`),
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-_.=]{16,}`),
}

// Redactor masks known secret formats and literal secret values.
// It is safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*regexp.Regexp
	literals []string
}

// NewRedactor returns a Redactor with the default key patterns.
func NewRedactor() *Redactor {
	return &Redactor{patterns: defaultPatterns}
}

// AddLiteral registers values to mask verbatim. Empty values are ignored.
func (r *Redactor) AddLiteral(secrets ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range secrets {
		if s != "" {
			r.literals = append(r.literals, s)
		}
	}
}

// Redact returns s with every known secret replaced by RedactPlaceholder.
func (r *Redactor) Redact(s string) string {
	if s == "" {
		return s
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, lit := range r.literals {
		s = strings.ReplaceAll(s, lit, RedactPlaceholder)
	}
	for _, p := range r.patterns {
		s = p.ReplaceAllString(s, RedactPlaceholder)
	}
	return s
}

// ConfigSecrets walks a YAML tree and returns the scalar values stored under
// secret-looking keys, such as provider API keys or gateway tokens.
func ConfigSecrets(node *yaml.Node) []string {
	var out []string
	var walk func(n *yaml.Node)
	walk = func(n *yaml.Node) {
		if n == nil {
			return
		}
		switch n.Kind {
		case yaml.DocumentNode, yaml.SequenceNode:
			for _, c := range n.Content {
				walk(c)
			}
		case yaml.MappingNode:
			for i := 0; i+1 < len(n.Content); i += 2 {
				key, val := n.Content[i], n.Content[i+1]
				if val.Kind == yaml.ScalarNode && secretKey.MatchString(key.Value) {
					if val.Value != "" {
						out = append(out, val.Value)
					}
					continue
				}
				walk(val)
			}
		}
	}
	walk(node)
	return out
}
