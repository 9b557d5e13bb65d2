package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
)

// Payload limits applied when a caller does not set its own.
const (
	DefaultMaxPayloadBytes = 1 << 20
	DefaultMaxPayloadDepth = 32
)

// Payload errors.
var (
	ErrPayloadTooLarge = errors.New("payload exceeds maximum size")
	ErrPayloadTooDeep  = errors.New("payload nesting exceeds maximum depth")
	ErrInvalidPayload  = errors.New("payload is not valid JSON")
)

// CheckPayload rejects request bodies that are oversized, not JSON, or
// nested deeper than maxDepth. Non-positive limits select the defaults.
func CheckPayload(data []byte, maxBytes, maxDepth int) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPayloadBytes
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxPayloadDepth
	}
	if len(data) > maxBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(data), maxBytes)
	}
	if !gjson.ValidBytes(data) {
		return ErrInvalidPayload
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
			if depth > maxDepth {
				return fmt.Errorf("%w: depth %d (max %d)", ErrPayloadTooDeep, depth, maxDepth)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}
