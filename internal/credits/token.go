package credits

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// PayloadVersion is the schema tag written into every token.
const PayloadVersion = 1

// Payload is the data carried inside a credit token.
type Payload struct {
	Version int   `json:"v"`
	Credits int64 `json:"credits"`
	// IssuedAt is unix milliseconds. It is informational; freshness is bounded
	// only by the cookie's max-age.
	IssuedAt int64 `json:"iat"`
	// Seq increases by one on every write and is used to detect a slot that
	// changed underneath a read-modify-write.
	Seq int64 `json:"seq,omitempty"`
}

// encoding is unpadded base64url. Decoding is strict so that a flipped
// trailing character never maps back to the same bytes.
var encoding = base64.RawURLEncoding

// Codec converts payloads to and from signed tokens of the form
// base64url(json) "." base64url(hmac(base64url(json))).
type Codec struct {
	signer *Signer
}

// NewCodec creates a codec that signs with the given signer.
func NewCodec(signer *Signer) *Codec {
	return &Codec{signer: signer}
}

// Encode serializes and signs a payload.
func (c *Codec) Encode(p Payload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to marshal credit payload: %w", err)
	}
	body := encoding.EncodeToString(raw)
	sig := encoding.EncodeToString(c.signer.Sign([]byte(body)))
	return body + "." + sig, nil
}

// Decode verifies and parses a token. ok is false for anything that is not a
// token this codec produced under the current secret.
func (c *Codec) Decode(token string) (p Payload, ok bool) {
	body, sig, found := strings.Cut(token, ".")
	if !found || body == "" || sig == "" || strings.Contains(sig, ".") {
		return Payload{}, false
	}

	tag, err := encoding.Strict().DecodeString(sig)
	if err != nil {
		return Payload{}, false
	}
	if !c.signer.Verify([]byte(body), tag) {
		return Payload{}, false
	}

	raw, err := encoding.Strict().DecodeString(body)
	if err != nil {
		return Payload{}, false
	}
	return parsePayload(raw)
}

// parsePayload accepts any JSON object whose credits field is a number.
func parsePayload(raw []byte) (Payload, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Payload{}, false
	}

	credits, ok := numberField(fields, "credits")
	if !ok {
		return Payload{}, false
	}

	p := Payload{Credits: clamp(credits)}
	if v, ok := numberField(fields, "v"); ok {
		p.Version = int(v)
	}
	if iat, ok := numberField(fields, "iat"); ok {
		p.IssuedAt = int64(iat)
	}
	if seq, ok := numberField(fields, "seq"); ok && seq > 0 {
		p.Seq = int64(seq)
	}
	return p, true
}

func numberField(fields map[string]json.RawMessage, name string) (float64, bool) {
	raw, ok := fields[name]
	if !ok {
		return 0, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil || math.IsNaN(n) {
		return 0, false
	}
	return n, true
}
