package credits

import (
	"crypto/hmac"
	"crypto/sha256"
)

// Signer computes and verifies HMAC-SHA256 tags under a server-held secret.
type Signer struct {
	secret []byte
}

// NewSigner creates a signer for the given secret.
func NewSigner(secret []byte) *Signer {
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Signer{secret: key}
}

// Sign returns the HMAC-SHA256 tag of message.
func (s *Signer) Sign(message []byte) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(message)
	return mac.Sum(nil)
}

// Verify reports whether tag is the tag of message.
// The comparison is constant-time; a length mismatch is simply false.
func (s *Signer) Verify(message, tag []byte) bool {
	return hmac.Equal(s.Sign(message), tag)
}
