package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

const (
	HeaderEvent     = "X-Landr-Event"
	HeaderDelivery  = "X-Landr-Delivery"
	HeaderSignature = "X-Landr-Signature"
)

// Sign returns the hex HMAC-SHA256 of payload keyed by secret.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// SignatureHeader is the X-Landr-Signature value for payload.
func SignatureHeader(secret string, payload []byte) string {
	return "sha256=" + Sign(secret, payload)
}

// Verify checks a received X-Landr-Signature header in constant time.
func Verify(secret string, payload []byte, header string) bool {
	return hmac.Equal([]byte(header), []byte(SignatureHeader(secret, payload)))
}
