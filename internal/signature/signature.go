// internal/signature/signature.go
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

const prefix = "sha256="

// Verify reports whether signatureHeader is a valid HMAC-SHA256 signature
// over body keyed by secret, in GitHub's "sha256=<hex>" header form.
// Fails closed: an empty header, a malformed header, or an unconfigured
// secret all verify as false.
func Verify(body []byte, signatureHeader, secret string) bool {
	if secret == "" {
		return false
	}
	if signatureHeader == "" || !strings.HasPrefix(signatureHeader, prefix) {
		return false
	}

	provided, err := hex.DecodeString(strings.TrimPrefix(signatureHeader, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	return subtle.ConstantTimeCompare(provided, expected) == 1
}

// Sign computes the "sha256=<hex>" header value for body. Used by the
// delivery simulator and by tests.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return prefix + hex.EncodeToString(mac.Sum(nil))
}
