// internal/signature/signature_test.go
package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerify(t *testing.T) {
	secret := "it's a secret to everybody"
	body := []byte(`{"ref":"refs/heads/main","commits":[]}`)

	t.Run("accepts a valid signature", func(t *testing.T) {
		header := Sign(body, secret)
		assert.True(t, Verify(body, header, secret))
	})

	t.Run("rejects a mutated payload", func(t *testing.T) {
		header := Sign(body, secret)
		mutated := append([]byte(nil), body...)
		mutated[0] ^= 0x01
		assert.False(t, Verify(mutated, header, secret))
	})

	t.Run("rejects the wrong secret", func(t *testing.T) {
		header := Sign(body, secret)
		assert.False(t, Verify(body, header, "some other secret"))
	})

	t.Run("rejects an empty header", func(t *testing.T) {
		assert.False(t, Verify(body, "", secret))
	})

	t.Run("rejects a header without the sha256 prefix", func(t *testing.T) {
		header := Sign(body, secret)
		assert.False(t, Verify(body, header[len("sha256="):], secret))
		assert.False(t, Verify(body, "sha1=deadbeef", secret))
	})

	t.Run("rejects a non-hex signature value", func(t *testing.T) {
		assert.False(t, Verify(body, "sha256=not-hex-at-all", secret))
	})

	t.Run("fails closed when the secret is unconfigured", func(t *testing.T) {
		header := Sign(body, "")
		assert.False(t, Verify(body, header, ""))
	})

	t.Run("known vector", func(t *testing.T) {
		// Matches GitHub's documented example for secret/payload pairs.
		got := Sign([]byte("Hello, World!"), "It's a Secret to Everybody")
		assert.Equal(t, "sha256=757107ea0eb2509fc211221cce984b8a37570b6d7586c22c46f4379c8b043e17", got)
	})
}
