package article

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("https://x/a1", "Apple jumps")
	b := Fingerprint("https://x/a1", "Apple jumps")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFingerprint_NormalizesWhitespace(t *testing.T) {
	a := Fingerprint("  https://x/a1  ", "Apple jumps\n")
	b := Fingerprint("https://x/a1", "Apple jumps")
	assert.Equal(t, a, b)
}

func TestFingerprint_BodyIndependent(t *testing.T) {
	// Identity is (url, title) only; differing titles or urls diverge.
	assert.NotEqual(t,
		Fingerprint("https://x/a1", "Apple jumps"),
		Fingerprint("https://x/a2", "Apple jumps"),
	)
	assert.NotEqual(t,
		Fingerprint("https://x/a1", "Apple jumps"),
		Fingerprint("https://x/a1", "Apple dips"),
	)
}
