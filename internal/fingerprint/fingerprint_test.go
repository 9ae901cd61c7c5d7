package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute_Deterministic(t *testing.T) {
	t.Parallel()
	a := Compute("Acme Health opens new cardiac center")
	b := Compute("Acme Health opens new cardiac center")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestCompute_DistinctContent(t *testing.T) {
	t.Parallel()
	assert.NotEqual(t, Compute("page one"), Compute("page two"))
}

func TestCompute_KnownDigest(t *testing.T) {
	t.Parallel()
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", Compute("abc"))
}

func TestCompute_TrimsSurroundingWhitespace(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Compute("body text"), Compute("  body text\n\n"))
	// Interior whitespace is significant.
	assert.NotEqual(t, Compute("body text"), Compute("body  text"))
}

func TestCompute_UnicodeComposition(t *testing.T) {
	t.Parallel()
	composed := "Café"
	decomposed := "Café"
	assert.NotEqual(t, composed, decomposed)
	assert.Equal(t, Compute(composed), Compute(decomposed))
}

func TestCompute_Empty(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Compute(""), Compute("   "))
}
