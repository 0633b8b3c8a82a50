package entity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forgeline/agora/pkg/errcode"
)

func TestGenPairKey(t *testing.T) {
	// Same key regardless of which side initiates
	assert.Equal(t, "3:9", GenPairKey(3, 9))
	assert.Equal(t, "3:9", GenPairKey(9, 3))
}

func TestParsePairKey(t *testing.T) {
	a, b, ok := ParsePairKey("3:9")
	assert.True(t, ok)
	assert.Equal(t, int64(3), a)
	assert.Equal(t, int64(9), b)

	for _, bad := range []string{"", ":", "3:", ":9", "a:b", "3-9"} {
		_, _, ok := ParsePairKey(bad)
		assert.False(t, ok, "pair key %q should not parse", bad)
	}
}

func TestPairKeyRoundTrip(t *testing.T) {
	a, b, ok := ParsePairKey(GenPairKey(100, 7))
	assert.True(t, ok)
	assert.Equal(t, int64(7), a)
	assert.Equal(t, int64(100), b)
}

func TestValidateBody(t *testing.T) {
	assert.NoError(t, ValidateBody("hello", 2000))
	assert.NoError(t, ValidateBody(strings.Repeat("x", 2000), 2000))

	assert.Equal(t, errcode.ErrEmptyBody, ValidateBody("", 2000))
	assert.Equal(t, errcode.ErrBodyTooLong, ValidateBody(strings.Repeat("x", 2001), 2000))
}
