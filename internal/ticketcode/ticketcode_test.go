package ticketcode_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrada/entrada/internal/ticketcode"
)

func TestCode_Format(t *testing.T) {
	gen := ticketcode.NewGenerator()

	code, err := gen.Code()
	require.NoError(t, err)

	assert.Len(t, code, 8)
	for _, r := range code {
		assert.Contains(t, "0123456789ABCDEF", string(r))
	}
}

func TestCode_Uniqueness(t *testing.T) {
	gen := ticketcode.NewGenerator()

	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		code, err := gen.Code()
		require.NoError(t, err)
		seen[code] = struct{}{}
	}

	// 10k draws from a 2^32 space; a collision here means the generator
	// is broken, not unlucky.
	assert.Greater(t, len(seen), 9990)
}

func TestValidationHash_Format(t *testing.T) {
	gen := ticketcode.NewGenerator()

	h1, err := gen.ValidationHash()
	require.NoError(t, err)
	h2, err := gen.ValidationHash()
	require.NoError(t, err)

	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, h2)
}

func TestValidationHash_NotDerivedFromCode(t *testing.T) {
	gen := ticketcode.NewGenerator()

	code, err := gen.Code()
	require.NoError(t, err)
	hash, err := gen.ValidationHash()
	require.NoError(t, err)

	assert.NotContains(t, hash, code)
}
