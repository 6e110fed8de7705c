package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSaltUnique(t *testing.T) {
	a, err := GenerateSalt()
	require.NoError(t, err)
	b, err := GenerateSalt()
	require.NoError(t, err)
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestHashDeterministic(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	assert.Equal(t, Hash("secret", salt), Hash("secret", salt))
	assert.NotEqual(t, Hash("secret", salt), Hash("other", salt))
}

func TestVerify(t *testing.T) {
	salt, err := GenerateSalt()
	require.NoError(t, err)
	hash := Hash("secret", salt)

	assert.True(t, Verify("secret", hash, salt))
	assert.False(t, Verify("wrong", hash, salt))
	// Swapping hash and salt must never verify.
	assert.False(t, Verify("secret", salt, hash))

	otherSalt, err := GenerateSalt()
	require.NoError(t, err)
	assert.False(t, Verify("secret", hash, otherSalt))
}
