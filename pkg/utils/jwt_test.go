package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken_GenerateAndValidate(t *testing.T) {
	token, err := GenerateToken("0123456789abcdef", "compose", time.Minute)
	require.NoError(t, err)

	claims, err := ValidateToken("0123456789abcdef", token)
	require.NoError(t, err)
	assert.Equal(t, "compose", claims.Subject)
}

func TestToken_Rejected(t *testing.T) {
	token, err := GenerateToken("0123456789abcdef", "compose", time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken("another-secret-key", token)
	assert.Error(t, err)

	expired, err := GenerateToken("0123456789abcdef", "compose", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken("0123456789abcdef", expired)
	assert.Error(t, err)
}
