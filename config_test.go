package triptalk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("TRIPTALK_USER_ID", "u1")
	t.Setenv("TRIPTALK_TOKEN", "tok")
	t.Setenv("TRIPTALK_ENDPOINT", "")
	t.Setenv("TRIPTALK_USER_ROLE", "")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "u1", cfg.UserID)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, "ws://localhost:9000/chat", cfg.Endpoint)
	assert.Equal(t, "customer", cfg.UserRole)
}

func TestConfigFromEnvRequiresUserID(t *testing.T) {
	t.Setenv("TRIPTALK_USER_ID", "")

	_, err := ConfigFromEnv()
	assert.Error(t, err)
}
