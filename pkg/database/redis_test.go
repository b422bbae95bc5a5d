package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisClient_EmptyURL(t *testing.T) {
	client, err := NewRedisClient("")
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient("not-a-redis-url")
	assert.Error(t, err)
}

func TestNewRedisClient_DoesNotDial(t *testing.T) {
	// Nothing listens on port 1; construction must still succeed so the
	// cache factory can detect the outage and fall back to disk.
	client, err := NewRedisClient("redis://127.0.0.1:1/0")
	require.NoError(t, err)
	require.NotNil(t, client)
	client.Close()
}
