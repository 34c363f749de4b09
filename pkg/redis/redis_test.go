package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, (&Config{}).Validate(), "disabled config is always valid")
	assert.Error(t, (&Config{Enabled: true}).Validate())
	assert.Error(t, (&Config{Enabled: true, Addr: "localhost:6379", DialTimeout: "soon"}).Validate())
	assert.NoError(t, (&Config{Enabled: true, Addr: "localhost:6379", DialTimeout: "2s"}).Validate())
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), Config{Enabled: true, Addr: mr.Addr()})
	require.NoError(t, err)
	require.NotNil(t, client)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewClientDisabled(t *testing.T) {
	client, err := NewClient(context.Background(), Config{})
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestNewClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewClient(context.Background(), Config{Enabled: true, Addr: addr, DialTimeout: "500ms"})
	assert.Error(t, err)
}
