package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStaticAuthValidatesRegisteredKey(t *testing.T) {
	a := NewStaticAuth(map[string]string{"bot-1": "secret-key"})

	ok, err := a.Validate(context.Background(), "bot-1", "secret-key")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestStaticAuthRejectsWrongKey(t *testing.T) {
	a := NewStaticAuth(map[string]string{"bot-1": "secret-key"})

	ok, err := a.Validate(context.Background(), "bot-1", "wrong-key")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStaticAuthRejectsUnknownBot(t *testing.T) {
	a := NewStaticAuth(map[string]string{"bot-1": "secret-key"})

	ok, err := a.Validate(context.Background(), "bot-2", "secret-key")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStaticAuthCopiesInputMap(t *testing.T) {
	keys := map[string]string{"bot-1": "secret-key"}
	a := NewStaticAuth(keys)
	keys["bot-1"] = "mutated"

	ok, err := a.Validate(context.Background(), "bot-1", "secret-key")
	require.NoError(t, err)
	require.True(t, ok, "StaticAuth must not be affected by mutating the map passed to NewStaticAuth")
}
