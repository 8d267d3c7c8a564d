// Package auth delegates bot credential checks to an external
// validator (§6: "Credential validation is delegated to an external
// BotAuth with method validate(botId, apiKey) -> bool"); the core
// itself persists nothing.
package auth

import (
	"context"
	"crypto/subtle"
)

// BotAuth validates a bot's credentials before it is allowed to seat.
type BotAuth interface {
	Validate(ctx context.Context, botID, apiKey string) (bool, error)
}

// StaticAuth is an in-memory BotAuth seeded from a fixed credential
// map, for local development and tests — not a persistence layer.
type StaticAuth struct {
	keys map[string]string
}

// NewStaticAuth builds a StaticAuth from botID->apiKey pairs.
func NewStaticAuth(keys map[string]string) *StaticAuth {
	copied := make(map[string]string, len(keys))
	for k, v := range keys {
		copied[k] = v
	}
	return &StaticAuth{keys: copied}
}

// Validate compares the supplied key against the registered one in
// constant time, so a timing side-channel can't be used to guess a
// valid key byte by byte.
func (a *StaticAuth) Validate(_ context.Context, botID, apiKey string) (bool, error) {
	want, ok := a.keys[botID]
	if !ok {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(apiKey)) == 1, nil
}
