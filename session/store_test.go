package session

import (
	"chat-bridge/domain"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStore_SetReplacesTheSingleSlot(t *testing.T) {
	req := require.New(t)
	store := NewStore()

	_, ok := store.Get()
	req.False(ok)

	store.Set(domain.Session{ChatID: "chat-1", ConnectionToken: "token-1"})
	store.Set(domain.Session{ChatID: "chat-2", ConnectionToken: "token-2"})

	sess, ok := store.Get()
	req.True(ok)
	req.Equal("chat-2", sess.ChatID)
	req.Equal("token-2", sess.ConnectionToken)
}

func TestStore_ClearIsIdempotent(t *testing.T) {
	req := require.New(t)
	store := NewStore()
	store.Set(domain.Session{ChatID: "chat-1"})

	store.Clear()
	store.Clear()

	_, ok := store.Get()
	req.False(ok)
}
