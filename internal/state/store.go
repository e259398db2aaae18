// Package state persists bot state documents keyed by channel, conversation,
// and user. Stores hold opaque JSON so callers own their document shapes.
package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kernelworks/kernelbot/internal/domain"
)

// Store reads and writes JSON state documents in bulk.
type Store interface {
	Read(ctx context.Context, keys []string) (map[string]json.RawMessage, error)
	Write(ctx context.Context, changes map[string]json.RawMessage) error
	Delete(ctx context.Context, keys []string) error
}

// ConversationKey builds the storage key for conversation-scoped state.
func ConversationKey(channelID, conversationID string) string {
	return fmt.Sprintf("conversations/%s/%s", channelID, conversationID)
}

// UserKey builds the storage key for user-scoped state.
func UserKey(channelID, userID string) string {
	return fmt.Sprintf("users/%s/%s", channelID, userID)
}

// Get loads and decodes a single document into out. Returns
// domain.ErrStateNotFound when the key has no document.
func Get(ctx context.Context, store Store, key string, out any) error {
	docs, err := store.Read(ctx, []string{key})
	if err != nil {
		return err
	}

	raw, ok := docs[key]
	if !ok {
		return domain.ErrStateNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode state document %s: %w", key, err)
	}
	return nil
}

// Put encodes and stores a single document.
func Put(ctx context.Context, store Store, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode state document %s: %w", key, err)
	}
	return store.Write(ctx, map[string]json.RawMessage{key: raw})
}
