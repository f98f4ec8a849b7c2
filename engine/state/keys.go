package state

import (
	"fmt"

	"github.com/turnkit/turnstate/engine/turn"
)

// KeyFunc derives the durable storage key for a turn. Implementations must
// be deterministic for a given turn so repeated loads and saves within one
// turn address the same document.
type KeyFunc func(t *turn.Context) (string, error)

// KeyByConversation partitions state per conversation:
// "{channelID}/conversations/{conversationID}". Both IDs must be present on
// the turn.
func KeyByConversation() KeyFunc {
	return func(t *turn.Context) (string, error) {
		if t.Info.ChannelID == "" {
			return "", fmt.Errorf("channel ID is required to build a conversation state key")
		}
		if t.Info.ConversationID == "" {
			return "", fmt.Errorf("conversation ID is required to build a conversation state key")
		}
		return fmt.Sprintf("%s/conversations/%s", t.Info.ChannelID, t.Info.ConversationID), nil
	}
}

// KeyByUser partitions state per user: "{channelID}/users/{userID}". Both
// IDs must be present on the turn.
func KeyByUser() KeyFunc {
	return func(t *turn.Context) (string, error) {
		if t.Info.ChannelID == "" {
			return "", fmt.Errorf("channel ID is required to build a user state key")
		}
		if t.Info.UserID == "" {
			return "", fmt.Errorf("user ID is required to build a user state key")
		}
		return fmt.Sprintf("%s/users/%s", t.Info.ChannelID, t.Info.UserID), nil
	}
}

// StaticKey always resolves to the given key. Useful for process-wide state
// and for tests.
func StaticKey(key string) KeyFunc {
	return func(_ *turn.Context) (string, error) {
		if key == "" {
			return "", fmt.Errorf("storage key cannot be empty")
		}
		return key, nil
	}
}
