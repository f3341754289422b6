package storage

import (
	"context"

	"github.com/harmonia-ai/loom/core"
)

// LoadHistory reconstructs a session's conversation as canonical messages,
// in stored order.
func LoadHistory(ctx context.Context, store Store, sessionID string, limit int) ([]core.Message, error) {
	messageIDs, err := store.ListMessages(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]core.Message, 0, len(messageIDs))
	for _, id := range messageIDs {
		msg, parts, err := store.GetMessage(ctx, sessionID, id)
		if err != nil {
			return nil, err
		}
		restored := core.Message{Role: msg.Role, Parts: make([]core.Part, 0, len(parts))}
		for _, part := range parts {
			restored.Parts = append(restored.Parts, part.Content)
		}
		out = append(out, restored)
	}
	return out, nil
}

// BuildParts wraps canonical parts with fresh ids for persistence. The
// returned id list preserves part order.
func BuildParts(store Store, parts []core.Part) ([]Part, []string) {
	stored := make([]Part, 0, len(parts))
	partIDs := make([]string, 0, len(parts))
	for _, part := range parts {
		id := store.NewPartID()
		stored = append(stored, Part{ID: id, Content: part})
		partIDs = append(partIDs, id)
	}
	return stored, partIDs
}
