package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/omnichat/relay/pkg/presence"
)

// CatchupEvents implements presence.CatchupQuerier over delivery_events,
// joined back to the owning message so a reconnecting client receives the
// same message.created-shaped payload it would have seen live.
func (r *MessageRepo) CatchupEvents(ctx context.Context, channel string, sinceID int64, limit int) ([]presence.CatchupEvent, error) {
	conversationID, ok := conversationIDFromChannel(channel)
	if !ok {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT d.id, d.message_id, d.status, m.conversation_id, m.author, m.kind, m.body, m.agent_key, m.ts
		FROM delivery_events d
		JOIN messages m ON m.id = d.message_id
		WHERE m.conversation_id = $1 AND d.id > $2
		ORDER BY d.id ASC LIMIT $3`, conversationID, sinceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query catchup events: %w", err)
	}
	defer rows.Close()

	var out []presence.CatchupEvent
	for rows.Next() {
		var id int64
		var messageID, convID, author, kind, body, agentKey string
		var status int
		var ts sql.NullTime
		if err := rows.Scan(&id, &messageID, &status, &convID, &author, &kind, &body, &agentKey, &ts); err != nil {
			return nil, fmt.Errorf("scan catchup event: %w", err)
		}

		payload := map[string]any{
			"type":            "message.created",
			"message_id":      messageID,
			"conversation_id": convID,
			"author":          author,
			"kind":            kind,
			"text":            body,
			"agent_key":       agentKey,
		}
		if ts.Valid {
			payload["timestamp"] = ts.Time.Format("2006-01-02T15:04:05.999999999Z07:00")
		}
		out = append(out, presence.CatchupEvent{ID: id, Payload: payload})
	}
	return out, rows.Err()
}

func conversationIDFromChannel(channel string) (string, bool) {
	const prefix = "conversation:"
	if len(channel) <= len(prefix) || channel[:len(prefix)] != prefix {
		return "", false
	}
	return channel[len(prefix):], true
}
