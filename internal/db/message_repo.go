package db

import (
	"context"
	"fmt"
	"time"

	"inappkit/internal/messaging"
	"inappkit/internal/msgsync"
	"inappkit/internal/types"
)

// DefaultFetchLimit caps how many pending messages one Fetch returns.
const DefaultFetchLimit = 500

// messageSchema creates the device_messages table. A message is pending
// until it is consumed or removed; retired rows are kept for PurgeRetired.
const messageSchema = `
CREATE TABLE IF NOT EXISTS device_messages (
    device_id   TEXT        NOT NULL,
    message_id  TEXT        NOT NULL,
    payload     BYTEA       NOT NULL,
    priority    DOUBLE PRECISION NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    consumed_at TIMESTAMPTZ,
    removed_at  TIMESTAMPTZ,
    PRIMARY KEY (device_id, message_id)
);
CREATE INDEX IF NOT EXISTS device_messages_pending_idx
    ON device_messages (device_id, created_at)
    WHERE consumed_at IS NULL AND removed_at IS NULL;
`

// Compile-time assertions: the repository is both a sync source and a
// lifecycle notifier.
var (
	_ msgsync.Source     = (*MessageRepository)(nil)
	_ messaging.Notifier = (*MessageRepository)(nil)
)

// MessageRepository stores raw message payloads per device in the
// device_messages table. Fetch returns the pending ones; consume and remove
// signals retire them so the next refresh no longer includes them.
type MessageRepository struct {
	db       DBTX
	deviceID string
	limit    int
}

// NewMessageRepository creates a MessageRepository for one device.
func NewMessageRepository(db DBTX, deviceID string) *MessageRepository {
	return &MessageRepository{db: db, deviceID: deviceID, limit: DefaultFetchLimit}
}

// EnsureSchema creates the table and index if they do not exist.
func (r *MessageRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, messageSchema); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create device_messages schema", err)
	}
	return nil
}

// Store inserts or replaces the payload of a message. Replacing a retired
// message does not revive it.
func (r *MessageRepository) Store(ctx context.Context, messageID string, payload []byte, priority float64, createdAt time.Time) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO device_messages (device_id, message_id, payload, priority, created_at)
		 VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		 ON CONFLICT (device_id, message_id)
		 DO UPDATE SET payload = EXCLUDED.payload, priority = EXCLUDED.priority`,
		r.deviceID,
		messageID,
		payload,
		priority,
		nilIfZeroTime(createdAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB,
			fmt.Sprintf("failed to store message %s", messageID), err)
	}
	return nil
}

// Fetch returns the pending payloads of the device in arrival order.
func (r *MessageRepository) Fetch(ctx context.Context) ([]msgsync.RawPayload, error) {
	rows, err := r.db.Query(ctx,
		`SELECT message_id, payload
		 FROM device_messages
		 WHERE device_id = $1
		   AND consumed_at IS NULL
		   AND removed_at IS NULL
		 ORDER BY created_at, message_id
		 LIMIT $2`,
		r.deviceID,
		r.limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to fetch pending messages", err)
	}
	defer rows.Close()

	var out []msgsync.RawPayload
	for rows.Next() {
		var (
			id      string
			payload []byte
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan message row", err)
		}
		out = append(out, msgsync.RawPayload{Origin: "db:" + id, Data: payload})
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating message rows", err)
	}
	return out, nil
}

// NotifyConsumed marks the message consumed. The first timestamp is kept,
// so repeating the call is harmless; an unknown message is not an error.
func (r *MessageRepository) NotifyConsumed(ctx context.Context, messageID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE device_messages
		 SET consumed_at = COALESCE(consumed_at, NOW())
		 WHERE device_id = $1 AND message_id = $2`,
		r.deviceID,
		messageID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB,
			fmt.Sprintf("failed to mark message %s consumed", messageID), err)
	}
	return nil
}

// NotifyRemoved marks the message removed. Like NotifyConsumed it is
// idempotent.
func (r *MessageRepository) NotifyRemoved(ctx context.Context, messageID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE device_messages
		 SET removed_at = COALESCE(removed_at, NOW())
		 WHERE device_id = $1 AND message_id = $2`,
		r.deviceID,
		messageID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB,
			fmt.Sprintf("failed to mark message %s removed", messageID), err)
	}
	return nil
}

// PurgeRetired deletes consumed or removed messages retired before cutoff
// and returns how many rows were deleted.
func (r *MessageRepository) PurgeRetired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM device_messages
		 WHERE device_id = $1
		   AND COALESCE(removed_at, consumed_at) < $2`,
		r.deviceID,
		cutoff,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to purge retired messages", err)
	}
	return tag.RowsAffected(), nil
}
