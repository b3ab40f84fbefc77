package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/veerababu08/sahtalk-backend/internal/core/domain"
)

/*
	CREATE TABLE messages (
		id             UUID PRIMARY KEY,
		room_id        TEXT NOT NULL,
		sender         UUID NOT NULL REFERENCES users(id),
		receiver       UUID NOT NULL REFERENCES users(id),
		text           TEXT NOT NULL DEFAULT '',
		type           TEXT NOT NULL DEFAULT 'text',
		media_url      TEXT NOT NULL DEFAULT '',
		file_meta      JSONB,
		client_temp_id TEXT,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	-- the at-most-once persistence contract for client retries
	CREATE UNIQUE INDEX messages_client_temp_idx
		ON messages (client_temp_id) WHERE client_temp_id IS NOT NULL;
	CREATE INDEX messages_room_idx ON messages (room_id, created_at);
*/

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, room_id, sender, receiver, text, type, media_url, file_meta, COALESCE(client_temp_id, ''), created_at`

func (r *MessageRepo) CreateMessage(ctx context.Context, m *domain.Message) error {
	exec := GetExecutor(ctx, r.db)
	var fileMeta any
	if m.FileMeta != nil {
		raw, err := json.Marshal(m.FileMeta)
		if err != nil {
			return err
		}
		fileMeta = raw
	}
	var tempID any
	if m.ClientTempID != "" {
		tempID = m.ClientTempID
	}
	return exec.QueryRowContext(ctx, `
        INSERT INTO messages (id, room_id, sender, receiver, text, type, media_url, file_meta, client_temp_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING created_at
    `, m.ID, m.RoomID, m.Sender, m.Receiver, m.Text, m.Type, m.MediaURL, fileMeta, tempID).Scan(&m.CreatedAt)
}

func (r *MessageRepo) FindByClientTempID(ctx context.Context, key string) (*domain.Message, error) {
	exec := GetExecutor(ctx, r.db)
	row := exec.QueryRowContext(ctx, `
        SELECT `+messageColumns+` FROM messages WHERE client_temp_id = $1
    `, key)
	m, err := scanMessage(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *MessageRepo) FindByRoom(ctx context.Context, roomID string) ([]domain.Message, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
        SELECT `+messageColumns+` FROM messages
        WHERE room_id = $1
        ORDER BY created_at ASC
    `, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var msgs []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

func scanMessage(scan func(...any) error) (*domain.Message, error) {
	m := &domain.Message{}
	var fileMeta []byte
	if err := scan(&m.ID, &m.RoomID, &m.Sender, &m.Receiver, &m.Text, &m.Type, &m.MediaURL, &fileMeta, &m.ClientTempID, &m.CreatedAt); err != nil {
		return nil, err
	}
	if len(fileMeta) > 0 {
		if err := json.Unmarshal(fileMeta, &m.FileMeta); err != nil {
			return nil, err
		}
	}
	return m, nil
}
