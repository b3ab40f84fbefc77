package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/veerababu08/sahtalk-backend/internal/core/domain"
)

/*
	CREATE TABLE connections (
		id              UUID PRIMARY KEY,
		sender          UUID NOT NULL REFERENCES users(id),
		receiver        UUID NOT NULL REFERENCES users(id),
		room_id         TEXT NOT NULL UNIQUE,
		status          TEXT NOT NULL DEFAULT 'pending',
		last_message_id UUID,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	-- one record per unordered pair
	CREATE UNIQUE INDEX connections_pair_idx
		ON connections (LEAST(sender, receiver), GREATEST(sender, receiver));
*/

type ConnectionRepo struct {
	db *sql.DB
}

func NewConnectionRepo(db *sql.DB) *ConnectionRepo {
	return &ConnectionRepo{db: db}
}

const connectionColumns = `id, sender, receiver, room_id, status, COALESCE(last_message_id::text, ''), created_at`

func (r *ConnectionRepo) CreateConnection(ctx context.Context, c *domain.Connection) error {
	exec := GetExecutor(ctx, r.db)
	return exec.QueryRowContext(ctx, `
        INSERT INTO connections (id, sender, receiver, room_id, status)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING created_at
    `, c.ID, c.Sender, c.Receiver, c.RoomID, c.Status).Scan(&c.CreatedAt)
}

func (r *ConnectionRepo) FindByRoomID(ctx context.Context, roomID string) (*domain.Connection, error) {
	exec := GetExecutor(ctx, r.db)
	row := exec.QueryRowContext(ctx, `
        SELECT `+connectionColumns+` FROM connections WHERE room_id = $1
    `, roomID)
	return scanConnection(row)
}

func (r *ConnectionRepo) FindPair(ctx context.Context, userA, userB string) (*domain.Connection, error) {
	exec := GetExecutor(ctx, r.db)
	row := exec.QueryRowContext(ctx, `
        SELECT `+connectionColumns+` FROM connections
        WHERE (sender = $1 AND receiver = $2) OR (sender = $2 AND receiver = $1)
    `, userA, userB)
	return scanConnection(row)
}

func (r *ConnectionRepo) FindPendingFor(ctx context.Context, userID string) ([]domain.Connection, error) {
	return r.findFor(ctx, `
        SELECT `+connectionColumns+` FROM connections
        WHERE receiver = $1 AND status = 'pending'
        ORDER BY created_at DESC
    `, userID)
}

func (r *ConnectionRepo) FindAcceptedFor(ctx context.Context, userID string) ([]domain.Connection, error) {
	return r.findFor(ctx, `
        SELECT `+connectionColumns+` FROM connections
        WHERE (sender = $1 OR receiver = $1) AND status = 'accepted'
        ORDER BY created_at DESC
    `, userID)
}

func (r *ConnectionRepo) findFor(ctx context.Context, query, userID string) ([]domain.Connection, error) {
	exec := GetExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var conns []domain.Connection
	for rows.Next() {
		var c domain.Connection
		if err := rows.Scan(&c.ID, &c.Sender, &c.Receiver, &c.RoomID, &c.Status, &c.LastMessageID, &c.CreatedAt); err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, rows.Err()
}

func (r *ConnectionRepo) UpdateStatus(ctx context.Context, id, status string) (*domain.Connection, error) {
	exec := GetExecutor(ctx, r.db)
	row := exec.QueryRowContext(ctx, `
        UPDATE connections SET status = $2 WHERE id = $1
        RETURNING `+connectionColumns+`
    `, id, status)
	return scanConnection(row)
}

func (r *ConnectionRepo) UpdateLastMessage(ctx context.Context, roomID, messageID string) error {
	exec := GetExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
        UPDATE connections SET last_message_id = $2 WHERE room_id = $1
    `, roomID, messageID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrConnectionNotFound
	}
	return nil
}

func scanConnection(row *sql.Row) (*domain.Connection, error) {
	c := &domain.Connection{}
	err := row.Scan(&c.ID, &c.Sender, &c.Receiver, &c.RoomID, &c.Status, &c.LastMessageID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConnectionNotFound
		}
		return nil, err
	}
	return c, nil
}
