package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisMessageQueue keeps one stream per room. With a single subscriber per
// live room, entries come out in XAdd order, which is the per-room ordering
// guarantee the relay builds on.
type RedisMessageQueue struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisMessageQueue(rdb *redis.Client, log *slog.Logger) *RedisMessageQueue {
	return &RedisMessageQueue{rdb: rdb, log: log}
}

func (q *RedisMessageQueue) streamKey(roomID string) string {
	return "stream:" + roomID
}

func (q *RedisMessageQueue) PublishToStream(ctx context.Context, roomID string, payload []byte) error {
	return q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.streamKey(roomID),
		MaxLen: 1000,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"data": payload},
	}).Err()
}

func (q *RedisMessageQueue) SubscribeToStream(
	ctx context.Context,
	roomID string,
	group string,
	handler func(ctx context.Context, messageID string, data []byte) error,
) error {
	topic := q.streamKey(roomID)
	err := q.rdb.XGroupCreateMkStream(ctx, topic, group, "0").Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	// One consumer per room, with a name stable across restarts: entries a
	// previous incarnation read but never acked sit in this consumer's
	// pending list, and the "0" pass below redelivers them before any new
	// entry is taken.
	consumerName := "consumer:" + roomID
	go func() {
		readID := "0"
		for {
			select {
			case <-ctx.Done():
				return
			default:
				res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
					Group:    group,
					Consumer: consumerName,
					Streams:  []string{topic, readID},
					Count:    1,
					Block:    2 * time.Second,
				}).Result()
				if err != nil {
					if err == redis.Nil {
						if readID == "0" {
							readID = ">"
						}
						continue
					}
					if ctx.Err() == nil {
						q.log.Error("queue - subscribe - stream read failed", "stream", topic, "error", err.Error())
					}
					continue
				}
				delivered := 0
				for _, stream := range res {
					for _, msg := range stream.Messages {
						delivered++
						raw, ok := msg.Values["data"].(string)
						if !ok {
							continue
						}
						if err := handler(ctx, msg.ID, []byte(raw)); err != nil {
							q.log.Error("queue - subscribe - handler failed", "stream", topic, "message_id", msg.ID, "error", err.Error())
						}
					}
				}
				// Pending list drained; from here on take only new entries.
				if readID == "0" && delivered == 0 {
					readID = ">"
				}
			}
		}
	}()
	return nil
}

func (q *RedisMessageQueue) AcknowledgeMessage(ctx context.Context, roomID, group, messageID string) error {
	return q.rdb.XAck(ctx, q.streamKey(roomID), group, messageID).Err()
}

func (q *RedisMessageQueue) DeleteMessage(ctx context.Context, roomID, messageID string) error {
	return q.rdb.XDel(ctx, q.streamKey(roomID), messageID).Err()
}
