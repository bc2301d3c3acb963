package websocket

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"edulearn-backend/internal/models"
)

// UserChannel is the Redis channel carrying one user's progress events.
func UserChannel(userID uuid.UUID) string {
	return "user_updates:" + userID.String()
}

// RedisPublisher sends progress events through Redis so that any instance
// holding the user's socket can deliver them.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, UserChannel(userID), data).Err()
}
