package repository

import (
	"context"
	"encoding/json"
	"time"

	"scams/internal/models"

	"github.com/redis/go-redis/v9"
)

const roomsKey = "cache:rooms"

type RedisRoomCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRoomCache(client *redis.Client, ttl time.Duration) *RedisRoomCache {
	return &RedisRoomCache{client: client, ttl: ttl}
}

func (c *RedisRoomCache) GetRooms(ctx context.Context) ([]*models.Room, error) {
	data, err := c.client.Get(ctx, roomsKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var rooms []*models.Room
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (c *RedisRoomCache) SetRooms(ctx context.Context, rooms []*models.Room) error {
	if rooms == nil {
		rooms = []*models.Room{}
	}
	payload, err := json.Marshal(rooms)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, roomsKey, payload, c.ttl).Err()
}

func (c *RedisRoomCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, roomsKey).Err()
}
