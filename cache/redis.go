package cache

import (
	"context"
	"encoding/json"
	"time"

	"iot-anomaly-engine/models"

	"github.com/go-redis/redis/v8"
)

const defaultTTL = 5 * time.Minute

// RedisClient is the read-side cache for derived engine snapshots
// (profiles and summaries, stored with a TTL so stale entries expire on
// their own) and the publisher for the downstream anomaly channel. The
// engine itself never depends on it; series history stays in memory only.
type RedisClient struct {
	client *redis.Client
	ctx    context.Context
	ttl    time.Duration
}

func NewRedisClient(addr string) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     "",
		DB:           0,
		PoolSize:     50,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	ctx := context.Background()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisClient{
		client: rdb,
		ctx:    ctx,
		ttl:    defaultTTL,
	}, nil
}

func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

func (rc *RedisClient) SaveProfile(entityID string, view models.ProfileView) error {
	key := "profile:" + entityID

	data, err := json.Marshal(view)
	if err != nil {
		return err
	}

	return rc.client.Set(rc.ctx, key, data, rc.ttl).Err()
}

func (rc *RedisClient) GetProfile(entityID string) (*models.ProfileView, error) {
	key := "profile:" + entityID

	val, err := rc.client.Get(rc.ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var view models.ProfileView
	if err := json.Unmarshal([]byte(val), &view); err != nil {
		return nil, err
	}

	return &view, nil
}

func (rc *RedisClient) SaveSummary(summary models.AnomalySummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	return rc.client.Set(rc.ctx, "anomaly:summary", data, rc.ttl).Err()
}

func (rc *RedisClient) GetSummary() (*models.AnomalySummary, error) {
	val, err := rc.client.Get(rc.ctx, "anomaly:summary").Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var summary models.AnomalySummary
	if err := json.Unmarshal([]byte(val), &summary); err != nil {
		return nil, err
	}

	return &summary, nil
}

// PublishAnomaly pushes a detected anomaly onto the notification channel
// for downstream alert consumers.
func (rc *RedisClient) PublishAnomaly(channel string, a models.Anomaly) error {
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}

	return rc.client.Publish(rc.ctx, channel, data).Err()
}
