package trigger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	Group    string
	Consumer string
}

// RedisTrigger distributes job wake-ups over a Redis stream so any API
// instance can kick a job and any executor instance can run it. Entries
// are acknowledged regardless of handler outcome; a job whose pass was
// interrupted is reclaimed by the sweep once its lease goes stale.
type RedisTrigger struct {
	client   *redis.Client
	stream   string
	group    string
	consumer string
	logger   *log.Logger
}

func NewRedisTrigger(ctx context.Context, cfg RedisConfig, logger *log.Logger) (*RedisTrigger, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.Stream == "" {
		cfg.Stream = "card_jobs"
	}
	if cfg.Group == "" {
		cfg.Group = "card_executors"
	}
	if cfg.Consumer == "" {
		cfg.Consumer = "executor-1"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	trigger := &RedisTrigger{
		client:   client,
		stream:   cfg.Stream,
		group:    cfg.Group,
		consumer: cfg.Consumer,
		logger:   logger,
	}
	if err := trigger.ensureGroup(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return trigger, nil
}

func (t *RedisTrigger) Close() error {
	return t.client.Close()
}

func (t *RedisTrigger) Kick(ctx context.Context, jobID string) error {
	_, err := t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: t.stream,
		Values: map[string]any{
			"job_id":    jobID,
			"kicked_at": time.Now().UTC().Format(time.RFC3339Nano),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("kick to stream: %w", err)
	}
	return nil
}

func (t *RedisTrigger) Consume(ctx context.Context, handler func(context.Context, string) error) error {
	if err := t.ensureGroup(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		streams, err := t.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    t.group,
			Consumer: t.consumer,
			Streams:  []string{t.stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("xreadgroup: %w", err)
		}

		for _, stream := range streams {
			for _, item := range stream.Messages {
				jobID := stringField(item, "job_id")
				if jobID != "" {
					if handleErr := handler(ctx, jobID); handleErr != nil && t.logger != nil {
						t.logger.Printf("redis trigger handler error job_id=%s err=%v", jobID, handleErr)
					}
				}
				_ = t.ackAndDelete(ctx, item.ID)
			}
		}
	}
}

func (t *RedisTrigger) ensureGroup(ctx context.Context) error {
	err := t.client.XGroupCreateMkStream(ctx, t.stream, t.group, "$").Err()
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "BUSYGROUP") {
		return nil
	}
	return fmt.Errorf("ensure stream group: %w", err)
}

func (t *RedisTrigger) ackAndDelete(ctx context.Context, streamID string) error {
	if err := t.client.XAck(ctx, t.stream, t.group, streamID).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	if err := t.client.XDel(ctx, t.stream, streamID).Err(); err != nil {
		return fmt.Errorf("xdel: %w", err)
	}
	return nil
}

func stringField(item redis.XMessage, key string) string {
	value, ok := item.Values[key]
	if !ok {
		return ""
	}
	switch casted := value.(type) {
	case string:
		return casted
	case []byte:
		return string(casted)
	default:
		return fmt.Sprintf("%v", casted)
	}
}
