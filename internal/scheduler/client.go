package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"propertyhub_backend/platform/config"
	"propertyhub_backend/platform/logger"
)

// Client enqueues delayed tasks. It implements the visits service's
// ReminderScheduler port.
type Client struct {
	client *asynq.Client
	queue  string
	log    *logger.Logger
}

// RedisConnOpt builds the asynq connection options from the configured
// Redis URL.
func RedisConnOpt(cfg config.SchedulerConfig) (asynq.RedisConnOpt, error) {
	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	connOpt := asynq.RedisClientOpt{
		Addr:     opt.Addr,
		Username: opt.Username,
		Password: opt.Password,
		DB:       opt.DB,
	}
	if opt.TLSConfig != nil {
		connOpt.TLSConfig = opt.TLSConfig
		if cfg.GetRedisTLSInsecure() {
			connOpt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
		}
	}
	return connOpt, nil
}

// NewClient creates a scheduler client.
func NewClient(cfg config.SchedulerConfig, log *logger.Logger) (*Client, error) {
	connOpt, err := RedisConnOpt(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{
		client: asynq.NewClient(connOpt),
		queue:  cfg.GetAsynqQueueName(),
		log:    log,
	}, nil
}

// ScheduleVisitReminder enqueues a reminder to fire at remindAt.
func (c *Client) ScheduleVisitReminder(ctx context.Context, visitID int64, remindAt time.Time) error {
	task, err := NewVisitReminderTask(visitID)
	if err != nil {
		return err
	}

	info, err := c.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(remindAt),
		asynq.Queue(c.queue),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue visit reminder: %w", err)
	}

	c.log.Info("reminder_scheduled",
		"visit_id", visitID,
		"task_id", info.ID,
		"process_at", remindAt,
	)
	return nil
}

// Close releases the underlying Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
