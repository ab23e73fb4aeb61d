// Package kafka queues ingestion tasks and consumes them.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cv-chat-go/internal/config"
	"cv-chat-go/pkg/log"
	"cv-chat-go/pkg/tasks"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// MaxAttempts is how often a task is tried before its offset is committed anyway.
const MaxAttempts = 3

// retryDelay separates two attempts of the same task.
var retryDelay = 2 * time.Second

// TaskRunner processes one ingestion task. This decouples the consumer from
// the pipeline.
type TaskRunner interface {
	RunTask(ctx context.Context, task tasks.IngestionTask) error
	// AbandonTask is called once a task has failed MaxAttempts times.
	AbandonTask(ctx context.Context, task tasks.IngestionTask)
}

func brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Producer publishes ingestion tasks.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(cfg config.KafkaConfig) *Producer {
	p := &Producer{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers(cfg)...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}}
	log.Infof("Kafka producer initialized for topic '%s'", cfg.Topic)
	return p
}

// PublishIngestion sends task keyed by its ingestion id.
func (p *Producer) PublishIngestion(ctx context.Context, task tasks.IngestionTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.IngestionID),
		Value: taskBytes,
	})
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer processes tasks until ctx is cancelled. Each task is retried
// in place up to MaxAttempts times before its offset is committed, so a failing
// task never lets a later offset overtake it.
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, rdb *redis.Client, runner TaskRunner) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka consumer started, listening on topic '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Error("failed to fetch Kafka message", err)
			}
			break
		}

		var task tasks.IngestionTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("cannot decode Kafka message: %v, value: %s", err, string(m.Value))
			// malformed messages would block the partition forever
			commit(ctx, r, m)
			continue
		}

		log.Infof("processing ingestion task %s (%s)", task.IngestionID, task.FileName)
		if err := runTask(ctx, rdb, runner, task); err != nil && ctx.Err() != nil {
			// shutting down: leave the offset for the next consumer
			break
		}
		commit(ctx, r, m)
	}

	if err := r.Close(); err != nil {
		log.Errorf("failed to close Kafka consumer: %v", err)
	}
}

// runTask runs task until it succeeds or has failed MaxAttempts times, counting
// attempts both locally and in Redis so a restart mid-retry resumes the count.
// An exhausted task is handed to runner.AbandonTask.
func runTask(ctx context.Context, rdb *redis.Client, runner TaskRunner, task tasks.IngestionTask) error {
	for attempt := 1; ; attempt++ {
		err := runner.RunTask(ctx, task)
		if err == nil {
			log.Infof("ingestion task %s done", task.IngestionID)
			_ = rdb.Del(ctx, attemptsKey(task.IngestionID)).Err()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Errorf("ingestion task %s failed (attempt %d): %v", task.IngestionID, attempt, err)

		if GiveUp(ctx, rdb, task.IngestionID) || attempt >= MaxAttempts {
			log.Errorf("ingestion task %s failed %d times, giving up", task.IngestionID, attempt)
			_ = rdb.Del(ctx, attemptsKey(task.IngestionID)).Err()
			runner.AbandonTask(ctx, task)
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

func commit(ctx context.Context, r *kafka.Reader, m kafka.Message) {
	if err := r.CommitMessages(ctx, m); err != nil {
		log.Errorf("failed to commit Kafka offset: %v", err)
	}
}

func attemptsKey(id string) string {
	return fmt.Sprintf("kafka:attempts:%s", id)
}

// GiveUp records one more failed attempt for the task and reports whether
// the attempt limit is reached. A Redis failure keeps the task alive.
func GiveUp(ctx context.Context, rdb *redis.Client, id string) bool {
	key := attemptsKey(id)
	attempts, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false
	}
	_ = rdb.Expire(ctx, key, 24*time.Hour).Err()
	return attempts >= MaxAttempts
}
