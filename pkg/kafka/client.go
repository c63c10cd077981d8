// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"docqa-go/internal/config"
	"docqa-go/pkg/log"
	"docqa-go/pkg/tasks"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestTask) error
}

// AttemptCounter 记录任务失败次数，跨消费者重启保留。
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

// Producer 发送摄取任务。
type Producer struct {
	w *kafka.Writer
}

func brokers(cfg config.KafkaConfig) []string {
	return strings.Split(cfg.Brokers, ",")
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers(cfg)...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{w: w}
}

// Produce 发送一个摄取任务，以指纹为消息键，同一文档的任务落在同一分区。
func (p *Producer) Produce(ctx context.Context, task tasks.IngestTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.Fingerprint),
		Value: taskBytes,
	})
}

func (p *Producer) Close() error {
	return p.w.Close()
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer 消费摄取任务，处理成功或失败次数达到上限后手动提交 offset。
type Consumer struct {
	r           messageReader
	processor   TaskProcessor
	attempts    AttemptCounter
	maxAttempts int
	backoff     time.Duration
}

// NewConsumer 创建一个 Kafka 消费者。
func NewConsumer(cfg config.KafkaConfig, processor TaskProcessor, attempts AttemptCounter) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return newConsumer(r, processor, attempts, cfg.MaxAttempts)
}

func newConsumer(r messageReader, processor TaskProcessor, attempts AttemptCounter, maxAttempts int) *Consumer {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if attempts == nil {
		attempts = &localAttemptCounter{counts: map[string]int64{}}
	}
	return &Consumer{r: r, processor: processor, attempts: attempts, maxAttempts: maxAttempts, backoff: 2 * time.Second}
}

// Run 循环拉取消息直到 ctx 被取消。
func (c *Consumer) Run(ctx context.Context) error {
	log.Infof("Kafka 消费者已启动")
	defer func() {
		if err := c.r.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("从 Kafka 读取消息失败: %w", err)
		}
		c.handle(ctx, m)
	}
}

func attemptsKey(fingerprint string) string {
	return "ingest:attempts:" + fingerprint
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	log.Infof("收到 Kafka 消息: offset %d", m.Offset)

	var task tasks.IngestTask
	if err := json.Unmarshal(m.Value, &task); err != nil || task.Fingerprint == "" {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		// 消息格式错误，直接提交，避免阻塞队列
		c.commit(ctx, m)
		return
	}

	key := attemptsKey(task.Fingerprint)
	for local := 1; ; local++ {
		err := c.processor.Process(ctx, task)
		if err == nil {
			log.Infof("摄取任务处理成功: fingerprint=%s, task=%s", task.Fingerprint, task.TaskID)
			if rerr := c.attempts.Reset(ctx, key); rerr != nil {
				log.Warnf("清理失败计数失败: %v", rerr)
			}
			c.commit(ctx, m)
			return
		}
		if ctx.Err() != nil {
			// 关闭中，不提交，重启后重新消费
			return
		}

		attempts, incErr := c.attempts.Incr(ctx, key)
		if incErr != nil {
			// Redis 异常时退回到本地计数
			log.Warnf("记录失败次数失败，使用本地计数: %v", incErr)
			attempts = int64(local)
		}
		log.Errorf("摄取任务处理失败: fingerprint=%s, attempt=%d, error: %v", task.Fingerprint, attempts, err)
		if attempts >= int64(c.maxAttempts) {
			log.Errorf("摄取任务多次失败(>=%d)，提交 offset 终止重试: fingerprint=%s", c.maxAttempts, task.Fingerprint)
			// 放弃后清零，同一文档之后重新上传时重新获得完整的重试次数
			if rerr := c.attempts.Reset(ctx, key); rerr != nil {
				log.Warnf("清理失败计数失败: %v", rerr)
			}
			c.commit(ctx, m)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff * time.Duration(attempts)):
		}
	}
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) {
	if err := c.r.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
}

// RedisAttemptCounter 用 Redis 计数失败次数，计数 24 小时后过期。
type RedisAttemptCounter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisAttemptCounter(rdb *redis.Client) *RedisAttemptCounter {
	return &RedisAttemptCounter{rdb: rdb, ttl: 24 * time.Hour}
}

func (r *RedisAttemptCounter) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if err := r.rdb.Expire(ctx, key, r.ttl).Err(); err != nil && !errors.Is(err, redis.Nil) {
		log.Warnf("设置失败计数过期时间失败: %v", err)
	}
	return n, nil
}

func (r *RedisAttemptCounter) Reset(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// localAttemptCounter 在没有 Redis 时使用，计数只在当前进程内有效。
type localAttemptCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (l *localAttemptCounter) Incr(_ context.Context, key string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[key]++
	return l.counts[key], nil
}

func (l *localAttemptCounter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.counts, key)
	return nil
}
