package videogen

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	redisClient "motionframe-server/modules/common/redis"
)

// QueueName - 비디오 생성 task 큐
const QueueName = "jobs:video"

// Dispatcher hands a created task to whatever runs it.
type Dispatcher interface {
	Dispatch(ctx context.Context, taskID string) error
}

// RedisDispatcher enqueues task IDs for the queue worker.
type RedisDispatcher struct {
	rdb *redis.Client
}

// NewRedisDispatcher - RedisDispatcher 생성
func NewRedisDispatcher(rdb *redis.Client) *RedisDispatcher {
	return &RedisDispatcher{rdb: rdb}
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, taskID string) error {
	return redisClient.Enqueue(ctx, d.rdb, QueueName, taskID)
}

// DirectDispatcher runs the pipeline in-process. Used when Redis is not
// configured.
type DirectDispatcher struct {
	pipeline *Pipeline
}

// NewDirectDispatcher - DirectDispatcher 생성
func NewDirectDispatcher(pipeline *Pipeline) *DirectDispatcher {
	return &DirectDispatcher{pipeline: pipeline}
}

func (d *DirectDispatcher) Dispatch(ctx context.Context, taskID string) error {
	go d.pipeline.Run(context.Background(), taskID)
	return nil
}

// Worker - Redis 큐에서 task를 받아 pipeline 실행
type Worker struct {
	rdb      *redis.Client
	pipeline *Pipeline
}

// NewWorker - Worker 생성
func NewWorker(rdb *redis.Client, pipeline *Pipeline) *Worker {
	if rdb == nil {
		log.Println("❌ [VideoGen Worker] Redis client not available")
		return nil
	}
	if pipeline == nil {
		log.Println("❌ [VideoGen Worker] Pipeline not available")
		return nil
	}

	log.Println("✅ [VideoGen Worker] Initialized successfully")
	return &Worker{
		rdb:      rdb,
		pipeline: pipeline,
	}
}

// StartWorker - Redis 큐 감시 시작
func (w *Worker) StartWorker() {
	log.Println("🔄 [VideoGen Worker] Starting video queue worker...")
	log.Printf("👀 [VideoGen Worker] Watching queue: %s", QueueName)

	ctx := context.Background()

	for {
		// Task 받기 (BRPOP - Blocking Right Pop)
		result, err := w.rdb.BRPop(ctx, 0, QueueName).Result()
		if err != nil {
			log.Printf("❌ [VideoGen Worker] Redis BRPOP error: %v", err)
			time.Sleep(5 * time.Second)
			continue
		}

		// result[0]은 큐 이름, result[1]이 task ID
		taskID := result[1]
		log.Printf("🎯 [VideoGen Worker] Received task: %s", taskID)

		// 폴링이 수 분 동안 블로킹되므로 task별 goroutine으로 처리
		go w.pipeline.Run(ctx, taskID)
	}
}
