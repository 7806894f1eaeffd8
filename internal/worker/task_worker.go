package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"scams/internal/domain"
	"scams/internal/metrics"
	"scams/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskNotify  = "notify"
	TaskPublish = "publish"
)

// TaskHandler delivers one task. A returned error schedules a retry.
type TaskHandler func(ctx context.Context, task *models.Task) error

// TaskWorker consumes the tasks table, using Redis (or an in-memory channel)
// as a wake-up queue in front of it.
type TaskWorker struct {
	repo          domain.TaskRepository
	redis         *redis.Client
	retryPolicy   RetryPolicy
	handlers      map[string]TaskHandler
	mu            sync.RWMutex
	queue         chan models.Task
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

// NewTaskWorker builds a worker with sane defaults.
func NewTaskWorker(repo domain.TaskRepository, redisClient *redis.Client, retry RetryPolicy, logger *zerolog.Logger) *TaskWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &TaskWorker{
		repo:          repo,
		redis:         redisClient,
		retryPolicy:   retry,
		handlers:      make(map[string]TaskHandler),
		queue:         make(chan models.Task, models.WorkerQueueSize),
		redisQueueKey: "tasks:queue",
		deadLetterKey: "tasks:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		logger:        logger,
	}
}

// Handle registers the handler for a task type.
func (w *TaskWorker) Handle(taskType string, h TaskHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[taskType] = h
}

func (w *TaskWorker) handler(taskType string) (TaskHandler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	h, ok := w.handlers[taskType]
	return h, ok
}

// EnqueueTask persists the task and schedules it via redis or the in-memory queue.
func (w *TaskWorker) EnqueueTask(ctx context.Context, taskType string, bookingID int64, payload interface{}) error {
	if taskType == "" {
		return errors.New("task type is required")
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.Task{
		TaskType:  taskType,
		BookingID: bookingID,
		Payload:   string(payloadBytes),
	}
	if err := w.repo.CreateTask(ctx, &task); err != nil {
		return fmt.Errorf("persist task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Msg("Redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("In-memory queue full, task left to polling")
	}

	return nil
}

// Start runs n consumer loops and blocks until ctx is done.
func (w *TaskWorker) Start(ctx context.Context, n int) {
	if n < 1 {
		n = 1
	}
	if requeued, err := w.repo.RequeueProcessingTasks(ctx); err != nil {
		w.logger.Error().Err(err).Msg("Failed to requeue interrupted tasks")
	} else if requeued > 0 {
		w.logger.Info().Int64("count", requeued).Msg("Requeued interrupted tasks")
	}

	w.logger.Info().Int("workers", n).Msg("Task worker started")
	defer w.logger.Info().Msg("Task worker stopped")

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
}

func (w *TaskWorker) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		if n := w.pollOnce(ctx); n == 0 {
			select {
			case <-ctx.Done():
				return
			case t := <-w.queue:
				w.processTask(ctx, &t)
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// pollOnce processes due tasks straight from the database and reports how many it saw.
func (w *TaskWorker) pollOnce(ctx context.Context) int {
	tasks, err := w.repo.GetPendingTasks(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("Failed to fetch pending tasks")
		}
		return 0
	}
	for _, t := range tasks {
		w.processTask(ctx, t)
	}
	return len(tasks)
}

func (w *TaskWorker) tryLocalQueue() (models.Task, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.Task{}, false
	}
}

func (w *TaskWorker) tryRedis(ctx context.Context) (models.Task, bool) {
	if w.redis == nil {
		return models.Task{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, redis.Nil) {
			return models.Task{}, false
		}
		w.logger.Error().Err(err).Msg("Redis BRPOP failed")
		return models.Task{}, false
	}
	if len(res) != 2 {
		return models.Task{}, false
	}
	var task models.Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("Failed to decode redis task")
		return models.Task{}, false
	}
	return task, true
}

func (w *TaskWorker) processTask(ctx context.Context, task *models.Task) {
	claimed, err := w.repo.ClaimTask(ctx, task.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to claim task")
		return
	}
	if !claimed {
		return
	}

	h, ok := w.handler(task.TaskType)
	if !ok {
		w.failTask(ctx, task, fmt.Errorf("unknown task type: %s", task.TaskType))
		return
	}

	if err := h(ctx, task); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncTask(task.TaskType, "done")
	if err := w.repo.UpdateTaskStatus(ctx, task.ID, "completed", "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark task completed")
	}
}

func (w *TaskWorker) retryOrFail(ctx context.Context, task *models.Task, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncTask(task.TaskType, "retry")
	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", nextTime).Msg("Task failed, will retry")
	if err := w.repo.UpdateTaskStatus(ctx, task.ID, "retry", cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark task for retry")
	}
}

func (w *TaskWorker) failTask(ctx context.Context, task *models.Task, cause error) {
	metrics.IncTask(task.TaskType, "failed")
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("type", task.TaskType).Msg("Task failed permanently")
	if err := w.repo.UpdateTaskStatus(ctx, task.ID, "failed", cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark task failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *TaskWorker) pushRedis(ctx context.Context, task models.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *TaskWorker) pushDeadLetter(ctx context.Context, task *models.Task) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to encode dead letter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to push dead letter")
	}
}
