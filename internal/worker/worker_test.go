package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"scams/internal/database"
	"scams/internal/events"
	"scams/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedUser(t *testing.T, db *database.DB) *models.User {
	t.Helper()
	u := &models.User{FullName: "Ada", Email: "ada@example.com", HashedPassword: "x"}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func newTestWorker(db *database.DB, client *redis.Client, retry RetryPolicy) *TaskWorker {
	logger := zerolog.Nop()
	return NewTaskWorker(db, client, retry, &logger)
}

func TestProcessTaskSuccess(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	w := newTestWorker(db, nil, RetryPolicy{})
	w.Handle(TaskNotify, NotifyHandler(db))

	ctx := context.Background()
	n := &models.Notification{UserID: user.ID, Type: models.NotificationSystem, Title: "Hi", Message: "Welcome"}
	require.NoError(t, w.EnqueueTask(ctx, TaskNotify, 0, n))

	task, ok := w.tryLocalQueue()
	require.True(t, ok, "expected task in local queue")
	w.processTask(ctx, &task)

	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, database.TaskCompleted, got.Status)
	assert.Equal(t, 0, got.RetryCount)
	assert.Nil(t, got.NextRetryAt)

	list, err := db.ListNotifications(ctx, user.ID, false, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Welcome", list[0].Message)
}

func TestProcessTaskRetry(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(db, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Second})
	w.Handle(TaskPublish, func(context.Context, *models.Task) error { return errors.New("boom") })

	ctx := context.Background()
	require.NoError(t, w.EnqueueTask(ctx, TaskPublish, 2, map[string]int{"a": 1}))

	task, ok := w.tryLocalQueue()
	require.True(t, ok)
	w.processTask(ctx, &task)

	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, database.TaskRetry, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.NextRetryAt)
	assert.True(t, got.NextRetryAt.After(time.Now()))
	require.NotNil(t, got.LastError)
	assert.Equal(t, "boom", *got.LastError)
}

func TestProcessTaskFailToDeadLetter(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	db := newTestDB(t)
	w := newTestWorker(db, client, RetryPolicy{MaxRetries: 1})
	w.Handle(TaskPublish, func(context.Context, *models.Task) error { return errors.New("fatal") })

	ctx := context.Background()
	require.NoError(t, w.EnqueueTask(ctx, TaskPublish, 3, nil))

	task, ok := w.tryRedis(ctx)
	require.True(t, ok, "expected task in redis queue")
	w.processTask(ctx, &task)

	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, database.TaskFailed, got.Status)

	dead, err := s.List("tasks:deadletter")
	require.NoError(t, err)
	require.Len(t, dead, 1)
	var deadTask models.Task
	require.NoError(t, json.Unmarshal([]byte(dead[0]), &deadTask))
	assert.Equal(t, task.ID, deadTask.ID)
}

func TestProcessTaskUnknownType(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(db, nil, RetryPolicy{})

	ctx := context.Background()
	require.NoError(t, w.EnqueueTask(ctx, "mystery", 0, nil))
	task, _ := w.tryLocalQueue()
	w.processTask(ctx, &task)

	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, database.TaskFailed, got.Status)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "unknown task type")
}

func TestProcessTaskClaimedOnce(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(db, nil, RetryPolicy{})
	calls := 0
	w.Handle(TaskPublish, func(context.Context, *models.Task) error { calls++; return nil })

	ctx := context.Background()
	require.NoError(t, w.EnqueueTask(ctx, TaskPublish, 0, nil))
	task, _ := w.tryLocalQueue()

	w.processTask(ctx, &task)
	w.processTask(ctx, &task)
	assert.Equal(t, 1, calls)

	assert.Equal(t, 0, w.pollOnce(ctx), "completed task is not polled again")
}

func TestEnqueueTaskValidation(t *testing.T) {
	w := newTestWorker(newTestDB(t), nil, RetryPolicy{})
	ctx := context.Background()

	assert.Error(t, w.EnqueueTask(ctx, "", 1, nil))
	assert.Error(t, w.EnqueueTask(ctx, TaskNotify, 1, make(chan int)))
}

func TestStartDrainsQueue(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db)
	w := newTestWorker(db, nil, RetryPolicy{})
	w.Handle(TaskNotify, NotifyHandler(db))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Start(ctx, 2)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		n := &models.Notification{UserID: user.ID, Type: models.NotificationSystem, Title: "t", Message: "m"}
		require.NoError(t, w.EnqueueTask(context.Background(), TaskNotify, 0, n))
	}

	require.Eventually(t, func() bool {
		list, err := db.ListNotifications(context.Background(), user.ID, false, 10)
		return err == nil && len(list) == 3
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestPublishHandler(t *testing.T) {
	pub := &fakePublisher{}
	h := PublishHandler(pub)

	event, err := events.NewJSONEvent(events.EventBookingCreated, events.BookingEventPayload{BookingID: 5})
	require.NoError(t, err)
	raw, err := json.Marshal(event)
	require.NoError(t, err)

	require.NoError(t, h(context.Background(), &models.Task{Payload: string(raw)}))
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.EventBookingCreated, pub.events[0].Type)

	assert.Error(t, h(context.Background(), &models.Task{Payload: "not json"}))
}

func TestNotifyHandlerRejectsMissingRecipient(t *testing.T) {
	h := NotifyHandler(newTestDB(t))
	assert.Error(t, h(context.Background(), &models.Task{Payload: `{"title":"x"}`}))
}

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 5*time.Second, policy.NextDelay(5), "capped")
	assert.Equal(t, time.Second, policy.NextDelay(0))
	assert.Equal(t, time.Second, RetryPolicy{}.NextDelay(1))

	assert.False(t, RetryPolicy{MaxRetries: 3}.Exhausted(2))
	assert.True(t, RetryPolicy{MaxRetries: 3}.Exhausted(3))
	assert.False(t, RetryPolicy{}.Exhausted(100))
}

type fakePublisher struct {
	events []*events.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e *events.Event) error {
	f.events = append(f.events, e)
	return f.err
}
