package database

import (
	"context"
	"testing"
	"time"

	"scams/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTasks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.Task{TaskType: "notify", BookingID: 7, Payload: `{"x":1}`}
	require.NoError(t, db.CreateTask(ctx, task))
	assert.NotZero(t, task.ID)
	assert.Equal(t, TaskPending, task.Status)

	future := time.Now().Add(time.Hour)
	require.NoError(t, db.CreateTask(ctx, &models.Task{TaskType: "publish", NextRetryAt: &future}))

	pending, err := db.GetPendingTasks(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "tasks scheduled in the future are not due")
	assert.Equal(t, task.ID, pending[0].ID)

	next := time.Now().Add(-time.Second)
	require.NoError(t, db.UpdateTaskStatus(ctx, task.ID, TaskRetry, "boom", &next))
	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskRetry, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "boom", *got.LastError)

	require.NoError(t, db.UpdateTaskStatus(ctx, task.ID, TaskFailed, "gave up", nil))
	failed, err := db.GetFailedTasks(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.NotNil(t, failed[0].ProcessedAt)

	require.NoError(t, db.UpdateTaskStatus(ctx, task.ID, TaskCompleted, "", nil))
	got, err = db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, got.LastError)

	assert.ErrorIs(t, db.UpdateTaskStatus(ctx, 999, TaskCompleted, "", nil), ErrNotFound)
	_, err = db.GetTask(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimTask(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	task := &models.Task{TaskType: "notify", Payload: "{}"}
	require.NoError(t, db.CreateTask(ctx, task))

	claimed, err := db.ClaimTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = db.ClaimTask(ctx, task.ID)
	require.NoError(t, err)
	assert.False(t, claimed, "a task is claimed once")

	pending, err := db.GetPendingTasks(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	n, err := db.RequeueProcessingTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := db.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskPending, got.Status)
}
