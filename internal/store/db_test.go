package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-image-pipeline/internal/config"
	"go-image-pipeline/internal/model"
	"go-image-pipeline/internal/store"
)

func openLedger(t *testing.T) {
	t.Helper()
	require.NoError(t, store.InitDB(":memory:"))
	t.Cleanup(func() { store.Close() })
}

func TestBatchLifecycle(t *testing.T) {
	openLedger(t)

	spec := config.DefaultSpec()
	spec.ItemCount = 12
	require.NoError(t, store.SaveBatch("b1", spec))

	rec, err := store.GetBatch("b1")
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, rec.Status)
	require.Equal(t, 12, rec.Spec.ItemCount)
	require.Equal(t, spec, rec.Spec)

	require.NoError(t, store.UpdateBatchStatus("b1", model.StatusFetching))
	rec, err = store.GetBatch("b1")
	require.NoError(t, err)
	require.Equal(t, model.StatusFetching, rec.Status)
	require.False(t, rec.UpdatedAt.Before(rec.CreatedAt))

	list, err := store.ListBatches()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "b1", list[0].ID)
}

func TestGetBatch_NotFound(t *testing.T) {
	openLedger(t)

	_, err := store.GetBatch("missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, store.UpdateBatchStatus("missing", model.StatusCompleted), store.ErrNotFound)
}

func TestStageMetricsAndFailures(t *testing.T) {
	openLedger(t)
	require.NoError(t, store.SaveBatch("b2", config.DefaultSpec()))

	finished := time.Now()
	fetch := model.BatchMetrics{
		Stage: model.StageFetch, TotalItems: 150, Succeeded: 149, Failed: 1,
		FailedIDs: []int{37}, Failures: map[int]string{37: "PERMANENT_FETCH_ERROR: item 37"},
		ElapsedSeconds: 3.5, ThroughputItemsPerSec: 150 / 3.5,
		StartedAt: finished.Add(-3500 * time.Millisecond), FinishedAt: &finished,
	}
	transform := model.BatchMetrics{
		Stage: model.StageTransform, TotalItems: 149, Succeeded: 147, Failed: 2,
		FailedIDs: []int{3, 90}, Failures: map[int]string{3: "decode", 90: "panic"},
		StartedAt: finished,
	}
	require.NoError(t, store.SaveStageMetrics("b2", transform))
	require.NoError(t, store.SaveStageMetrics("b2", fetch))
	// saving a stage again replaces it
	require.NoError(t, store.SaveStageMetrics("b2", fetch))

	metrics, err := store.GetStageMetrics("b2")
	require.NoError(t, err)
	require.Len(t, metrics, 2)
	require.Equal(t, model.StageFetch, metrics[0].Stage)
	require.Equal(t, 149, metrics[0].Succeeded)
	require.Equal(t, []int{37}, metrics[0].FailedIDs)
	require.NotNil(t, metrics[0].FinishedAt)
	require.Equal(t, model.StageTransform, metrics[1].Stage)
	require.Equal(t, []int{3, 90}, metrics[1].FailedIDs)
	require.Nil(t, metrics[1].FinishedAt)

	all, err := store.GetFailures("b2", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, 37, all[0].ItemID)

	onlyTransform, err := store.GetFailures("b2", model.StageTransform)
	require.NoError(t, err)
	require.Len(t, onlyTransform, 2)
	require.Equal(t, "panic", onlyTransform[1].Error)
}

func TestBatchErrors(t *testing.T) {
	openLedger(t)
	require.NoError(t, store.SaveBatch("b3", config.DefaultSpec()))

	require.NoError(t, store.SaveBatchError("b3", nil))
	require.NoError(t, store.SaveBatchError("b3", model.NewError(model.CodeInvalidConfig, 0, errors.New("unknown mode"))))

	details, err := store.GetBatchErrors("b3")
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, model.CodeInvalidConfig, details[0].Code)
	require.Contains(t, details[0].Message, "unknown mode")
}

func TestReporter(t *testing.T) {
	openLedger(t)
	require.NoError(t, store.SaveBatch("b4", config.DefaultSpec()))

	var r store.Reporter
	ctx := context.Background()
	require.NoError(t, r.ReportStatus(ctx, "b4", model.StatusTransforming))
	require.NoError(t, r.ReportStage(ctx, "b4", model.BatchMetrics{Stage: model.StageFetch, TotalItems: 1, Succeeded: 1}))
	require.NoError(t, r.ReportBatch(ctx, model.BatchReport{BatchID: "b4", Status: model.StatusCompleted}))

	rec, err := store.GetBatch("b4")
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, rec.Status)

	metrics, err := store.GetStageMetrics("b4")
	require.NoError(t, err)
	require.Len(t, metrics, 1)
}
