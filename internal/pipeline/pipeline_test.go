package pipeline_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-image-pipeline/internal/config"
	"go-image-pipeline/internal/model"
	"go-image-pipeline/internal/pipeline"
	"go-image-pipeline/internal/source"
	"go-image-pipeline/internal/storage"
)

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 6, 6))
	for i := range 6 {
		img.Set(i, i, color.NRGBA{R: 200, G: 40, B: 90, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fakeRemote serves tinyPNG for every locator except those in broken,
// which always fail with a transient error
type fakeRemote struct {
	body   []byte
	broken map[string]bool

	mu    sync.Mutex
	calls map[string][]time.Time
}

func (f *fakeRemote) Fetch(ctx context.Context, locator string, timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = map[string][]time.Time{}
	}
	f.calls[locator] = append(f.calls[locator], time.Now())
	f.mu.Unlock()

	for suffix := range f.broken {
		if strings.HasSuffix(locator, suffix) {
			return nil, model.NewError(model.CodeTransientFetch, 0, &source.StatusError{URL: locator, Code: 404})
		}
	}
	return f.body, nil
}

// recordingReporter keeps every report it receives
type recordingReporter struct {
	mu       sync.Mutex
	statuses []string
	stages   []model.BatchMetrics
	batches  []model.BatchReport
}

func (r *recordingReporter) ReportStatus(_ context.Context, _ string, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, status)
	return nil
}

func (r *recordingReporter) ReportStage(_ context.Context, _ string, m model.BatchMetrics) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, m)
	return nil
}

func (r *recordingReporter) ReportBatch(_ context.Context, report model.BatchReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, report)
	return nil
}

func testSpec(n int) model.BatchSpec {
	spec := config.DefaultSpec()
	spec.ItemCount = n
	spec.Source.BaseURL = "https://images.test/assets"
	spec.Fetch.Backoff = "10ms"
	return spec
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_ScenarioA_AllSucceed(t *testing.T) {
	st := storage.NewMemory()
	rep := &recordingReporter{}
	remote := &fakeRemote{body: tinyPNG(t)}

	report, err := pipeline.Run(context.Background(), "batch-a", testSpec(150), pipeline.Deps{
		Fetcher:  remote,
		Storage:  st,
		Reporter: rep,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)

	require.Equal(t, model.StatusCompleted, report.Status)
	require.Equal(t, 150, report.Fetch.TotalItems)
	require.Equal(t, 150, report.Fetch.Succeeded)
	require.Equal(t, 150, report.Transform.TotalItems)
	require.Equal(t, 150, report.Transform.Succeeded)
	require.Empty(t, report.Fetch.FailedIDs)
	require.Greater(t, report.Fetch.ThroughputItemsPerSec, 0.0)

	for _, loc := range []string{"pokemon_dataset/001.png", "pokemon_dataset/150.png", "pokemon_processed/075.png"} {
		ok, err := st.Exists(loc)
		require.NoError(t, err)
		require.True(t, ok, loc)
	}

	require.Equal(t, []string{model.StatusFetching, model.StatusTransforming, model.StatusCompleted}, rep.statuses)
	require.Len(t, rep.stages, 2)
	require.Len(t, rep.batches, 1)
}

func TestRun_ScenarioB_OneItemFailsAfterRetries(t *testing.T) {
	st := storage.NewMemory()
	remote := &fakeRemote{body: tinyPNG(t), broken: map[string]bool{"/037.png": true}}

	spec := testSpec(150)
	spec.Fetch.MaxAttempts = 2
	spec.Fetch.Backoff = "1s"

	report, err := pipeline.Run(context.Background(), "batch-b", spec, pipeline.Deps{
		Fetcher: remote,
		Storage: st,
		Logger:  quietLogger(),
	})
	require.NoError(t, err)

	require.Equal(t, 149, report.Fetch.Succeeded)
	require.Equal(t, 1, report.Fetch.Failed)
	require.Equal(t, []int{37}, report.Fetch.FailedIDs)
	require.Contains(t, report.Fetch.Failures[37], "after 2 attempt(s)")
	require.Contains(t, report.Fetch.Failures[37], "404")

	calls := remote.calls["https://images.test/assets/037.png"]
	require.Len(t, calls, 2)
	require.GreaterOrEqual(t, calls[1].Sub(calls[0]), time.Second)

	// item 37 never reaches the transform stage
	require.Equal(t, 149, report.Transform.TotalItems)
	require.Equal(t, 149, report.Transform.Succeeded)
	require.NotContains(t, report.Transform.Failures, 37)
	ok, err := st.Exists("pokemon_processed/037.png")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRun_ScenarioC_ClampsCPUWorkers(t *testing.T) {
	var logs bytes.Buffer
	proc := &copyProcessor{delay: time.Millisecond}

	spec := testSpec(150)
	spec.Workers.CPU = 16

	report, err := pipeline.Run(context.Background(), "batch-c", spec, pipeline.Deps{
		Fetcher:   &fakeRemote{body: []byte("raw")},
		Storage:   storage.NewMemory(),
		Processor: proc,
		Logger:    slog.New(slog.NewTextHandler(&logs, nil)),
	})
	require.NoError(t, err)
	require.Equal(t, 150, report.Transform.Succeeded)
	require.LessOrEqual(t, proc.gauge.peak.Load(), int64(model.MaxCPUWorkers))
	require.Contains(t, logs.String(), "clamped to 8")
}

func TestRun_Pipelined(t *testing.T) {
	proc := &copyProcessor{delay: time.Millisecond, fail: map[string]bool{"pokemon_processed/010.png": true}}
	remote := &fakeRemote{body: []byte("raw"), broken: map[string]bool{"/005.png": true}}

	spec := testSpec(60)
	spec.Mode = model.ModePipelined
	spec.Fetch.MaxAttempts = 1

	report, err := pipeline.Run(context.Background(), "batch-p", spec, pipeline.Deps{
		Fetcher:   remote,
		Storage:   storage.NewMemory(),
		Processor: proc,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	require.Equal(t, model.ModePipelined, report.Mode)
	require.Equal(t, []int{5}, report.Fetch.FailedIDs)
	require.Equal(t, 59, report.Transform.TotalItems)
	require.Equal(t, 58, report.Transform.Succeeded)
	require.Equal(t, []int{10}, report.Transform.FailedIDs)
	require.True(t, report.Fetch.Complete())
	require.True(t, report.Transform.Complete())
	require.LessOrEqual(t, proc.gauge.peak.Load(), int64(8))
}

func TestRun_CancelledBatchResolvesEveryItem(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var once sync.Once
	fetcher := source.FetcherFunc(func(ctx context.Context, locator string, timeout time.Duration) ([]byte, error) {
		if strings.HasSuffix(locator, "/020.png") {
			once.Do(cancel)
		}
		return []byte("raw"), nil
	})

	spec := testSpec(150)
	spec.Workers.IO = 2

	report, err := pipeline.Run(ctx, "batch-x", spec, pipeline.Deps{
		Fetcher:   fetcher,
		Storage:   storage.NewMemory(),
		Processor: &copyProcessor{},
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	require.Equal(t, model.StatusCancelled, report.Status)
	require.True(t, report.Fetch.Complete())
	require.Equal(t, 150, report.Fetch.TotalItems)
	require.Greater(t, report.Fetch.Failed, 0)
	require.Contains(t, report.Fetch.Failures[150], string(model.CodeCancelled))
	require.True(t, report.Transform.Complete())
	require.Equal(t, report.Fetch.Succeeded, report.Transform.TotalItems)
}

func TestRun_InvalidConfig(t *testing.T) {
	rep := &recordingReporter{}
	spec := testSpec(10)
	spec.Mode = "parallel"

	report, err := pipeline.Run(context.Background(), "batch-bad", spec, pipeline.Deps{
		Fetcher:  &fakeRemote{},
		Storage:  storage.NewMemory(),
		Reporter: rep,
		Logger:   quietLogger(),
	})
	require.Error(t, err)
	require.Equal(t, model.CodeInvalidConfig, model.CodeOf(err))
	require.Equal(t, model.StatusFailed, report.Status)
	require.Len(t, rep.batches, 1)
	require.Equal(t, model.StatusFailed, rep.batches[0].Status)
}

func TestEnumerate(t *testing.T) {
	items, err := pipeline.Enumerate(testSpec(3))
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, model.WorkItem{
		ID:            2,
		SourceLocator: "https://images.test/assets/002.png",
		DestLocator:   "pokemon_dataset/002.png",
		OutputLocator: "pokemon_processed/002.png",
	}, items[1])
	require.Equal(t, "002.png", items[1].FileName())

	_, err = pipeline.Enumerate(testSpec(-1))
	require.Error(t, err)
}

func TestExportReport(t *testing.T) {
	st := storage.NewMemory()
	report := model.BatchReport{
		BatchID: "b1",
		Fetch: model.BatchMetrics{
			Stage: model.StageFetch, TotalItems: 3, Succeeded: 2, Failed: 1,
			FailedIDs: []int{37}, Failures: map[int]string{37: "404, not found"},
		},
		Transform: model.BatchMetrics{Stage: model.StageTransform, TotalItems: 2, Succeeded: 2},
	}

	res := pipeline.ExportReport(st, "reports/failures.csv", report)
	require.True(t, res.Success, res.Error)
	require.Equal(t, 1, res.RecordCount)
	data, err := st.ReadFile("reports/failures.csv")
	require.NoError(t, err)
	require.Equal(t, "batch_id,stage,item_id,error\nb1,fetch,37,\"404, not found\"\n", string(data))

	res = pipeline.ExportReport(st, "reports/report.json", report)
	require.True(t, res.Success, res.Error)
	require.Equal(t, "json", res.Type)
	data, err = st.ReadFile("reports/report.json")
	require.NoError(t, err)
	require.Contains(t, string(data), `"batch_id": "b1"`)
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	err := pipeline.WriteSummary(&buf, model.BatchReport{
		Status: model.StatusCompleted,
		Fetch: model.BatchMetrics{
			Stage: model.StageFetch, TotalItems: 150, Succeeded: 149, Failed: 1,
			FailedIDs: []int{37}, ElapsedSeconds: 3, ThroughputItemsPerSec: 50,
		},
		Transform:      model.BatchMetrics{Stage: model.StageTransform, TotalItems: 149, Succeeded: 149, ElapsedSeconds: 10},
		ElapsedSeconds: 13,
	})
	require.NoError(t, err)
	out := buf.String()
	require.Contains(t, out, "succeeded: 149/150")
	require.Contains(t, out, "speed: 50.00 img/s")
	require.Contains(t, out, "failed items: [37]")
	require.Contains(t, out, "total: 13.00s")
}
