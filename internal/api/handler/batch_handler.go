package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-image-pipeline/internal/config"
	"go-image-pipeline/internal/model"
	"go-image-pipeline/internal/pipeline"
	"go-image-pipeline/internal/store"
	"go-image-pipeline/pkg/router"
)

var (
	deps     pipeline.Deps
	defaults = config.DefaultSpec()

	mu      sync.Mutex
	running = map[string]context.CancelFunc{}
	wg      sync.WaitGroup
)

// Configure sets the collaborators and the base spec used for new batches.
// Request bodies are decoded on top of base.
func Configure(d pipeline.Deps, base model.BatchSpec) {
	mu.Lock()
	defer mu.Unlock()
	deps = d
	defaults = base
}

// Wait blocks until every batch started by CreateBatch has finished
func Wait() {
	wg.Wait()
}

// CancelAll cancels every running batch
func CancelAll() {
	mu.Lock()
	defer mu.Unlock()
	for _, cancel := range running {
		cancel()
	}
}

// BatchCreated is the response of CreateBatch
type BatchCreated struct {
	Message   string    `json:"message"`
	BatchID   string    `json:"batchID"`
	Status    string    `json:"status"`
	Warnings  []string  `json:"warnings,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// BatchDetail is a batch with its batch level errors
type BatchDetail struct {
	model.BatchRecord
	Running bool                `json:"running"`
	Errors  []model.ErrorDetail `json:"errors"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateBatch creates and starts a new image batch
// @Summary Create a new batch
// @Description Validate the batch configuration, store it and run it asynchronously. Omitted fields take the server defaults.
// @Tags batches
// @Accept json
// @Produce json
// @Param batch body model.BatchSpec true "Batch configuration"
// @Success 202 {object} BatchCreated "Batch accepted"
// @Failure 400 {object} ErrorResponse "Invalid request payload"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /batches [post]
func CreateBatch(w http.ResponseWriter, r *http.Request) {
	mu.Lock()
	spec := defaults
	d := deps
	mu.Unlock()

	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	warnings := config.Normalize(&spec)
	if err := config.Validate(spec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	batchID := uuid.New().String()
	if err := store.SaveBatch(batchID, spec); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save batch")
		return
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d.Reporter = pipeline.Reporters{store.Reporter{}, pipeline.LogReporter{Logger: logger}}

	ctx, cancel := context.WithCancel(context.Background())
	mu.Lock()
	running[batchID] = cancel
	mu.Unlock()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer func() {
			mu.Lock()
			delete(running, batchID)
			mu.Unlock()
			cancel()
		}()
		if _, err := pipeline.Run(ctx, batchID, spec, d); err != nil {
			logger.Error("batch failed", "batch", batchID, "error", err)
			if serr := store.SaveBatchError(batchID, err); serr != nil {
				logger.Error("save batch error", "batch", batchID, "error", serr)
			}
		}
	}()

	writeJSON(w, http.StatusAccepted, BatchCreated{
		Message:   "Batch created successfully!",
		BatchID:   batchID,
		Status:    model.StatusPending,
		Warnings:  warnings,
		CreatedAt: time.Now().UTC(),
	})
}

// ListBatches retrieves all batches
// @Summary List all batches
// @Description Get every batch with its current status, newest first
// @Tags batches
// @Produce json
// @Success 200 {array} model.BatchRecord "List of batches"
// @Failure 500 {object} ErrorResponse "Internal server error"
// @Router /batches [get]
func ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := store.ListBatches()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch batches")
		return
	}
	writeJSON(w, http.StatusOK, batches)
}

// GetBatch retrieves one batch
// @Summary Get batch
// @Description Retrieve the configuration, status and batch level errors of a batch
// @Tags batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} BatchDetail "Batch details"
// @Failure 404 {object} ErrorResponse "Batch not found"
// @Router /batches/{id} [get]
func GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := router.Param(r, "id")
	rec, ok := lookup(w, batchID)
	if !ok {
		return
	}

	errs, err := store.GetBatchErrors(batchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch batch errors")
		return
	}

	mu.Lock()
	_, isRunning := running[batchID]
	mu.Unlock()

	writeJSON(w, http.StatusOK, BatchDetail{BatchRecord: rec, Running: isRunning, Errors: errs})
}

// GetBatchMetrics retrieves the stage metrics of a batch
// @Summary Get batch metrics
// @Description Retrieve counts, elapsed time and throughput of every finished stage
// @Tags batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {array} model.BatchMetrics "Stage metrics"
// @Failure 404 {object} ErrorResponse "Batch not found"
// @Router /batches/{id}/metrics [get]
func GetBatchMetrics(w http.ResponseWriter, r *http.Request) {
	batchID := router.Param(r, "id")
	if _, ok := lookup(w, batchID); !ok {
		return
	}

	metrics, err := store.GetStageMetrics(batchID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch metrics")
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// GetBatchFailures retrieves the failed items of a batch
// @Summary Get batch failures
// @Description Retrieve every failed item with its error text
// @Tags batches
// @Produce json
// @Param id path string true "Batch ID"
// @Param stage query string false "Only this stage (fetch or transform)"
// @Success 200 {array} model.FailureRecord "Failed items"
// @Failure 400 {object} ErrorResponse "Unknown stage"
// @Failure 404 {object} ErrorResponse "Batch not found"
// @Router /batches/{id}/failures [get]
func GetBatchFailures(w http.ResponseWriter, r *http.Request) {
	batchID := router.Param(r, "id")
	stage := r.URL.Query().Get("stage")
	switch stage {
	case "", model.StageFetch, model.StageTransform:
	default:
		writeError(w, http.StatusBadRequest, "stage must be fetch or transform")
		return
	}
	if _, ok := lookup(w, batchID); !ok {
		return
	}

	failures, err := store.GetFailures(batchID, stage)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch failures")
		return
	}
	writeJSON(w, http.StatusOK, failures)
}

// CancelBatch cancels a running batch
// @Summary Cancel batch
// @Description Stop admitting new items; items already in flight finish, the rest are recorded as cancelled
// @Tags batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 202 {object} map[string]string "Cancellation requested"
// @Failure 404 {object} ErrorResponse "Batch not found"
// @Failure 409 {object} ErrorResponse "Batch is not running"
// @Router /batches/{id}/cancel [post]
func CancelBatch(w http.ResponseWriter, r *http.Request) {
	batchID := router.Param(r, "id")

	mu.Lock()
	cancel, ok := running[batchID]
	mu.Unlock()
	if ok {
		cancel()
		writeJSON(w, http.StatusAccepted, map[string]string{"batchID": batchID, "message": "Cancellation requested"})
		return
	}

	if _, ok := lookup(w, batchID); !ok {
		return
	}
	writeError(w, http.StatusConflict, "Batch is not running")
}

// lookup loads a batch and writes the error response when it fails
func lookup(w http.ResponseWriter, batchID string) (model.BatchRecord, bool) {
	rec, err := store.GetBatch(batchID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Batch not found")
		return rec, false
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to fetch batch")
		return rec, false
	}
	return rec, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
