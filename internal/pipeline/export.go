package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go-image-pipeline/internal/model"
	"go-image-pipeline/internal/storage"
)

// ExportResult describes one written report file
type ExportResult struct {
	Type        string    `json:"type"` // "csv" or "json"
	Path        string    `json:"path"`
	RecordCount int       `json:"record_count"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	ExportedAt  time.Time `json:"exported_at"`
}

// ExportReport writes report to path. A .csv path gets one row per failed
// item of either stage; any other extension gets the full report as JSON.
func ExportReport(st storage.Storage, path string, report model.BatchReport) ExportResult {
	result := ExportResult{Path: path, ExportedAt: time.Now()}

	w, err := st.Create(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		result.Type = "csv"
		result.RecordCount, err = exportFailuresCSV(w, report)
	default:
		result.Type = "json"
		result.RecordCount, err = exportJSON(w, report)
	}
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		result.Error = fmt.Sprintf("export %s: %v", result.Type, err)
		return result
	}
	result.Success = true
	return result
}

func exportFailuresCSV(w io.Writer, report model.BatchReport) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"batch_id", "stage", "item_id", "error"}); err != nil {
		return 0, err
	}

	rows := 0
	for _, m := range []model.BatchMetrics{report.Fetch, report.Transform} {
		for _, id := range m.FailedIDs {
			record := []string{report.BatchID, m.Stage, strconv.Itoa(id), m.Failures[id]}
			if err := cw.Write(record); err != nil {
				return rows, err
			}
			rows++
		}
	}
	cw.Flush()
	return rows, cw.Error()
}

func exportJSON(w io.Writer, report model.BatchReport) (int, error) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return 0, err
	}
	return report.Fetch.TotalItems, nil
}
