package model

import "path/filepath"

// WorkItem is one remote image to fetch and transform
type WorkItem struct {
	ID            int    `json:"id"`
	SourceLocator string `json:"source_locator"` // remote URL
	DestLocator   string `json:"dest_locator"`   // raw bytes destination
	OutputLocator string `json:"output_locator"` // transformed image destination
}

// FileName returns the base name shared by the raw and transformed copies
func (w WorkItem) FileName() string {
	return filepath.Base(w.DestLocator)
}

// Outcome is the per-item result of a single stage
type Outcome interface {
	ItemID() int
	Succeeded() bool
	ErrorText() string
}

// FetchOutcome is produced exactly once per WorkItem by the fetch stage
type FetchOutcome struct {
	ID           int     `json:"item_id"`
	Success      bool    `json:"success"`
	AttemptsUsed int     `json:"attempts_used"`
	Error        string  `json:"error,omitempty"`
	Bytes        int64   `json:"bytes"`
	ContentType  string  `json:"content_type,omitempty"`
	Seconds      float64 `json:"seconds"`
}

func (o FetchOutcome) ItemID() int       { return o.ID }
func (o FetchOutcome) Succeeded() bool   { return o.Success }
func (o FetchOutcome) ErrorText() string { return o.Error }

// TransformOutcome is produced exactly once per item that reached the transform stage
type TransformOutcome struct {
	ID      int     `json:"item_id"`
	Success bool    `json:"success"`
	Error   string  `json:"error,omitempty"`
	Seconds float64 `json:"seconds"`
}

func (o TransformOutcome) ItemID() int       { return o.ID }
func (o TransformOutcome) Succeeded() bool   { return o.Success }
func (o TransformOutcome) ErrorText() string { return o.Error }
