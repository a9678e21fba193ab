package model

import "time"

// BatchRecord is a batch row as stored in the ledger
type BatchRecord struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Spec      BatchSpec `json:"spec"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FailureRecord is one failed item of a stage
type FailureRecord struct {
	BatchID   string    `json:"batch_id"`
	Stage     string    `json:"stage"`
	ItemID    int       `json:"item_id"`
	Error     string    `json:"error"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrorDetail is a batch level error (never an individual item failure)
type ErrorDetail struct {
	BatchID   string    `json:"batch_id"`
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
