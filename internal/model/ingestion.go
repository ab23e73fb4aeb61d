package model

import "time"

// IngestionState is a step of the ingestion state machine.
type IngestionState string

const (
	StateReceived      IngestionState = "Received"
	StateTextExtracted IngestionState = "TextExtracted"
	StateChunked       IngestionState = "Chunked"
	StateEmbedded      IngestionState = "Embedded"
	StateStored        IngestionState = "Stored"
	StateComplete      IngestionState = "Complete"
	StateFailed        IngestionState = "Failed"
)

// Terminal reports whether no further transitions can follow s.
func (s IngestionState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// IngestionStatus is the last known state of an ingestion, kept in Redis.
type IngestionStatus struct {
	ID        string         `json:"id"`
	State     IngestionState `json:"state"`
	CorpusID  uint           `json:"corpus_id,omitempty"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}
