// Package tasks defines the messages exchanged over Kafka.
package tasks

// IngestionTask asks a consumer to ingest an archived CV.
type IngestionTask struct {
	IngestionID string `json:"ingestion_id"`
	ObjectKey   string `json:"object_key"`
	FileName    string `json:"file_name"`
	Name        string `json:"name"`
}
