package domain

import "time"

type PageStatus string

const (
	StatusUploaded   PageStatus = "uploaded"
	StatusProcessing PageStatus = "processing"
	StatusReady      PageStatus = "ready"
	StatusFailed     PageStatus = "failed"
)

// Page is one scraped documentation page tracked through the ingestion
// pipeline. ProcessedAt is stamped when its chunks land in the vector index.
type Page struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	Title       string     `json:"title,omitempty"`
	MimeType    string     `json:"mime_type"`
	SourceURL   string     `json:"source_url,omitempty"`
	StoragePath string     `json:"storage_path"`
	Status      PageStatus `json:"status"`
	Error       string     `json:"error,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
