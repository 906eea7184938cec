package dto

// IngestResult summarises one CSV ingestion batch.
type IngestResult struct {
	Kind          string            `json:"kind"`
	FileName      string            `json:"file_name"`
	RowsProcessed int               `json:"rows_processed"`
	Created       int               `json:"created"`
	Updated       int               `json:"updated"`
	Issues        []string          `json:"issues"`
	ArchiveURL    string            `json:"archive_url,omitempty"`
	Reclassified  *ReclassifyResult `json:"reclassified,omitempty"`
}
