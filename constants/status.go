package constants

// ExtractionStatus is the canonical processing status stored on an upload.
type ExtractionStatus string

// Stable values (store these exact strings in DB).
const (
	StatusQueued  ExtractionStatus = "QUEUED"  // waiting for a worker
	StatusRunning ExtractionStatus = "RUNNING" // in progress
	StatusTextOK  ExtractionStatus = "TEXT_OK" // raw text extracted
	StatusLLMOK   ExtractionStatus = "LLM_OK"  // structured data stored
	StatusFailed  ExtractionStatus = "FAILED"  // terminal failure
)
