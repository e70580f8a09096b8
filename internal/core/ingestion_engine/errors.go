package ingestion_engine

import "fmt"

// ExtractionError means the source file could not be read or parsed:
// missing object, corrupt bytes, or an unsupported format. It is fatal
// to the run and transitions the document to failed.
type ExtractionError struct {
	Op  string
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extraction: %s", e.Op)
	}
	return fmt.Sprintf("extraction: %s: %v", e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EnrichmentError means one summarization call failed or timed out. It is
// recovered locally with fallback content and never fails a run; it
// exists so the fallback path can log a typed cause.
type EnrichmentError struct {
	Op  string
	Err error
}

func (e *EnrichmentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("enrichment: %s", e.Op)
	}
	return fmt.Sprintf("enrichment: %s: %v", e.Op, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

// StorageWriteError means a chunk insert or status update failed. It is
// fatal to the run; partial writes already committed are not rolled back.
type StorageWriteError struct {
	Op  string
	Err error
}

func (e *StorageWriteError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("storage write: %s", e.Op)
	}
	return fmt.Sprintf("storage write: %s: %v", e.Op, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }
