package ingestion_engine

// Status is one step of the document processing state machine. Transitions
// are strictly forward through statusOrder, except that failed is reachable
// from any non-terminal state. The ingestion engine is the sole writer of
// a document's status once the document is confirmed.
type Status string

const (
	StatusUploading    Status = "uploading"
	StatusQueued       Status = "queued"
	StatusAnalysis     Status = "analysis"
	StatusPartitioning Status = "partitioning"
	StatusChunking     Status = "chunking"
	StatusEnrichment   Status = "enrichment"
	StatusStorage      Status = "storage"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

var statusOrder = []Status{
	StatusUploading,
	StatusQueued,
	StatusAnalysis,
	StatusPartitioning,
	StatusChunking,
	StatusEnrichment,
	StatusStorage,
	StatusCompleted,
}

// statusProgress maps each forward state to the progress percentage
// persisted when the state is entered. Progress is monotonically
// non-decreasing; failed keeps the last recorded value.
var statusProgress = map[Status]int{
	StatusUploading:    0,
	StatusQueued:       0,
	StatusAnalysis:     10,
	StatusPartitioning: 30,
	StatusChunking:     50,
	StatusEnrichment:   70,
	StatusStorage:      90,
	StatusCompleted:    100,
}

// ProgressFor returns the progress percentage for a forward state, or -1
// for failed and unknown states (meaning: leave progress untouched).
func ProgressFor(s Status) int {
	p, ok := statusProgress[s]
	if !ok {
		return -1
	}
	return p
}

// Rank returns the position of s in the forward order, or -1 for failed
// and unknown states.
func Rank(s Status) int {
	for i, st := range statusOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// ValidWalk reports whether seq is a legal observed status sequence for one
// document: strictly forward through the state order, optionally ending in
// failed, and ending in completed or failed when terminal.
func ValidWalk(seq []Status) bool {
	prev := -1
	for i, s := range seq {
		if s == StatusFailed {
			return i == len(seq)-1
		}
		r := Rank(s)
		if r < 0 || r <= prev {
			return false
		}
		prev = r
	}
	return true
}
