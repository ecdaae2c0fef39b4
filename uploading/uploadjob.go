package uploading

import (
	"time"
)

// Entry is one photo waiting in the upload queue
type Entry struct {
	Seq         uint64 // assigned on enqueue, strictly increasing
	EventID     int
	Data        []byte // encoded image, handed to the transport as is
	ContentType string
	EnqueuedAt  time.Time
}

// Status is the terminal result of processing an entry
type Status string

const (
	StatusUploaded  Status = "uploaded"
	StatusAbandoned Status = "abandoned"
)

// Outcome reports what happened to one entry. Every enqueued entry that the
// uploader pops produces exactly one Outcome.
type Outcome struct {
	Entry    *Entry
	Status   Status
	Attempts int
	FileName string // server-chosen name, set once a presigned upload was issued
	Err      error  // last error for abandoned entries
}
