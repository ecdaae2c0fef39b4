package uploading

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jlyon1/party-camera-ios/backend"
	"github.com/jlyon1/party-camera-ios/ccc/logging"
)

const (
	DefaultContentType    = "image/jpeg"
	DefaultAttemptTimeout = 60 * time.Second
)

// Uploader drains a Queue one entry at a time against the backend
type Uploader interface {
	// Enqueue appends entry to the queue. It never blocks and never fails.
	Enqueue(entry *Entry)

	// Start launches the drain loop; calling it again is a no-op
	Start(ctx context.Context)

	// InFlight reports whether an entry is currently being uploaded
	InFlight() bool

	// Pending is the number of entries waiting behind the one in flight
	Pending() int

	// Drain waits until the queue is empty and nothing is in flight.
	// It returns false if the timeout passed first.
	Drain(timeout time.Duration) bool

	// Stop ends the drain loop after the current attempt finishes. Entries
	// still queued are not uploaded.
	Stop()
}

// UploaderOptions configures an Uploader
type UploaderOptions struct {
	ContentType    string        // used for entries that do not name one
	AttemptTimeout time.Duration // bounds presign plus transfer of one attempt
	OnOutcome      func(Outcome) // called from the drain loop after every entry, before it counts as idle
}

type uploader struct {
	backend backend.Backend
	queue   *Queue
	policy  FailurePolicy
	options UploaderOptions
	logger  logging.Logger

	seq atomic.Uint64

	mu       sync.Mutex
	inFlight bool
	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewUploader creates an uploader over queue. A nil policy abandons failed entries.
func NewUploader(b backend.Backend, queue *Queue, policy FailurePolicy, options UploaderOptions, logger logging.Logger) Uploader {
	if logger == nil {
		logger = logging.NopLogger
	}
	if queue == nil {
		queue = NewQueue()
	}
	if policy == nil {
		policy = AbandonPolicy{}
	}
	if options.ContentType == "" {
		options.ContentType = DefaultContentType
	}
	if options.AttemptTimeout <= 0 {
		options.AttemptTimeout = DefaultAttemptTimeout
	}

	return &uploader{
		backend: b,
		queue:   queue,
		policy:  policy,
		options: options,
		logger:  logger,
	}
}

func (u *uploader) Enqueue(entry *Entry) {
	entry.Seq = u.seq.Add(1)
	if entry.ContentType == "" {
		entry.ContentType = u.options.ContentType
	}
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now()
	}

	u.queue.Push(entry)
	u.logger.Debug("Queued photo for upload", "seq", entry.Seq, "eventId", entry.EventID, "bytes", len(entry.Data))
}

func (u *uploader) Start(ctx context.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.started {
		return
	}
	u.started = true

	runCtx, cancel := context.WithCancel(ctx)
	u.cancel = cancel

	u.wg.Add(1)
	go u.run(runCtx)
}

func (u *uploader) InFlight() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.inFlight
}

func (u *uploader) Pending() int {
	return u.queue.Len()
}

func (u *uploader) Drain(timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if u.idle() {
			return true
		}
		select {
		case <-deadline.C:
			u.logger.Warn("Upload queue drain timeout", "pending", u.queue.Len())
			return false
		case <-ticker.C:
		}
	}
}

func (u *uploader) Stop() {
	u.mu.Lock()
	cancel := u.cancel
	u.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	u.wg.Wait()
}

func (u *uploader) idle() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return !u.inFlight && u.queue.Len() == 0
}

// next pops the head and marks it in flight in one step, so idle never
// observes an entry that is neither queued nor in flight
func (u *uploader) next() (*Entry, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	entry, ok := u.queue.Pop()
	u.inFlight = ok
	return entry, ok
}

func (u *uploader) done() {
	u.mu.Lock()
	u.inFlight = false
	u.mu.Unlock()
}

// run is the single drain loop. It blocks on the queue's ready signal
// while idle and processes entries strictly one after another.
func (u *uploader) run(ctx context.Context) {
	defer u.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		entry, ok := u.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-u.queue.Ready():
				continue
			}
		}

		outcome := u.process(ctx, entry)
		if u.options.OnOutcome != nil {
			u.options.OnOutcome(outcome)
		}
		u.done()
	}
}

// process attempts entry until it succeeds or the policy gives up
func (u *uploader) process(ctx context.Context, entry *Entry) Outcome {
	outcome := Outcome{Entry: entry}

	for {
		outcome.Attempts++
		fileName, err := u.attempt(ctx, entry)
		if fileName != "" {
			outcome.FileName = fileName
		}

		if err == nil {
			outcome.Status = StatusUploaded
			u.logger.Info("Uploaded photo",
				"seq", entry.Seq, "eventId", entry.EventID, "fileName", fileName,
				"bytes", len(entry.Data), "attempt", outcome.Attempts)
			return outcome
		}

		outcome.Err = err
		wait, retry := u.policy.Retry(outcome.Attempts, err)
		if !retry {
			outcome.Status = StatusAbandoned
			u.logger.Warn("Abandoning upload",
				"seq", entry.Seq, "eventId", entry.EventID, "attempt", outcome.Attempts, "error", err)
			return outcome
		}

		u.logger.Info("Retrying upload",
			"seq", entry.Seq, "attempt", outcome.Attempts, "backoff", wait, "error", err)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			outcome.Status = StatusAbandoned
			outcome.Err = fmt.Errorf("stopped while waiting to retry: %w", err)
			return outcome
		case <-timer.C:
		}
	}
}

// attempt requests a fresh presigned upload and transfers the bytes to it.
// Stopping the uploader does not cut an attempt short; the timeout does.
func (u *uploader) attempt(ctx context.Context, entry *Entry) (string, error) {
	attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.options.AttemptTimeout)
	defer cancel()

	presigned, err := u.backend.FetchPresignedUpload(attemptCtx, entry.ContentType, entry.EventID)
	if err != nil {
		return "", fmt.Errorf("failed to get presigned upload: %w", err)
	}

	if err := u.backend.PutObject(attemptCtx, presigned.SignedURL, entry.ContentType, entry.Data); err != nil {
		return presigned.FileNameWithType, fmt.Errorf("failed to upload %s: %w", presigned.FileNameWithType, err)
	}

	return presigned.FileNameWithType, nil
}
