package backend

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// CallKind identifies which backend operation a recorded call was
type CallKind string

const (
	CallPresign CallKind = "presign"
	CallPut     CallKind = "put"
)

// Call is one recorded call against the MockBackend
type Call struct {
	Kind        CallKind
	EventID     int
	ContentType string
	SignedURL   string
	Data        []byte
	Started     time.Time
	Finished    time.Time
	Err         error
}

// Step scripts the behaviour of one call. Steps are consumed in call order;
// calls beyond the script succeed immediately.
type Step struct {
	Delay      time.Duration
	Gate       <-chan struct{} // when set, the call waits for it to close
	Err        error
	StatusCode int // only for puts; 0 means 200
}

// MockBackend is a scriptable in-memory Backend for testing
type MockBackend struct {
	mu sync.Mutex

	Events []Event
	Feeds  map[int]*EventFeed
	Assets map[string]*ImageWithAssets

	PresignSteps []Step
	PutSteps     []Step

	calls        []Call
	presignCount int
	putCount     int
	active       int
	maxActive    int
}

// NewMockBackend creates a new mock backend with no scripted failures
func NewMockBackend() *MockBackend {
	return &MockBackend{
		Feeds:  make(map[int]*EventFeed),
		Assets: make(map[string]*ImageWithAssets),
	}
}

func (m *MockBackend) FetchEvents(ctx context.Context) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.Events...), nil
}

func (m *MockBackend) FetchEvent(ctx context.Context, id int) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Events {
		if m.Events[i].ID == id {
			event := m.Events[i]
			return &event, nil
		}
	}
	return nil, NewStatusError("fetchEvent", http.StatusNotFound, "event not found")
}

func (m *MockBackend) FetchEventFeed(ctx context.Context, id int) (*EventFeed, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	feed, ok := m.Feeds[id]
	if !ok {
		return nil, NewStatusError("fetchEventFeed", http.StatusNotFound, "event not found")
	}
	feedCopy := *feed
	feedCopy.Images = append([]FeedImage(nil), feed.Images...)
	return &feedCopy, nil
}

func (m *MockBackend) FetchImageAssets(ctx context.Context, id string) (*ImageWithAssets, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	assets, ok := m.Assets[id]
	if !ok {
		return nil, NewStatusError("fetchImageAssets", http.StatusNotFound, "image not found")
	}
	assetsCopy := *assets
	return &assetsCopy, nil
}

func (m *MockBackend) FetchPresignedUpload(ctx context.Context, contentType string, eventID int) (*PresignedUpload, error) {
	m.mu.Lock()
	n := m.presignCount
	m.presignCount++
	step := stepAt(m.PresignSteps, n)
	idx := m.begin(Call{Kind: CallPresign, EventID: eventID, ContentType: contentType})
	m.mu.Unlock()

	err := waitStep(ctx, step)
	if err == nil {
		err = step.Err
	}

	m.mu.Lock()
	m.end(idx, err)
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("upload-%d", n+1)
	return &PresignedUpload{
		SignedURL:        "mock://objects/" + name,
		FileName:         name,
		FileNameWithType: name + ".jpg",
	}, nil
}

func (m *MockBackend) PutObject(ctx context.Context, signedURL, contentType string, data []byte) error {
	m.mu.Lock()
	n := m.putCount
	m.putCount++
	step := stepAt(m.PutSteps, n)
	idx := m.begin(Call{
		Kind:        CallPut,
		SignedURL:   signedURL,
		ContentType: contentType,
		Data:        append([]byte(nil), data...),
	})
	m.mu.Unlock()

	err := waitStep(ctx, step)
	if err == nil {
		err = step.Err
	}
	if err == nil && step.StatusCode != 0 && (step.StatusCode < 200 || step.StatusCode > 299) {
		err = NewStatusError("putObject", step.StatusCode, "")
	}

	m.mu.Lock()
	m.end(idx, err)
	m.mu.Unlock()

	return err
}

// begin records a call and updates the concurrency gauge; m.mu must be held
func (m *MockBackend) begin(call Call) int {
	call.Started = time.Now()
	m.calls = append(m.calls, call)
	m.active++
	if m.active > m.maxActive {
		m.maxActive = m.active
	}
	return len(m.calls) - 1
}

// end completes a recorded call; m.mu must be held
func (m *MockBackend) end(idx int, err error) {
	m.calls[idx].Finished = time.Now()
	m.calls[idx].Err = err
	m.active--
}

// Calls returns a snapshot of every recorded call in start order
func (m *MockBackend) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// SuccessfulPuts returns the payloads of all puts that succeeded, in order
func (m *MockBackend) SuccessfulPuts() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var puts [][]byte
	for _, c := range m.calls {
		if c.Kind == CallPut && c.Err == nil && !c.Finished.IsZero() {
			puts = append(puts, c.Data)
		}
	}
	return puts
}

// MaxConcurrentCalls is the highest number of backend calls that were active at once
func (m *MockBackend) MaxConcurrentCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxActive
}

func stepAt(steps []Step, n int) Step {
	if n < len(steps) {
		return steps[n]
	}
	return Step{}
}

func waitStep(ctx context.Context, step Step) error {
	if step.Gate != nil {
		select {
		case <-step.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if step.Delay > 0 {
		timer := time.NewTimer(step.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
