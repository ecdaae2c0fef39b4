package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jlyon1/party-camera-ios/backend"
	"github.com/jlyon1/party-camera-ios/capture"
	"github.com/jlyon1/party-camera-ios/ccc/logging"
	"github.com/jlyon1/party-camera-ios/feed"
	"github.com/jlyon1/party-camera-ios/photo"
	"github.com/jlyon1/party-camera-ios/state"
	"github.com/jlyon1/party-camera-ios/uploading"
)

var ErrAlreadyRunning = errors.New("data model is already running")

// Stats counts what happened to photos since the model was created
type Stats struct {
	Enqueued  uint64
	Dropped   uint64 // rejected by the unpacker
	Uploaded  uint64
	Abandoned uint64
	Pending   int
	InFlight  bool

	PreviewFrames uint64 // frames published to the viewfinder
}

// DataModel connects the camera session to the uploader and republishes the
// latest preview frame and thumbnail for display. It is the only thing the
// UI talks to.
type DataModel struct {
	session  capture.Session
	backend  backend.Backend
	uploader uploading.Uploader
	unpacker photo.Unpacker
	feeds    *feed.Cache
	logger   logging.Logger

	eventID   int
	eventName atomic.Value // string

	viewfinder *state.Published[image.Image]
	thumbnail  *state.Published[*photo.Thumbnail]

	enqueued  atomic.Uint64
	dropped   atomic.Uint64
	uploaded  atomic.Uint64
	abandoned atomic.Uint64

	mu        sync.Mutex
	isRunning bool
	wg        sync.WaitGroup
}

// NewDataModel creates a model over already constructed components. Wire
// ObserveOutcome into the uploader's options to have uploads counted in Stats.
func NewDataModel(
	session capture.Session,
	b backend.Backend,
	uploader uploading.Uploader,
	unpacker photo.Unpacker,
	eventID int,
	eventName string,
	logger logging.Logger,
) *DataModel {
	if logger == nil {
		logger = logging.NopLogger
	}

	m := &DataModel{
		session:    session,
		backend:    b,
		uploader:   uploader,
		unpacker:   unpacker,
		feeds:      feed.NewCache(b, logger),
		logger:     logger,
		eventID:    eventID,
		viewfinder: state.NewPublished[image.Image](),
		thumbnail:  state.NewPublished[*photo.Thumbnail](),
	}
	m.eventName.Store(eventName)
	return m
}

// Start starts the camera and the uploader, then the two consumption loops
// over the session's streams.
func (m *DataModel) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return ErrAlreadyRunning
	}

	if err := m.session.Start(ctx); err != nil {
		return err
	}
	m.uploader.Start(ctx)
	m.isRunning = true

	m.wg.Add(2)
	go m.previewLoop()
	go m.photoLoop()

	if m.EventName() == "" && m.backend != nil {
		m.wg.Add(1)
		go m.resolveEventName(ctx)
	}

	m.logger.Info("Data model started", "eventId", m.eventID, "camera", m.session.Position().String())
	return nil
}

// Stop closes the camera, which first exposes every photo already requested
// with TakePhoto, waits for those photos to be queued and then stops the
// uploader after its current attempt. Queued photos are not uploaded; call
// Flush first to deliver them.
func (m *DataModel) Stop() error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	m.mu.Unlock()

	err := m.session.Close()
	m.wg.Wait()
	m.uploader.Stop()

	s := m.Stats()
	m.logger.Info("Data model stopped",
		"enqueued", s.Enqueued, "uploaded", s.Uploaded, "abandoned", s.Abandoned,
		"dropped", s.Dropped, "pending", s.Pending, "previewFrames", s.PreviewFrames)
	return err
}

// TakePhoto asks the camera for an exposure; the photo reaches the queue
// through the captured-photo stream.
func (m *DataModel) TakePhoto(ctx context.Context) error {
	return m.session.TakePhoto(ctx)
}

// SwitchCamera toggles front and back. It is rejected while a photo is
// still being exposed.
func (m *DataModel) SwitchCamera() error {
	return m.session.SwitchDevice()
}

// Enqueue queues a copy of already encoded image bytes for the model's
// event, skipping the camera stream. It never blocks.
func (m *DataModel) Enqueue(data []byte) {
	m.uploader.Enqueue(&uploading.Entry{EventID: m.eventID, Data: append([]byte(nil), data...)})
	m.enqueued.Add(1)
}

// Flush waits until every queued photo has been attempted
func (m *DataModel) Flush(timeout time.Duration) bool {
	return m.uploader.Drain(timeout)
}

// ObserveOutcome records an upload result in Stats. A successful upload
// makes the cached feed of its event stale.
func (m *DataModel) ObserveOutcome(o uploading.Outcome) {
	switch o.Status {
	case uploading.StatusUploaded:
		if o.Entry != nil {
			m.feeds.Invalidate(o.Entry.EventID)
		}
		m.uploaded.Add(1)
	case uploading.StatusAbandoned:
		m.abandoned.Add(1)
	}
}

func (m *DataModel) Stats() Stats {
	return Stats{
		Enqueued:  m.enqueued.Load(),
		Dropped:   m.dropped.Load(),
		Uploaded:  m.uploaded.Load(),
		Abandoned: m.abandoned.Load(),
		Pending:   m.uploader.Pending(),
		InFlight:  m.uploader.InFlight(),

		PreviewFrames: m.viewfinder.Version(),
	}
}

// Viewfinder holds the most recent preview frame
func (m *DataModel) Viewfinder() *state.Published[image.Image] {
	return m.viewfinder
}

// Thumbnail holds the thumbnail of the most recently queued photo
func (m *DataModel) Thumbnail() *state.Published[*photo.Thumbnail] {
	return m.thumbnail
}

func (m *DataModel) EventID() int {
	return m.eventID
}

func (m *DataModel) EventName() string {
	name, _ := m.eventName.Load().(string)
	return name
}

// Feed returns the event's feed, fetching it only when not cached or when refresh is set
func (m *DataModel) Feed(ctx context.Context, refresh bool) (*backend.EventFeed, error) {
	if err := m.feeds.FetchEventFeed(ctx, m.eventID, refresh); err != nil {
		return nil, err
	}
	f, _ := m.feeds.Get(m.eventID)
	return f, nil
}

// EnterCameraView hides the tab bar found in ctx for as long as the camera
// is on screen. The returned func restores it.
func (m *DataModel) EnterCameraView(ctx context.Context) (restore func()) {
	v, ok := state.TabBarVisibilityFrom(ctx)
	if !ok {
		return func() {}
	}
	return v.HideWhile()
}

func (m *DataModel) previewLoop() {
	defer m.wg.Done()
	for frame := range m.session.PreviewFrames() {
		if frame.Image != nil {
			m.viewfinder.Set(frame.Image)
		}
	}
}

func (m *DataModel) photoLoop() {
	defer m.wg.Done()
	for raw := range m.session.CapturedPhotos() {
		p, ok := m.unpacker.Unpack(raw)
		if !ok {
			m.dropped.Add(1)
			continue
		}

		m.thumbnail.Set(p.Thumbnail)
		m.uploader.Enqueue(&uploading.Entry{
			EventID:    m.eventID,
			Data:       p.Data,
			EnqueuedAt: time.Now(),
		})
		m.enqueued.Add(1)
		m.logger.Debug("Photo captured", "captureId", p.ID, "width", p.Width, "height", p.Height, "bytes", len(p.Data))
	}
}

func (m *DataModel) resolveEventName(ctx context.Context) {
	defer m.wg.Done()

	event, err := m.backend.FetchEvent(ctx, m.eventID)
	if err != nil {
		m.logger.Warn("Failed to fetch event", "eventId", m.eventID, "error", err)
		return
	}
	m.eventName.Store(event.Name)
}
