package capture

import (
	"container/list"
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jlyon1/party-camera-ios/ccc/logging"
)

// Session owns a camera device and exposes its two output streams
type Session interface {
	// Start begins streaming; calling it again while running is a no-op
	Start(ctx context.Context) error
	// PreviewFrames is a latest-wins stream: slow readers miss intermediate frames
	PreviewFrames() <-chan Frame
	// CapturedPhotos delivers one RawCapture per TakePhoto, in request order, without loss
	CapturedPhotos() <-chan RawCapture
	// TakePhoto requests an exposure; the result arrives on CapturedPhotos
	TakePhoto(ctx context.Context) error
	// SwitchDevice toggles front/back. It fails with ErrCaptureInFlight while
	// any requested exposure has not completed.
	SwitchDevice() error
	Position() DevicePosition
	// Close rejects further TakePhoto calls, finishes the exposures already
	// requested and waits until their photos are read from CapturedPhotos,
	// then closes both streams.
	Close() error
}

// Device is the hardware seam below a Session. Implementations need not be
// safe for concurrent use; the session serializes all calls.
type Device interface {
	Open(position DevicePosition) error
	// ReadFrame returns the most recent preview frame
	ReadFrame() (image.Image, error)
	// Capture performs one full-resolution exposure
	Capture() (*RawCapture, error)
	Close() error
}

// DefaultCloseTimeout bounds how long Close waits for requested photos to be delivered
const DefaultCloseTimeout = 10 * time.Second

// SessionOptions configures a device-backed session
type SessionOptions struct {
	FPS          int
	Position     DevicePosition
	CloseTimeout time.Duration // photos still undelivered after this are discarded and logged
}

type deviceSession struct {
	device  Device
	options SessionOptions
	logger  logging.Logger

	devMu    sync.Mutex     // serializes every call into device
	position DevicePosition // written with both mu and devMu held

	mu       sync.Mutex
	started  bool
	closed   bool
	pending  int // exposures requested but not yet completed
	cancel   context.CancelFunc
	wg       sync.WaitGroup // preview loop
	exposeCh chan struct{}

	stopping   chan struct{} // closed by Close; no new exposures are accepted
	exposed    chan struct{} // closed when the exposure loop has exited
	outboxDone chan struct{} // closed when the photo stream has been closed

	previews chan Frame
	outbox   *photoOutbox
}

// NewSession creates a session over device. Streams are available
// immediately but stay silent until Start.
func NewSession(device Device, options SessionOptions, logger logging.Logger) Session {
	if logger == nil {
		logger = logging.NopLogger
	}
	if options.FPS <= 0 {
		options.FPS = 24
	}
	if options.CloseTimeout <= 0 {
		options.CloseTimeout = DefaultCloseTimeout
	}

	return &deviceSession{
		device:   device,
		options:  options,
		logger:   logger,
		position: options.Position,
		exposeCh:   make(chan struct{}, 1),
		stopping:   make(chan struct{}),
		exposed:    make(chan struct{}),
		outboxDone: make(chan struct{}),
		previews:   make(chan Frame, 1),
		outbox:     newPhotoOutbox(),
	}
}

func (s *deviceSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.started {
		return nil
	}

	s.devMu.Lock()
	err := s.device.Open(s.position)
	s.devMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to open %s camera: %w", s.position, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.started = true

	s.wg.Add(1)
	go s.previewLoop(runCtx)
	go s.exposureLoop(runCtx)
	go func() {
		defer close(s.outboxDone)
		if discarded := s.outbox.run(runCtx, s.exposed); discarded > 0 {
			s.logger.Warn("Discarded undelivered photos", "count", discarded)
		}
	}()

	s.logger.Info("Capture session started", "device", s.position.String(), "fps", s.options.FPS)
	return nil
}

func (s *deviceSession) PreviewFrames() <-chan Frame {
	return s.previews
}

func (s *deviceSession) CapturedPhotos() <-chan RawCapture {
	return s.outbox.out
}

func (s *deviceSession) TakePhoto(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if !s.started {
		return ErrSessionNotStarted
	}

	s.pending++
	select {
	case s.exposeCh <- struct{}{}:
	default:
	}
	return nil
}

func (s *deviceSession) SwitchDevice() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.pending > 0 {
		return ErrCaptureInFlight
	}

	s.devMu.Lock()
	defer s.devMu.Unlock()

	next := s.position.Toggle()
	if s.started {
		if err := s.device.Close(); err != nil {
			s.logger.Warn("Failed to close camera before switch", "device", s.position.String(), "error", err)
		}
		if err := s.device.Open(next); err != nil {
			// try to get the previous camera back so the session stays usable
			if reopenErr := s.device.Open(s.position); reopenErr != nil {
				s.logger.Error("Failed to reopen previous camera", "device", s.position.String(), "error", reopenErr)
			}
			return fmt.Errorf("failed to open %s camera: %w", next, err)
		}
	}

	s.logger.Info("Switched camera", "from", s.position.String(), "to", next.String())
	s.position = next
	return nil
}

// Position reads under mu; writers hold both locks, so it never waits on an exposure
func (s *deviceSession) Position() DevicePosition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *deviceSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	cancel := s.cancel
	s.mu.Unlock()

	if !started {
		close(s.previews)
		close(s.outbox.out)
		return nil
	}

	// requested photos are still exposed and delivered; the timeout only
	// guards against a consumer that stopped reading
	close(s.stopping)
	timeout := time.NewTimer(s.options.CloseTimeout)
	select {
	case <-s.outboxDone:
	case <-timeout.C:
		s.logger.Warn("Timed out delivering requested photos", "timeout", s.options.CloseTimeout)
	}
	timeout.Stop()

	cancel()
	<-s.exposed
	<-s.outboxDone
	s.wg.Wait()

	s.devMu.Lock()
	defer s.devMu.Unlock()
	return s.device.Close()
}

// previewLoop reads one frame per tick and publishes it latest-wins
func (s *deviceSession) previewLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.previews)

	ticker := time.NewTicker(time.Second / time.Duration(s.options.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.devMu.Lock()
		img, err := s.device.ReadFrame()
		position := s.position
		s.devMu.Unlock()

		if err != nil {
			s.logger.Debug("Failed to read preview frame", "error", err)
			continue
		}

		offerFrame(s.previews, Frame{Image: img, Timestamp: time.Now(), Device: position})
	}
}

// exposureLoop performs requested exposures one at a time, in request order.
// After Close it keeps going until every accepted request has been exposed.
func (s *deviceSession) exposureLoop(ctx context.Context) {
	defer close(s.exposed)

	for {
		pending := s.pendingExposures()

		if pending == 0 {
			select {
			case <-ctx.Done():
				return
			case <-s.stopping:
				// TakePhoto is rejected once closed, so zero stays zero
				if s.pendingExposures() == 0 {
					return
				}
				continue
			case <-s.exposeCh:
				continue
			}
		}

		if ctx.Err() != nil {
			s.logger.Warn("Capture session cancelled with exposures pending", "pending", pending)
			return
		}

		s.devMu.Lock()
		raw, err := s.device.Capture()
		position := s.position
		s.devMu.Unlock()

		if err != nil || raw == nil {
			// still report the exposure so it is accounted for downstream
			s.logger.Warn("Camera capture failed", "device", position.String(), "error", err)
			raw = &RawCapture{}
		}
		if raw.ID == "" {
			raw.ID = uuid.NewString()
		}
		if raw.Timestamp.IsZero() {
			raw.Timestamp = time.Now()
		}
		raw.Device = position

		s.outbox.push(*raw)

		s.mu.Lock()
		s.pending--
		s.mu.Unlock()
	}
}

func (s *deviceSession) pendingExposures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// offerFrame replaces any undelivered frame with f. The preview loop is the
// only sender, so the second send cannot block.
func offerFrame(ch chan Frame, f Frame) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}

// photoOutbox is an unbounded ordered buffer in front of the photo channel,
// so exposures never wait on a slow consumer and nothing is dropped.
type photoOutbox struct {
	mu     sync.Mutex
	items  *list.List
	signal chan struct{}
	out    chan RawCapture
}

func newPhotoOutbox() *photoOutbox {
	return &photoOutbox{
		items:  list.New(),
		signal: make(chan struct{}, 1),
		out:    make(chan RawCapture),
	}
}

func (o *photoOutbox) push(raw RawCapture) {
	o.mu.Lock()
	o.items.PushBack(raw)
	o.mu.Unlock()

	select {
	case o.signal <- struct{}{}:
	default:
	}
}

// run forwards buffered photos in order until producerDone is closed and the
// buffer is empty, or until ctx ends. It returns how many photos were left undelivered.
func (o *photoOutbox) run(ctx context.Context, producerDone <-chan struct{}) int {
	defer close(o.out)

	for {
		o.mu.Lock()
		front := o.items.Front()
		o.mu.Unlock()

		if front == nil {
			select {
			case <-ctx.Done():
				return o.len()
			case <-producerDone:
				if o.len() == 0 {
					return 0
				}
				continue
			case <-o.signal:
				continue
			}
		}

		select {
		case <-ctx.Done():
			return o.len()
		case o.out <- front.Value.(RawCapture):
			o.mu.Lock()
			o.items.Remove(front)
			o.mu.Unlock()
		}
	}
}

func (o *photoOutbox) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.items.Len()
}
