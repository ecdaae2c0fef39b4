package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jlyon1/party-camera-ios/backend"
	"github.com/jlyon1/party-camera-ios/capture"
	"github.com/jlyon1/party-camera-ios/config"
	"github.com/jlyon1/party-camera-ios/state"
)

func newVirtualSession(t *testing.T) (capture.Session, *capture.VirtualDevice) {
	return newSlowVirtualSession(t, time.Millisecond)
}

func newSlowVirtualSession(t *testing.T, exposure time.Duration) (capture.Session, *capture.VirtualDevice) {
	t.Helper()
	opts := capture.DefaultVirtualOptions
	opts.Width, opts.Height = 64, 48
	opts.PreviewWidth, opts.PreviewHeight = 16, 12
	opts.ExposureDelay = exposure
	return capture.NewVirtualSession(opts, capture.SessionOptions{FPS: 100}, nil)
}

func newTestModel(t *testing.T, b backend.Backend, eventName string) (*DataModel, *capture.VirtualDevice) {
	t.Helper()
	session, device := newVirtualSession(t)
	return newTestModelWith(t, b, eventName, session), device
}

func newTestModelWith(t *testing.T, b backend.Backend, eventName string, session capture.Session) *DataModel {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.EventID = 1
	cfg.EventName = eventName
	cfg.ThumbnailMaxEdge = 8

	model := NewFromConfig(config.NewStaticSettingsProvider(*cfg), session, b, nil)
	t.Cleanup(func() { model.Stop() })
	return model
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDataModel_CapturedPhotosAreUploaded(t *testing.T) {
	mock := backend.NewMockBackend()
	model, _ := newTestModel(t, mock, "Party")
	ctx := context.Background()

	if err := model.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := model.TakePhoto(ctx); err != nil {
			t.Fatalf("TakePhoto failed: %v", err)
		}
	}

	waitFor(t, "five uploads", func() bool { return model.Stats().Uploaded == 5 })

	stats := model.Stats()
	if stats.Enqueued != 5 || stats.Dropped != 0 || stats.Abandoned != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if got := mock.MaxConcurrentCalls(); got != 1 {
		t.Errorf("max concurrent backend calls = %d, want 1", got)
	}
	for _, c := range mock.Calls() {
		if c.Kind == backend.CallPresign && (c.EventID != 1 || c.ContentType != "image/jpeg") {
			t.Errorf("presign for event %d type %q", c.EventID, c.ContentType)
		}
	}

	thumb, ok := model.Thumbnail().Get()
	if !ok || thumb == nil {
		t.Fatal("no thumbnail published")
	}
	// virtual captures are rotated, so the thumbnail comes out portrait
	if thumb.Width >= thumb.Height {
		t.Errorf("thumbnail %dx%d is not upright", thumb.Width, thumb.Height)
	}

	waitFor(t, "viewfinder frame", func() bool {
		img, ok := model.Viewfinder().Get()
		return ok && img != nil
	})
	if model.Stats().PreviewFrames == 0 {
		t.Error("PreviewFrames should count published frames")
	}
}

func TestDataModel_EnqueueBypassSharesTheQueue(t *testing.T) {
	mock := backend.NewMockBackend()
	gate := make(chan struct{})
	mock.PresignSteps = []backend.Step{{Gate: gate}}
	model, _ := newTestModel(t, mock, "Party")
	ctx := context.Background()

	if err := model.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	model.Enqueue([]byte("raw-1"))
	if err := model.TakePhoto(ctx); err != nil {
		t.Fatalf("TakePhoto failed: %v", err)
	}
	waitFor(t, "captured photo queued", func() bool { return model.Stats().Enqueued == 2 })
	model.Enqueue([]byte("raw-2"))

	stats := model.Stats()
	if !stats.InFlight || stats.Pending != 2 {
		t.Errorf("stats while stalled = %+v, want one in flight and two pending", stats)
	}

	close(gate)
	if !model.Flush(3 * time.Second) {
		t.Fatal("queue did not drain")
	}
	waitFor(t, "three uploads", func() bool { return model.Stats().Uploaded == 3 })

	puts := mock.SuccessfulPuts()
	if string(puts[0]) != "raw-1" || string(puts[2]) != "raw-2" {
		t.Errorf("uploads out of order: first %q, last %q", puts[0], puts[2])
	}
	if got := mock.MaxConcurrentCalls(); got != 1 {
		t.Errorf("max concurrent backend calls = %d, want 1", got)
	}
}

func TestDataModel_StopQueuesRequestedPhotos(t *testing.T) {
	mock := backend.NewMockBackend()
	session, _ := newSlowVirtualSession(t, 20*time.Millisecond)
	model := newTestModelWith(t, mock, "Party", session)
	ctx := context.Background()

	if err := model.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := model.TakePhoto(ctx); err != nil {
			t.Fatalf("TakePhoto %d failed: %v", i, err)
		}
	}

	if err := model.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	stats := model.Stats()
	if stats.Enqueued+stats.Dropped != 5 {
		t.Errorf("stats after Stop = %+v, want all 5 requested photos accounted for", stats)
	}
	if stats.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0", stats.Dropped)
	}
}

func TestDataModel_EnqueueCopiesBytes(t *testing.T) {
	mock := backend.NewMockBackend()
	gate := make(chan struct{})
	mock.PresignSteps = []backend.Step{{Gate: gate}}
	model, _ := newTestModel(t, mock, "Party")

	if err := model.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	data := []byte("original")
	model.Enqueue(data)
	copy(data, "mutated!")
	close(gate)

	waitFor(t, "upload", func() bool { return model.Stats().Uploaded == 1 })
	if puts := mock.SuccessfulPuts(); string(puts[0]) != "original" {
		t.Errorf("uploaded %q, want the bytes as they were when enqueued", puts[0])
	}
}

func TestDataModel_UnusableCaptureIsDropped(t *testing.T) {
	mock := backend.NewMockBackend()
	model, device := newTestModel(t, mock, "Party")
	ctx := context.Background()

	if err := model.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	device.FailNextCapture(errors.New("sensor glitch"))
	model.TakePhoto(ctx)
	model.TakePhoto(ctx)

	waitFor(t, "one drop and one upload", func() bool {
		s := model.Stats()
		return s.Dropped == 1 && s.Uploaded == 1
	})
	if got := model.Stats().Enqueued; got != 1 {
		t.Errorf("Enqueued = %d, want 1", got)
	}
}

func TestDataModel_FailedUploadsAreAbandoned(t *testing.T) {
	mock := backend.NewMockBackend()
	mock.PresignSteps = []backend.Step{{Err: backend.NewStatusError("fetchPresignedUpload", 500, "")}}
	model, _ := newTestModel(t, mock, "Party")

	if err := model.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	model.Enqueue([]byte("lost"))
	model.Enqueue([]byte("kept"))

	waitFor(t, "both outcomes", func() bool {
		s := model.Stats()
		return s.Abandoned == 1 && s.Uploaded == 1
	})
	if puts := mock.SuccessfulPuts(); len(puts) != 1 || string(puts[0]) != "kept" {
		t.Errorf("puts = %q, want [kept]", puts)
	}
}

func TestDataModel_StartTwiceFails(t *testing.T) {
	model, _ := newTestModel(t, backend.NewMockBackend(), "Party")
	if err := model.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := model.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start = %v, want ErrAlreadyRunning", err)
	}
}

func TestDataModel_ResolvesEventName(t *testing.T) {
	mock := backend.NewMockBackend()
	mock.Events = []backend.Event{{ID: 1, Name: "Garden Party"}}
	model, _ := newTestModel(t, mock, "")

	if err := model.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitFor(t, "event name", func() bool { return model.EventName() == "Garden Party" })
}

func TestDataModel_FeedIsMemoized(t *testing.T) {
	mock := backend.NewMockBackend()
	mock.Feeds[1] = &backend.EventFeed{EventID: 1, Images: []backend.FeedImage{{ID: "a"}}}
	model, _ := newTestModel(t, mock, "Party")
	ctx := context.Background()

	feed, err := model.Feed(ctx, false)
	if err != nil || len(feed.Images) != 1 {
		t.Fatalf("Feed = %+v, %v", feed, err)
	}

	mock.Feeds[1] = &backend.EventFeed{EventID: 1, Images: []backend.FeedImage{{ID: "a"}, {ID: "b"}}}
	if feed, _ := model.Feed(ctx, false); len(feed.Images) != 1 {
		t.Error("cached feed should be served without refresh")
	}
	if feed, _ := model.Feed(ctx, true); len(feed.Images) != 2 {
		t.Error("refresh should replace the cached feed")
	}
}

func TestDataModel_UploadMakesFeedStale(t *testing.T) {
	mock := backend.NewMockBackend()
	mock.Feeds[1] = &backend.EventFeed{EventID: 1}
	model, _ := newTestModel(t, mock, "Party")
	ctx := context.Background()

	if feed, err := model.Feed(ctx, false); err != nil || len(feed.Images) != 0 {
		t.Fatalf("Feed = %+v, %v", feed, err)
	}

	if err := model.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	mock.Feeds[1] = &backend.EventFeed{EventID: 1, Images: []backend.FeedImage{{ID: "new"}}}
	model.Enqueue([]byte("photo"))
	waitFor(t, "upload", func() bool { return model.Stats().Uploaded == 1 })

	feed, err := model.Feed(ctx, false)
	if err != nil || len(feed.Images) != 1 {
		t.Errorf("feed after upload = %+v, %v; want it refetched", feed, err)
	}
}

func TestDataModel_EnterCameraViewHidesTabBar(t *testing.T) {
	model, _ := newTestModel(t, backend.NewMockBackend(), "Party")

	// without a tab bar in the context this is a no-op
	model.EnterCameraView(context.Background())()

	visibility := state.NewTabBarVisibility()
	ctx := state.WithTabBarVisibility(context.Background(), visibility)

	restore := model.EnterCameraView(ctx)
	if !visibility.IsHidden() {
		t.Error("tab bar should be hidden while the camera is on screen")
	}
	restore()
	if visibility.IsHidden() {
		t.Error("tab bar should be visible again after leaving the camera")
	}
}

