package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jlyon1/party-camera-ios/backend"
	"github.com/jlyon1/party-camera-ios/config"
	"github.com/jlyon1/party-camera-ios/devserver"
)

func TestEndToEnd_CaptureToFeed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	serverCfg := config.DefaultServerConfig()
	serverCfg.DatabasePath = ":memory:"
	serverCfg.StoragePath = t.TempDir()
	serverCfg.SeedEventName = "E2E Party"

	server, err := devserver.NewServer(ctx, serverCfg, gin.New(), nil)
	if err != nil {
		t.Fatalf("Failed to start dev server: %v", err)
	}
	defer server.Close()
	ts := httptest.NewServer(server.Router)
	defer ts.Close()
	server.Service.SetPublicURL(ts.URL)

	httpBackend := backend.NewHTTPBackend(ts.URL, 5*time.Second, nil)

	cfg := config.DefaultConfig()
	cfg.BackendURL = ts.URL
	cfg.EventID = 1
	cfg.EventName = ""

	session, _ := newVirtualSession(t)
	model := NewFromConfig(config.NewStaticSettingsProvider(*cfg), session, httpBackend, nil)

	if err := model.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := model.TakePhoto(ctx); err != nil {
			t.Fatalf("TakePhoto failed: %v", err)
		}
	}
	model.Enqueue(jpegWithoutCamera(t))

	waitFor(t, "four uploads", func() bool { return model.Stats().Uploaded == 4 })
	if err := model.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if model.EventName() != "E2E Party" {
		t.Errorf("EventName = %q, want the server's event name", model.EventName())
	}

	feed, err := model.Feed(ctx, true)
	if err != nil {
		t.Fatalf("Feed failed: %v", err)
	}
	if len(feed.Images) != 4 {
		t.Fatalf("feed has %d images, want 4", len(feed.Images))
	}
	for _, img := range feed.Images {
		if !strings.HasSuffix(img.FileName, ".jpg") {
			t.Errorf("unexpected object name %q", img.FileName)
		}
		if len(img.Assets) != 2 {
			t.Errorf("image %s has %d assets, want original and thumbnail", img.ID, len(img.Assets))
		}
	}
}

// jpegWithoutCamera stands in for bytes the UI already encoded itself
func jpegWithoutCamera(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 32, 32)), nil); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}
