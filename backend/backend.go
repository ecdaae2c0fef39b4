package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jlyon1/party-camera-ios/ccc/logging"
)

// Backend is the set of remote calls the capture application depends on
type Backend interface {
	FetchEvents(ctx context.Context) ([]Event, error)
	FetchEvent(ctx context.Context, id int) (*Event, error)
	FetchEventFeed(ctx context.Context, id int) (*EventFeed, error)
	FetchImageAssets(ctx context.Context, id string) (*ImageWithAssets, error)
	// FetchPresignedUpload requests a fresh single-use upload target for one object
	FetchPresignedUpload(ctx context.Context, contentType string, eventID int) (*PresignedUpload, error)
	// PutObject transfers raw bytes to a signed url; any 2xx is success
	PutObject(ctx context.Context, signedURL, contentType string, data []byte) error
}

// maxErrorBody bounds how much of a failed response is kept for the error message
const maxErrorBody = 512

// HTTPBackend implements Backend against the partycam HTTP API
type HTTPBackend struct {
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
}

// NewHTTPBackend creates a new HTTP backend client.
// The timeout applies to API calls; PutObject is bounded by the caller's context only.
func NewHTTPBackend(baseURL string, timeout time.Duration, logger logging.Logger) *HTTPBackend {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &HTTPBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (b *HTTPBackend) FetchEvents(ctx context.Context) ([]Event, error) {
	var events []Event
	if err := b.getJSON(ctx, "fetchEvents", "/api/event/me", &events); err != nil {
		return nil, err
	}
	b.logger.Debug("Fetched events", "count", len(events))
	return events, nil
}

func (b *HTTPBackend) FetchEvent(ctx context.Context, id int) (*Event, error) {
	var event Event
	if err := b.getJSON(ctx, "fetchEvent", fmt.Sprintf("/api/event/%d", id), &event); err != nil {
		return nil, err
	}
	return &event, nil
}

func (b *HTTPBackend) FetchEventFeed(ctx context.Context, id int) (*EventFeed, error) {
	var feed EventFeed
	if err := b.getJSON(ctx, "fetchEventFeed", fmt.Sprintf("/api/event/%d/feed", id), &feed); err != nil {
		return nil, err
	}
	b.logger.Debug("Fetched event feed", "eventId", id, "images", len(feed.Images))
	return &feed, nil
}

func (b *HTTPBackend) FetchImageAssets(ctx context.Context, id string) (*ImageWithAssets, error) {
	var assets ImageWithAssets
	path := "/api/image/" + url.PathEscape(id) + "/assets"
	if err := b.getJSON(ctx, "fetchImageAssets", path, &assets); err != nil {
		return nil, err
	}
	return &assets, nil
}

func (b *HTTPBackend) FetchPresignedUpload(ctx context.Context, contentType string, eventID int) (*PresignedUpload, error) {
	const op = "fetchPresignedUpload"

	query := url.Values{}
	query.Set("contentType", contentType)
	query.Set("eventId", strconv.Itoa(eventID))

	b.logger.Debug("Fetching presigned url", "contentType", contentType, "eventId", eventID)

	var upload PresignedUpload
	if err := b.getJSON(ctx, op, "/api/presigned?"+query.Encode(), &upload); err != nil {
		return nil, err
	}

	if upload.SignedURL == "" {
		return nil, NewDecodeError(op, errors.New("missing signedUrl"))
	}
	if _, err := url.ParseRequestURI(upload.SignedURL); err != nil {
		return nil, NewDecodeError(op, fmt.Errorf("invalid signedUrl: %w", err))
	}

	return &upload, nil
}

func (b *HTTPBackend) PutObject(ctx context.Context, signedURL, contentType string, data []byte) error {
	const op = "putObject"

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, signedURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	// The signed url carries its own authorization, and the transfer may
	// legitimately outlast the API timeout, so only the context bounds it.
	client := &http.Client{Transport: b.httpClient.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: failed to make request: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return NewStatusError(op, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// drain so the connection can be reused
	io.Copy(io.Discard, resp.Body)
	return nil
}

// getJSON performs a GET against the API and decodes a 2xx JSON body into v
func (b *HTTPBackend) getJSON(ctx context.Context, op, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: failed to make request: %w", op, err)
	}
	defer resp.Body.Close()

	b.logger.Debug("Backend response", "op", op, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return NewStatusError(op, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return NewDecodeError(op, err)
	}

	return nil
}
