package devserver

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jlyon1/party-camera-ios/backend"
	"github.com/jlyon1/party-camera-ios/ccc/logging"
)

// contentTypeExtensions lists the uploads the server accepts
var contentTypeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/heic": ".heic",
}

// Service implements the backend API on top of the repositories and the object store
type Service struct {
	logger     logging.Logger
	events     EventRepository
	images     ImageRepository
	store      *ObjectStore
	signer     *Signer
	thumbnails ThumbnailGenerator
	publicURL  string
	now        func() time.Time
}

func NewService(
	logger logging.Logger,
	events EventRepository,
	images ImageRepository,
	store *ObjectStore,
	signer *Signer,
	thumbnails ThumbnailGenerator,
	publicURL string,
) *Service {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &Service{
		logger:     logger,
		events:     events,
		images:     images,
		store:      store,
		signer:     signer,
		thumbnails: thumbnails,
		publicURL:  strings.TrimRight(publicURL, "/"),
		now:        time.Now,
	}
}

// SetPublicURL changes the base of generated urls, e.g. once a test server knows its address
func (s *Service) SetPublicURL(publicURL string) {
	s.publicURL = strings.TrimRight(publicURL, "/")
}

// CreateEvent stores a new event starting now
func (s *Service) CreateEvent(ctx context.Context, name, description string) (*Event, error) {
	now := s.now().UTC()
	event := &Event{Name: name, Description: description, Start: now, CreatedAt: now}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, err
	}
	s.logger.Info("Created event", "eventId", event.ID, "name", name)
	return event, nil
}

// EnsureEvent creates an event named name unless any event exists
func (s *Service) EnsureEvent(ctx context.Context, name string) error {
	events, err := s.events.GetAll(ctx)
	if err != nil {
		return err
	}
	if len(events) > 0 || name == "" {
		return nil
	}
	_, err = s.CreateEvent(ctx, name, "")
	return err
}

// Presign issues a single-use upload url for a new object in eventID
func (s *Service) Presign(ctx context.Context, contentType string, eventID int) (*backend.PresignedUpload, error) {
	ext, ok := contentTypeExtensions[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}
	if _, err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}

	name := uuid.NewString()
	grant := s.signer.Grant(name+ext, eventID, contentType)

	s.logger.Debug("Issued presigned upload", "eventId", eventID, "fileName", grant.FileName, "expires", grant.Expires)
	return &backend.PresignedUpload{
		SignedURL:        s.signer.SignedURL(s.publicURL, grant),
		FileName:         name,
		FileNameWithType: grant.FileName,
	}, nil
}

// AcceptUpload verifies a PUT against its signed query, stores the bytes and
// registers the image in the event's feed.
func (s *Service) AcceptUpload(ctx context.Context, fileName string, query url.Values, contentType string, data []byte) (*Image, error) {
	grant, err := s.signer.Verify(fileName, query)
	if err != nil {
		return nil, err
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != grant.ContentType {
		return nil, ErrContentTypeMismatch
	}
	if detected := DetectImageType(data); detected != grant.ContentType {
		return nil, fmt.Errorf("%w: body is not %s", ErrUnsupportedType, grant.ContentType)
	}

	if _, err := s.requireEvent(ctx, grant.EventID); err != nil {
		return nil, err
	}

	existing, err := s.images.GetByFileName(ctx, fileName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrObjectExists
	}

	if err := s.store.Put(fileName, data); err != nil {
		return nil, err
	}

	image := &Image{
		ID:          uuid.NewString(),
		EventID:     grant.EventID,
		FileName:    fileName,
		ContentType: mediaType,
		SizeBytes:   int64(len(data)),
		CreatedAt:   s.now().UTC(),
	}
	image.ThumbnailName = s.storeThumbnail(fileName, data)

	if err := s.images.Create(ctx, image); err != nil {
		s.store.Delete(fileName)
		if image.ThumbnailName != "" {
			s.store.Delete(image.ThumbnailName)
		}
		return nil, err
	}

	s.logger.Info("Stored upload", "eventId", image.EventID, "fileName", fileName, "bytes", image.SizeBytes)
	return image, nil
}

// storeThumbnail returns the thumbnail object name, or "" when none could be made
func (s *Service) storeThumbnail(fileName string, data []byte) string {
	if s.thumbnails == nil {
		return ""
	}

	thumb, err := s.thumbnails.GenerateThumbnail(data)
	if err != nil {
		s.logger.Warn("Failed to generate thumbnail", "fileName", fileName, "error", err)
		return ""
	}

	name := strings.TrimSuffix(fileName, extensionOf(fileName)) + "_thumb.jpg"
	if err := s.store.Put(name, thumb); err != nil {
		s.logger.Warn("Failed to store thumbnail", "fileName", name, "error", err)
		return ""
	}
	return name
}

func (s *Service) ListEvents(ctx context.Context) ([]backend.Event, error) {
	events, err := s.events.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]backend.Event, 0, len(events))
	for _, event := range events {
		dto, err := s.eventDTO(ctx, event)
		if err != nil {
			return nil, err
		}
		result = append(result, *dto)
	}
	return result, nil
}

func (s *Service) GetEvent(ctx context.Context, id int) (*backend.Event, error) {
	event, err := s.requireEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.eventDTO(ctx, event)
}

// Feed lists an event's images newest first
func (s *Service) Feed(ctx context.Context, eventID int) (*backend.EventFeed, error) {
	if _, err := s.requireEvent(ctx, eventID); err != nil {
		return nil, err
	}

	images, err := s.images.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	feed := &backend.EventFeed{EventID: eventID, Images: make([]backend.FeedImage, 0, len(images))}
	for _, image := range images {
		feed.Images = append(feed.Images, backend.FeedImage{
			ID:        image.ID,
			FileName:  image.FileName,
			CreatedAt: image.CreatedAt,
			Assets:    s.assets(image),
		})
	}
	return feed, nil
}

func (s *Service) ImageAssets(ctx context.Context, id string) (*backend.ImageWithAssets, error) {
	image, err := s.images.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if image == nil {
		return nil, NewImageNotFoundError(id)
	}
	return &backend.ImageWithAssets{ID: image.ID, Assets: s.assets(image)}, nil
}

// ObjectPath resolves a stored object for download
func (s *Service) ObjectPath(name string) (string, error) {
	return s.store.Path(name)
}

func (s *Service) requireEvent(ctx context.Context, id int) (*Event, error) {
	event, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, NewEventNotFoundError(id)
	}
	return event, nil
}

func (s *Service) assets(image *Image) []backend.ImageAsset {
	assets := []backend.ImageAsset{{Size: backend.AssetSizeOriginal, URL: s.objectURL(image.FileName)}}
	if image.ThumbnailName != "" {
		assets = append(assets, backend.ImageAsset{Size: backend.AssetSizeThumbnail, URL: s.objectURL(image.ThumbnailName)})
	}
	return assets
}

func (s *Service) objectURL(name string) string {
	return s.publicURL + "/objects/" + url.PathEscape(name)
}

// eventDTO maps a stored event to its wire form; the newest image is the cover
func (s *Service) eventDTO(ctx context.Context, event *Event) (*backend.Event, error) {
	dto := &backend.Event{
		ID:           event.ID,
		Name:         event.Name,
		Description:  event.Description,
		Start:        event.Start.UTC().Format(time.RFC3339Nano),
		EventMembers: []backend.EventMember{},
	}
	if event.End != nil {
		end := event.End.UTC().Format(time.RFC3339Nano)
		dto.End = &end
	}

	images, err := s.images.ListByEvent(ctx, event.ID)
	if err != nil {
		return nil, err
	}
	if len(images) > 0 {
		cover := images[0]
		dto.EventImage = &backend.EventImage{ID: cover.ID, Assets: s.assets(cover)}
		if asset, ok := dto.EventImage.Asset(backend.AssetSizeThumbnail); ok {
			dto.Image = &asset.URL
		}
	}
	return dto, nil
}

func extensionOf(fileName string) string {
	if i := strings.LastIndex(fileName, "."); i >= 0 {
		return fileName[i:]
	}
	return ""
}
