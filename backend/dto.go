package backend

import "time"

// Event is an event a user can join and capture photos into
type Event struct {
	ID           int           `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Start        string        `json:"start"`
	End          *string       `json:"end"`
	OwnerID      *string       `json:"ownerId"`
	Image        *string       `json:"image"`
	EventImage   *EventImage   `json:"eventImage"`
	EventMembers []EventMember `json:"eventMembers"`
}

// PlaceholderImageURL is shown for events without a thumbnail asset
const PlaceholderImageURL = "https://placekitten.com/200/200"

// ThumbnailURL returns the url of the event's thumbnail asset, or a placeholder
func (e *Event) ThumbnailURL() string {
	if e.EventImage != nil {
		if asset, ok := e.EventImage.Asset(AssetSizeThumbnail); ok {
			return asset.URL
		}
	}
	return PlaceholderImageURL
}

// StartTime parses the RFC3339 start timestamp
func (e *Event) StartTime() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Start)
}

// HasEnded reports whether the event has an end time at or before now
func (e *Event) HasEnded(now time.Time) bool {
	if e.End == nil {
		return false
	}
	end, err := time.Parse(time.RFC3339Nano, *e.End)
	if err != nil {
		return false
	}
	return !end.After(now)
}

type EventMember struct {
	User User `json:"user"`
}

type User struct {
	Name string `json:"name"`
}

type EventImage struct {
	ID     string       `json:"id"`
	Assets []ImageAsset `json:"assets"`
}

// Asset returns the first asset of the given size
func (i *EventImage) Asset(size string) (ImageAsset, bool) {
	for _, a := range i.Assets {
		if a.Size == size {
			return a, true
		}
	}
	return ImageAsset{}, false
}

const (
	AssetSizeThumbnail = "thumbnail"
	AssetSizeOriginal  = "original"
)

type ImageAsset struct {
	Size string `json:"size"`
	URL  string `json:"url"`
}

// ImageWithAssets is the response of the image assets endpoint
type ImageWithAssets struct {
	ID     string       `json:"id"`
	Assets []ImageAsset `json:"assets"`
}

// EventFeed lists the images uploaded to an event, newest first
type EventFeed struct {
	EventID int         `json:"eventId"`
	Images  []FeedImage `json:"images"`
}

type FeedImage struct {
	ID        string       `json:"id"`
	FileName  string       `json:"fileName"`
	CreatedAt time.Time    `json:"createdAt"`
	Assets    []ImageAsset `json:"assets"`
}

// PresignedUpload is a single-use upload target issued by the backend
type PresignedUpload struct {
	SignedURL        string `json:"signedUrl"`
	FileName         string `json:"fileName"`
	FileNameWithType string `json:"fileNameWithType"`
}
