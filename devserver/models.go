package devserver

import (
	"strconv"
	"time"
)

// Event is a stored event
type Event struct {
	ID          int
	Name        string
	Description string
	Start       time.Time
	End         *time.Time
	CreatedAt   time.Time
}

// Image is one uploaded photo belonging to an event
type Image struct {
	ID            string
	EventID       int
	FileName      string // object name including extension
	ContentType   string
	SizeBytes     int64
	ThumbnailName string // empty when no thumbnail could be generated
	CreatedAt     time.Time
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
