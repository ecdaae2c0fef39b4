package devserver

import "errors"

var (
	ErrInvalidSignature    = errors.New("invalid upload signature")
	ErrExpired             = errors.New("upload url has expired")
	ErrUnsupportedType     = errors.New("unsupported content type")
	ErrObjectExists        = errors.New("object already uploaded")
	ErrContentTypeMismatch = errors.New("content type does not match the signed upload")
)

type EventNotFoundError struct {
	ID int
}

func (e *EventNotFoundError) Error() string {
	return "event not found: " + itoa(e.ID)
}

type ImageNotFoundError struct {
	ID string
}

func (e *ImageNotFoundError) Error() string {
	return "image not found: " + e.ID
}

func NewEventNotFoundError(id int) error {
	return &EventNotFoundError{ID: id}
}

func NewImageNotFoundError(id string) error {
	return &ImageNotFoundError{ID: id}
}

func IsEventNotFoundError(err error) bool {
	var target *EventNotFoundError
	return errors.As(err, &target)
}

func IsImageNotFoundError(err error) bool {
	var target *ImageNotFoundError
	return errors.As(err, &target)
}
