package capture

import (
	"errors"
	"image"
)

var ErrClosed = errors.New("capture source closed")

// Source is an opened capture device. Read blocks until the next frame is
// available. Close releases the device and is safe to call more than once.
type Source interface {
	Read() (image.Image, error)
	Close() error
}

// Opener opens the capture device identified by id.
type Opener func(id string) (Source, error)

// Lister enumerates the device ids a user can pick from.
type Lister func() ([]string, error)
