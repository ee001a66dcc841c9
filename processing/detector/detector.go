package detector

import (
	"context"
	"errors"
	"image"

	"detectcam/internal/models"
)

var (
	ErrBadModel         = errors.New("bad model")
	ErrUnexpectedOutput = errors.New("unexpected model output")
)

// Detector runs object detection on a single frame. Detections scoring
// below threshold are not returned.
type Detector interface {
	Detect(ctx context.Context, frame image.Image, threshold float32) ([]models.Detection, error)
	Name() string
	Close() error
}
