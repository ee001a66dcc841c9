package models

import (
	"fmt"
	"image"
)

// Detection is one object reported by a detector, in frame pixel coordinates.
type Detection struct {
	ClassID    int
	Label      string
	Confidence float32
	Box        image.Rectangle
}

func (d Detection) Caption() string {
	return fmt.Sprintf("%s %.2f", d.Label, d.Confidence)
}

// DetectionResult is the remote detector wire format. Box holds normalized
// [y1, x1, y2, x2] coordinates.
type DetectionResult struct {
	Label      string    `json:"label"`
	Confidence float32   `json:"confidence"`
	Box        []float32 `json:"box"`
}

// ToDetection scales the normalized box to a width x height frame.
func (r DetectionResult) ToDetection(width, height int) (Detection, error) {
	if len(r.Box) != 4 {
		return Detection{}, fmt.Errorf("box has %d coordinates, want 4", len(r.Box))
	}

	w := float32(width)
	h := float32(height)

	rect := image.Rect(
		int(r.Box[1]*w),
		int(r.Box[0]*h),
		int(r.Box[3]*w),
		int(r.Box[2]*h),
	)

	return Detection{
		ClassID:    -1,
		Label:      r.Label,
		Confidence: r.Confidence,
		Box:        rect.Intersect(image.Rect(0, 0, width, height)),
	}, nil
}

func Labels(dets []Detection) []string {
	labels := make([]string, len(dets))
	for i, d := range dets {
		labels[i] = d.Label
	}
	return labels
}
