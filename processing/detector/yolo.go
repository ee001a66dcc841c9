package detector

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"strings"
)

// COCOClasses are the 80 labels YOLO models are trained on by default.
var COCOClasses = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck",
	"boat", "traffic light", "fire hydrant", "stop sign", "parking meter", "bench",
	"bird", "cat", "dog", "horse", "sheep", "cow", "elephant", "bear", "zebra",
	"giraffe", "backpack", "umbrella", "handbag", "tie", "suitcase", "frisbee",
	"skis", "snowboard", "sports ball", "kite", "baseball bat", "baseball glove",
	"skateboard", "surfboard", "tennis racket", "bottle", "wine glass", "cup",
	"fork", "knife", "spoon", "bowl", "banana", "apple", "sandwich", "orange",
	"broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair", "couch",
	"potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
}

// Candidate is a decoded box before non-maximum suppression.
type Candidate struct {
	ClassID int
	Score   float32
	Box     image.Rectangle
}

// DecodeYOLO reads an anchor-free YOLO head (v8 and later). dims is the
// output shape, either [1, 4+C, N] or [1, N, 4+C]; each prediction is
// cx, cy, w, h in model input pixels followed by C class scores.
// scaleX and scaleY map model input pixels to frame pixels.
func DecodeYOLO(data []float32, dims []int, numClasses int, scaleX, scaleY, threshold float32) ([]Candidate, error) {
	if len(dims) != 3 || dims[0] != 1 {
		return nil, fmt.Errorf("%w: shape %v", ErrUnexpectedOutput, dims)
	}

	attrs, n := dims[1], dims[2]
	channelsFirst := true

	switch {
	case numClasses > 0 && dims[1] == 4+numClasses:
	case numClasses > 0 && dims[2] == 4+numClasses:
		attrs, n, channelsFirst = dims[2], dims[1], false
	case numClasses <= 0 && dims[2] < dims[1]:
		attrs, n, channelsFirst = dims[2], dims[1], false
	case numClasses > 0:
		return nil, fmt.Errorf("%w: shape %v does not fit %d classes", ErrUnexpectedOutput, dims, numClasses)
	}

	if attrs <= 4 {
		return nil, fmt.Errorf("%w: %d attributes per prediction", ErrUnexpectedOutput, attrs)
	}
	if len(data) < attrs*n {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrUnexpectedOutput, len(data), dims)
	}

	at := func(i, a int) float32 {
		if channelsFirst {
			return data[a*n+i]
		}
		return data[i*attrs+a]
	}

	var out []Candidate
	for i := 0; i < n; i++ {
		classID := -1
		var best float32
		for a := 4; a < attrs; a++ {
			if s := at(i, a); s > best {
				best = s
				classID = a - 4
			}
		}

		if classID < 0 || best < threshold {
			continue
		}

		cx, cy := at(i, 0), at(i, 1)
		w, h := at(i, 2), at(i, 3)

		out = append(out, Candidate{
			ClassID: classID,
			Score:   best,
			Box: image.Rect(
				int((cx-w/2)*scaleX),
				int((cy-h/2)*scaleY),
				int((cx+w/2)*scaleX),
				int((cy+h/2)*scaleY),
			),
		})
	}

	return out, nil
}

// ClassName returns names[id], or a numeric placeholder when id is out of range.
func ClassName(names []string, id int) string {
	if id >= 0 && id < len(names) {
		return names[id]
	}
	return fmt.Sprintf("class %d", id)
}

// LoadClassNames reads one label per line. An empty path yields the COCO labels.
func LoadClassNames(path string) ([]string, error) {
	if path == "" {
		return COCOClasses, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not read class names: %w", err)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if name := strings.TrimSpace(sc.Text()); name != "" {
			names = append(names, name)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("could not read class names: %w", err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no class names in %s", ErrBadModel, path)
	}

	return names, nil
}
