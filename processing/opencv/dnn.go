package opencv

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"detectcam/internal/config"
	"detectcam/internal/models"
	"detectcam/processing/detector"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// NetDetector runs an anchor-free YOLO ONNX model through the OpenCV DNN
// module. The net is not safe for concurrent use, so Detect serializes on mu.
type NetDetector struct {
	mu  sync.Mutex
	net gocv.Net

	name         string
	names        []string
	inputSize    int
	nmsThreshold float32
}

func NewNetDetector(cfg config.ModelConfig) (*NetDetector, error) {
	if _, err := os.Stat(cfg.Path); err != nil {
		return nil, fmt.Errorf("%w: %v", detector.ErrBadModel, err)
	}

	names, err := detector.LoadClassNames(cfg.NamesPath)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(cfg.Path, "")
	if net.Empty() {
		return nil, fmt.Errorf("%w: could not load %s", detector.ErrBadModel, cfg.Path)
	}

	backend := gocv.ParseNetBackend(cfg.Backend)
	target := gocv.ParseNetTarget(cfg.Target)

	if err := net.SetPreferableBackend(backend); err != nil {
		net.Close()
		return nil, fmt.Errorf("can't set backend %q: %w", cfg.Backend, err)
	}
	if err := net.SetPreferableTarget(target); err != nil {
		net.Close()
		return nil, fmt.Errorf("can't set target %q: %w", cfg.Target, err)
	}

	log.Infof("Model %s loaded (backend %v, target %v, %d classes)", cfg.Path, backend, target, len(names))

	size := cfg.InputSize
	if size <= 0 {
		size = 640
	}

	return &NetDetector{
		net:          net,
		name:         filepath.Base(cfg.Path),
		names:        names,
		inputSize:    size,
		nmsThreshold: float32(cfg.NMSThreshold),
	}, nil
}

func (d *NetDetector) Name() string {
	return d.name
}

func (d *NetDetector) Detect(ctx context.Context, frame image.Image, threshold float32) ([]models.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := gocv.ImageToMatRGB(frame)
	if err != nil {
		return nil, fmt.Errorf("convert frame: %w", err)
	}
	defer img.Close()

	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(d.inputSize, d.inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", detector.ErrUnexpectedOutput, err)
	}

	scaleX := float32(img.Cols()) / float32(d.inputSize)
	scaleY := float32(img.Rows()) / float32(d.inputSize)

	cands, err := detector.DecodeYOLO(data, out.Size(), len(d.names), scaleX, scaleY, threshold)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, nil
	}

	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i] = c.Box
		scores[i] = c.Score
	}

	keep := gocv.NMSBoxes(boxes, scores, threshold, d.nmsThreshold)

	dets := make([]models.Detection, 0, len(keep))
	for _, i := range keep {
		c := cands[i]
		dets = append(dets, models.Detection{
			ClassID:    c.ClassID,
			Label:      detector.ClassName(d.names, c.ClassID),
			Confidence: c.Score,
			Box:        c.Box,
		})
	}

	return dets, nil
}

func (d *NetDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
