package opencv

import (
	"errors"
	"fmt"
	"image"
	"strconv"
	"sync"
	"sync/atomic"

	"detectcam/processing/capture"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var ErrReadFailed = errors.New("failed to read frame")

// Webcam is an OpenCV capture device producing frames of a fixed size.
type Webcam struct {
	closeOnce sync.Once
	closed    atomic.Bool

	index  int
	width  int
	height int

	vc      *gocv.VideoCapture
	frame   gocv.Mat
	resized gocv.Mat
}

// OpenWebcam opens camera index id and requests a width x height mode.
// Frames are resized when the driver ignores the request.
func OpenWebcam(id string, width, height int) (*Webcam, error) {
	index, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("invalid camera index %q", id)
	}

	vc, err := gocv.VideoCaptureDevice(index)
	if err != nil {
		return nil, err
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(height))

	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("camera %d is not opened", index)
	}

	log.Debugf("camera %d opened at %.0fx%.0f", index,
		vc.Get(gocv.VideoCaptureFrameWidth), vc.Get(gocv.VideoCaptureFrameHeight))

	return &Webcam{
		index:   index,
		width:   width,
		height:  height,
		vc:      vc,
		frame:   gocv.NewMat(),
		resized: gocv.NewMat(),
	}, nil
}

func (w *Webcam) Read() (image.Image, error) {
	if w.closed.Load() {
		return nil, capture.ErrClosed
	}
	if ok := w.vc.Read(&w.frame); !ok || w.frame.Empty() {
		return nil, ErrReadFailed
	}

	src := w.frame
	if src.Cols() != w.width || src.Rows() != w.height {
		gocv.Resize(w.frame, &w.resized, image.Pt(w.width, w.height), 0, 0, gocv.InterpolationLinear)
		src = w.resized
	}

	return src.ToImage()
}

func (w *Webcam) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.closed.Store(true)
		err = w.vc.Close()
		w.frame.Close()
		w.resized.Close()
	})
	return err
}

func NewOpener(width, height int) capture.Opener {
	return func(id string) (capture.Source, error) {
		return OpenWebcam(id, width, height)
	}
}

// ProbeCameras tries indices 0..max-1 and returns those that open. When none
// do, it returns ["0"] so the selector is never empty.
func ProbeCameras(max int) []string {
	var cameras []string

	for i := 0; i < max; i++ {
		vc, err := gocv.VideoCaptureDevice(i)
		if err != nil {
			continue
		}
		if vc.IsOpened() {
			cameras = append(cameras, strconv.Itoa(i))
		}
		vc.Close()
	}

	if len(cameras) == 0 {
		return []string{"0"}
	}
	return cameras
}

func NewLister(max int) capture.Lister {
	return func() ([]string, error) {
		return ProbeCameras(max), nil
	}
}
