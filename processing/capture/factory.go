package capture

import (
	"fmt"

	config "detectcam/internal/config"
)

// NewOpener returns the opener for the ffmpeg-backed sources. The OpenCV
// source lives in the opencv package.
func NewOpener(cfg *config.Config) (Opener, error) {
	switch cfg.Source {
	case config.SourceFFmpeg:
		return NewFFmpegOpener(cfg.FrameWidth, cfg.FrameHeight), nil
	case config.SourceFile:
		return NewFileOpener(cfg.File.Path, cfg.FrameWidth, cfg.FrameHeight), nil
	default:
		return nil, fmt.Errorf("unknown source: %s", cfg.Source)
	}
}

func NewLister(cfg *config.Config) (Lister, error) {
	switch cfg.Source {
	case config.SourceFFmpeg:
		return ListFFmpegDevices, nil
	case config.SourceFile:
		return func() ([]string, error) { return []string{cfg.File.Path}, nil }, nil
	default:
		return nil, fmt.Errorf("unknown source: %s", cfg.Source)
	}
}
