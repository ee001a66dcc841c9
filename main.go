package main

import (
	"context"

	"detectcam/internal/config"
	"detectcam/internal/logger"
	"detectcam/internal/metrics"
	ui "detectcam/internal/ui"
	"detectcam/processing/capture"
	"detectcam/processing/detector"
	"detectcam/processing/opencv"

	"fyne.io/fyne/v2/app"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load(config.DefaultConfigPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logCloser, err := logger.Init(cfg.Log)
	if err != nil {
		log.Errorf("Failed to open log file: %v", err)
	}
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				log.Errorf("Metrics server failed: %v", err)
			}
		}()
	}

	det, err := newDetector(cfg)
	if err != nil {
		log.Fatalf("Failed to create detector: %v", err)
	}
	defer det.Close()

	open, list, err := newSource(cfg)
	if err != nil {
		log.Fatalf("Failed to create capture source: %v", err)
	}

	a := ui.CreateApp(app.New(), ui.Deps{
		Config:     cfg,
		ConfigPath: config.DefaultConfigPath,
		Opener:     open,
		Lister:     list,
		Detector:   det,
		Metrics:    m,
	})

	a.Run()
}

func newDetector(cfg *config.Config) (detector.Detector, error) {
	if cfg.Detector.Mode == config.DetectorRemote {
		log.Infof("Using remote detector at %s", cfg.Detector.RemoteAddr)
		return detector.NewRemoteDetector(cfg.Detector.RemoteAddr, cfg.Detector.Timeout), nil
	}
	return opencv.NewNetDetector(cfg.Model)
}

func newSource(cfg *config.Config) (capture.Opener, capture.Lister, error) {
	if cfg.Source == config.SourceOpenCV {
		return opencv.NewOpener(cfg.FrameWidth, cfg.FrameHeight), opencv.NewLister(cfg.MaxProbe), nil
	}

	open, err := capture.NewOpener(cfg)
	if err != nil {
		return nil, nil, err
	}
	list, err := capture.NewLister(cfg)
	if err != nil {
		return nil, nil, err
	}
	return open, list, nil
}
