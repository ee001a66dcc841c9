package ui

import (
	"errors"
	"fmt"
	"image"
	"slices"

	"detectcam/internal/config"
	"detectcam/internal/metrics"
	"detectcam/internal/ui/cwidget"
	"detectcam/processing/capture"
	"detectcam/processing/detector"
	"detectcam/processing/session"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	log "github.com/sirupsen/logrus"
)

const (
	loadingCameras = "Loading cameras..."
	noCameras      = "No cameras found"
	listError      = "Error listing cameras"
)

type Deps struct {
	Config     *config.Config
	ConfigPath string

	Opener   capture.Opener
	Lister   capture.Lister
	Detector detector.Detector
	Metrics  *metrics.Metrics
}

// DetectApp is the main window. It implements session.View; every method of
// that interface may be called off the GUI goroutine and goes through fyne.Do.
type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config     *config.Config
	configPath string
	lister     capture.Lister
	session    *session.Session

	videoCanvas  *canvas.Image
	cameraSelect *widget.Select
	threshold    *cwidget.ValueSlider
	startBtn     *widget.Button
	stopBtn      *widget.Button
	fpsLabel     *widget.Label
	modelLabel   *widget.Label
	statusLabel  *widget.Label
}

func CreateApp(a fyne.App, d Deps) *DetectApp {
	w := a.NewWindow(d.Config.Window.Title)
	w.Resize(fyne.NewSize(1200, 600))

	app := &DetectApp{
		fyneApp:    a,
		mainWin:    w,
		config:     d.Config,
		configPath: d.ConfigPath,
		lister:     d.Lister,
	}

	app.session = session.New(d.Opener, d.Detector, app, d.Config.GetThreshold(),
		session.WithMetrics(d.Metrics))

	app.build(d.Detector.Name())
	app.loadCameras()

	return app
}

func (a *DetectApp) Run() {
	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

func (a *DetectApp) build(modelName string) {
	a.videoCanvas = canvas.NewImageFromImage(nil)
	a.videoCanvas.FillMode = canvas.ImageFillContain
	a.videoCanvas.SetMinSize(fyne.NewSize(config.DefaultFrameWidth, config.DefaultFrameHeight))

	a.fpsLabel = widget.NewLabel(formatFPS(0))
	a.modelLabel = widget.NewLabel("Model: " + modelName)
	a.statusLabel = widget.NewLabel("Ready")

	a.cameraSelect = widget.NewSelect([]string{loadingCameras}, func(s string) {
		if isCamera(s) {
			a.config.SetDeviceID(s)
		}
	})
	a.cameraSelect.SetSelected(loadingCameras)
	a.cameraSelect.Disable()

	a.threshold = cwidget.NewValueSlider(
		"Threshold",
		"%.2f",
		config.MinThreshold,
		config.MaxThreshold,
		0.01,
		a.session.Threshold(),
		func(v float64) {
			a.config.SetThreshold(a.session.SetThreshold(v))
		},
	)

	a.startBtn = widget.NewButtonWithIcon("Start", theme.MediaPlayIcon(), a.onStart)
	a.stopBtn = widget.NewButtonWithIcon("Stop", theme.MediaStopIcon(), a.onStop)
	a.stopBtn.Disable()

	settingsLabel := widget.NewLabelWithStyle("Configuration", fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	sidebar := container.NewVBox(
		settingsLabel,
		widget.NewSeparator(),
		widget.NewLabel("Select Camera:"),
		a.cameraSelect,
		widget.NewSeparator(),
		a.threshold,
		widget.NewSeparator(),
		a.startBtn,
		a.stopBtn,
	)

	videoContainer := container.NewBorder(
		container.NewHBox(a.fpsLabel, widget.NewSeparator(), a.modelLabel),
		nil, nil, nil,
		a.videoCanvas,
	)

	split := container.NewHSplit(
		container.NewPadded(sidebar),
		container.NewPadded(videoContainer),
	)
	split.SetOffset(0.3)

	a.mainWin.SetContent(container.NewBorder(nil, a.statusLabel, nil, nil, split))
	a.mainWin.SetCloseIntercept(func() {
		go a.shutdown()
	})
}

func (a *DetectApp) loadCameras() {
	go func() {
		devices, err := a.lister()

		fyne.Do(func() {
			if err != nil {
				log.WithError(err).Error("camera listing failed")
				dialog.ShowError(err, a.mainWin)
				a.cameraSelect.Options = []string{listError}
				a.cameraSelect.SetSelected(listError)
			} else if len(devices) == 0 {
				a.cameraSelect.Options = []string{noCameras}
				a.cameraSelect.SetSelected(noCameras)
			} else {
				a.cameraSelect.Options = devices
				a.cameraSelect.Enable()

				if id := a.config.GetDeviceID(); slices.Contains(devices, id) {
					a.cameraSelect.SetSelected(id)
				} else {
					a.cameraSelect.SetSelected(devices[0])
				}
			}
			a.cameraSelect.Refresh()
		})
	}()
}

// onStart runs on the GUI goroutine; opening a camera can block, so the
// session is started from its own goroutine.
func (a *DetectApp) onStart() {
	id := a.cameraSelect.Selected
	if !isCamera(id) {
		a.statusLabel.SetText("No camera selected")
		return
	}

	go func() {
		err := a.session.Start(id)
		if errors.Is(err, session.ErrAlreadyRunning) {
			log.Debug("start ignored, detection already running")
		}
	}()
}

func (a *DetectApp) onStop() {
	go a.session.Stop()
}

func (a *DetectApp) shutdown() {
	a.session.Stop()

	log.Info("App closed by user")
	a.SetStatus("App closed by user")

	if err := a.config.Save(a.configPath); err != nil {
		log.WithError(err).Error("config save failed")
	}

	fyne.Do(func() {
		a.mainWin.Close()
	})
}

func (a *DetectApp) SetRunning(running bool) {
	fyne.Do(func() {
		if running {
			a.startBtn.Disable()
			a.stopBtn.Enable()
		} else {
			a.startBtn.Enable()
			a.stopBtn.Disable()
		}
	})
}

func (a *DetectApp) SetStatus(msg string) {
	fyne.Do(func() {
		a.statusLabel.SetText(msg)
	})
}

func (a *DetectApp) SetFPS(fps float64) {
	fyne.Do(func() {
		a.fpsLabel.SetText(formatFPS(fps))
	})
}

func (a *DetectApp) ShowFrame(img image.Image) {
	fyne.Do(func() {
		a.videoCanvas.Image = img
		a.videoCanvas.Refresh()
	})
}

func formatFPS(v float64) string {
	return fmt.Sprintf("FPS: %.2f", v)
}

func isCamera(s string) bool {
	switch s {
	case "", loadingCameras, noCameras, listError:
		return false
	}
	return true
}
