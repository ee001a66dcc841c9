package ui

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"detectcam/internal/config"
	"detectcam/internal/models"
	"detectcam/processing/capture"

	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct{}

func (fakeSource) Read() (image.Image, error) {
	time.Sleep(2 * time.Millisecond)
	return image.NewRGBA(image.Rect(0, 0, 16, 12)), nil
}

func (fakeSource) Close() error { return nil }

type fakeDetector struct{}

func (fakeDetector) Detect(context.Context, image.Image, float32) ([]models.Detection, error) {
	return []models.Detection{{ClassID: 2, Label: "car", Confidence: 0.9, Box: image.Rect(2, 2, 10, 8)}}, nil
}

func (fakeDetector) Name() string { return "fake.onnx" }
func (fakeDetector) Close() error { return nil }

func workingOpener(string) (capture.Source, error) { return fakeSource{}, nil }

func brokenOpener(string) (capture.Source, error) { return nil, errors.New("device busy") }

func listOf(ids ...string) capture.Lister {
	return func() ([]string, error) { return ids, nil }
}

func newTestApp(t *testing.T, open capture.Opener, list capture.Lister) *DetectApp {
	t.Helper()

	cfg := config.NewDefaultConfig()
	a := CreateApp(test.NewTempApp(t), Deps{
		Config:     cfg,
		ConfigPath: filepath.Join(t.TempDir(), "config.json"),
		Opener:     open,
		Lister:     list,
		Detector:   fakeDetector{},
	})
	t.Cleanup(a.session.Stop)
	return a
}

func waitForCameras(t *testing.T, a *DetectApp) {
	t.Helper()
	require.Eventually(t, func() bool { return !a.cameraSelect.Disabled() }, time.Second, time.Millisecond)
}

func TestCreateApp_InitialState(t *testing.T) {
	a := newTestApp(t, workingOpener, listOf("0", "1"))

	assert.Equal(t, "YOLO Object Detection App", a.mainWin.Title())
	assert.Equal(t, "Ready", a.statusLabel.Text)
	assert.Equal(t, "FPS: 0.00", a.fpsLabel.Text)
	assert.Equal(t, "Model: fake.onnx", a.modelLabel.Text)
	assert.Equal(t, "Threshold: 0.50", a.threshold.Text())
	assert.False(t, a.startBtn.Disabled())
	assert.True(t, a.stopBtn.Disabled())

	waitForCameras(t, a)
	assert.Equal(t, []string{"0", "1"}, a.cameraSelect.Options)
	assert.Equal(t, "0", a.cameraSelect.Selected)
}

func TestCreateApp_SelectsSavedCamera(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.SetDeviceID("1")
	a := CreateApp(test.NewTempApp(t), Deps{
		Config:   cfg,
		Opener:   workingOpener,
		Lister:   listOf("0", "1"),
		Detector: fakeDetector{},
	})

	waitForCameras(t, a)
	assert.Equal(t, "1", a.cameraSelect.Selected)
}

func TestStart_UnavailableCameraRestoresButtons(t *testing.T) {
	a := newTestApp(t, brokenOpener, listOf("3"))
	waitForCameras(t, a)

	test.Tap(a.startBtn)

	require.Eventually(t, func() bool {
		return a.statusLabel.Text == "Camera 3 not accessible. device busy"
	}, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !a.startBtn.Disabled() }, time.Second, time.Millisecond)
	assert.True(t, a.stopBtn.Disabled())
}

func TestStartStop_TogglesButtonsAndShowsFrames(t *testing.T) {
	a := newTestApp(t, workingOpener, listOf("0"))
	waitForCameras(t, a)

	test.Tap(a.startBtn)

	require.Eventually(t, func() bool {
		return a.videoCanvas.Image != nil && a.fpsLabel.Text != "FPS: 0.00"
	}, 2*time.Second, time.Millisecond)
	assert.True(t, a.startBtn.Disabled())
	assert.False(t, a.stopBtn.Disabled())

	test.Tap(a.stopBtn)

	require.Eventually(t, func() bool {
		return a.statusLabel.Text == "Stopped detection thread" && !a.startBtn.Disabled()
	}, 2*time.Second, time.Millisecond)
	assert.True(t, a.stopBtn.Disabled())
}

func TestThreshold_LabelTracksLastValue(t *testing.T) {
	a := newTestApp(t, workingOpener, listOf("0"))

	for _, v := range []float64{0.3, 0.95, 0.42} {
		a.threshold.SetValue(v)
	}

	assert.Equal(t, "Threshold: 0.42", a.threshold.Text())
	assert.InDelta(t, 0.42, a.session.Threshold(), 1e-6)
	assert.InDelta(t, 0.42, a.config.GetThreshold(), 1e-6)
}

func TestStop_BeforeStart(t *testing.T) {
	a := newTestApp(t, workingOpener, listOf("0"))

	assert.NotPanics(t, func() {
		a.session.Stop()
		a.session.Stop()
	})
	assert.False(t, a.startBtn.Disabled())
	assert.True(t, a.stopBtn.Disabled())
}

func TestStart_WithoutCameras(t *testing.T) {
	a := newTestApp(t, workingOpener, func() ([]string, error) { return nil, errors.New("no ffmpeg") })

	require.Eventually(t, func() bool { return a.cameraSelect.Selected == listError }, time.Second, time.Millisecond)

	test.Tap(a.startBtn)
	assert.Equal(t, "No camera selected", a.statusLabel.Text)
	assert.False(t, a.session.Running())
}

func TestShutdown_StopsAndSavesConfig(t *testing.T) {
	a := newTestApp(t, workingOpener, listOf("0"))
	waitForCameras(t, a)

	a.threshold.SetValue(0.7)
	test.Tap(a.startBtn)
	require.Eventually(t, a.session.Running, time.Second, time.Millisecond)

	a.shutdown()

	assert.False(t, a.session.Running())
	assert.Equal(t, "App closed by user", a.statusLabel.Text)

	_, err := os.Stat(a.configPath)
	require.NoError(t, err)

	saved, err := config.Load(a.configPath)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, saved.GetThreshold(), 1e-6)
	assert.Equal(t, "0", saved.GetDeviceID())
}
