package capture

import (
	"strings"
	"testing"

	"detectcam/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildArgs(t *testing.T) {
	tests := []struct {
		name  string
		kind  InputKind
		input string
		goos  string
		head  []string
	}{
		{"linux device", InputDevice, "/dev/video0", "linux", []string{"-f", "v4l2", "-i", "/dev/video0"}},
		{"windows device", InputDevice, "HD Webcam", "windows", []string{"-f", "dshow", "-i", "video=HD Webcam"}},
		{"mac device", InputDevice, "0", "darwin", []string{"-f", "avfoundation", "-i", "0"}},
		{"file", InputFile, "clip.mp4", "windows", []string{"-re", "-i", "clip.mp4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := buildArgs(tt.kind, tt.input, 640, 480, tt.goos)

			assert.Equal(t, tt.head, args[:len(tt.head)])
			joined := strings.Join(args, " ")
			assert.Contains(t, joined, "-vf scale=640:480")
			assert.Contains(t, joined, "-pix_fmt rgba")
			assert.Equal(t, "-", args[len(args)-1])
		})
	}
}

func TestDeviceInput(t *testing.T) {
	assert.Equal(t, "/dev/video1", deviceInput("1", "linux"))
	assert.Equal(t, "/dev/video2", deviceInput("/dev/video2", "linux"))
	assert.Equal(t, "1", deviceInput("1", "windows"))
}

func TestParseDShowDevices(t *testing.T) {
	output := `[dshow @ 000001] "Integrated Camera" (video)
[dshow @ 000001]   Alternative name "@device_pnp_\\?\usb#vid"
[dshow @ 000001] "Microphone Array" (audio)
[dshow @ 000001] "OBS Virtual Camera" (video)
[dshow @ 000001] "Integrated Camera" (video)
dummy: Immediate exit requested`

	assert.Equal(t, []string{"Integrated Camera", "OBS Virtual Camera"}, parseDShowDevices(output))
	assert.Empty(t, parseDShowDevices("no devices"))
}

func TestTailBuffer_KeepsLastBytes(t *testing.T) {
	b := newTailBuffer(8)

	n, err := b.Write([]byte("hello "))
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	b.Write([]byte("world"))
	assert.Equal(t, "lo world", b.String())
}

func TestOpenFFmpeg_RejectsBadSize(t *testing.T) {
	_, err := OpenFFmpeg(InputDevice, "/dev/video0", 0, 480)
	assert.Error(t, err)
}

func TestFFmpegSource_ReadAfterClose(t *testing.T) {
	fs := &FFmpegSource{width: 4, height: 4}

	require.NoError(t, fs.Close())
	require.NoError(t, fs.Close())

	_, err := fs.Read()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNewFileOpener_RequiresPath(t *testing.T) {
	_, err := NewFileOpener("", 640, 480)("0")
	assert.ErrorContains(t, err, "no video file")
}

func TestNewOpener(t *testing.T) {
	cfg := config.NewDefaultConfig()

	_, err := NewOpener(cfg)
	assert.Error(t, err, "opencv source is not served by this package")

	cfg.Source = config.SourceFFmpeg
	open, err := NewOpener(cfg)
	require.NoError(t, err)
	assert.NotNil(t, open)

	cfg.Source = config.SourceFile
	cfg.File.Path = "demo.mp4"
	list, err := NewLister(cfg)
	require.NoError(t, err)
	ids, err := list()
	require.NoError(t, err)
	assert.Equal(t, []string{"demo.mp4"}, ids)
}
