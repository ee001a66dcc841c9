package capture

import (
	"fmt"
	"image"
	"io"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

type InputKind int

const (
	InputDevice InputKind = iota
	InputFile
)

// FFmpegSource reads raw RGBA frames from an ffmpeg subprocess that scales
// its input to width x height.
type FFmpegSource struct {
	closeOnce sync.Once
	closed    atomic.Bool

	input  string
	width  int
	height int

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailBuffer

	pending image.Image
}

// OpenFFmpeg starts ffmpeg and waits for the first frame, so a missing
// device or unreadable file fails here instead of on the first Read.
func OpenFFmpeg(kind InputKind, input string, width, height int) (*FFmpegSource, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", width, height)
	}

	fs := &FFmpegSource{
		input:  input,
		width:  width,
		height: height,
		stderr: newTailBuffer(4096),
	}

	args := buildArgs(kind, input, width, height, runtime.GOOS)
	fs.cmd = exec.Command("ffmpeg", args...)
	fs.cmd.Stderr = fs.stderr

	stdout, err := fs.cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	fs.stdout = stdout

	log.Debugf("starting ffmpeg %s", strings.Join(args, " "))
	if err := fs.cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	first, err := fs.readFrame()
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("%s: %w. Details: %s", input, err, fs.stderr.String())
	}
	fs.pending = first

	return fs, nil
}

func (fs *FFmpegSource) Read() (image.Image, error) {
	if fs.closed.Load() {
		return nil, ErrClosed
	}
	if fs.pending != nil {
		img := fs.pending
		fs.pending = nil
		return img, nil
	}
	return fs.readFrame()
}

func (fs *FFmpegSource) readFrame() (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, fs.width, fs.height))

	if _, err := io.ReadFull(fs.stdout, img.Pix); err != nil {
		if fs.closed.Load() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("read error: %w", err)
	}

	return img, nil
}

func (fs *FFmpegSource) Close() error {
	fs.closeOnce.Do(func() {
		fs.closed.Store(true)
		if fs.cmd != nil && fs.cmd.Process != nil {
			fs.cmd.Process.Kill()
			fs.cmd.Wait()
		}
	})
	return nil
}

func buildArgs(kind InputKind, input string, width, height int, goos string) []string {
	var args []string

	switch {
	case kind == InputFile:
		args = []string{"-re", "-i", input}
	case goos == "windows":
		args = []string{"-f", "dshow", "-i", fmt.Sprintf("video=%s", input)}
	case goos == "darwin":
		args = []string{"-f", "avfoundation", "-i", input}
	default:
		args = []string{"-f", "v4l2", "-i", input}
	}

	return append(args,
		"-loglevel", "error",
		"-an",
		"-vf", fmt.Sprintf("scale=%d:%d", width, height),
		"-f", "image2pipe",
		"-pix_fmt", "rgba",
		"-vcodec", "rawvideo",
		"-",
	)
}

// NewFFmpegOpener opens ffmpeg capture devices by name.
func NewFFmpegOpener(width, height int) Opener {
	return func(id string) (Source, error) {
		return OpenFFmpeg(InputDevice, deviceInput(id, runtime.GOOS), width, height)
	}
}

// deviceInput maps a bare camera index to the v4l2 node on Linux.
func deviceInput(id, goos string) string {
	if goos != "linux" {
		return id
	}
	if _, err := strconv.Atoi(id); err == nil {
		return "/dev/video" + id
	}
	return id
}

// NewFileOpener ignores the device id and plays back path.
func NewFileOpener(path string, width, height int) Opener {
	return func(string) (Source, error) {
		if path == "" {
			return nil, fmt.Errorf("no video file configured")
		}
		return OpenFFmpeg(InputFile, path, width, height)
	}
}

var dshowVideoDevice = regexp.MustCompile(`"([^"]+)"\s+\(video\)`)

// ListFFmpegDevices lists capture devices ffmpeg can open on this platform.
func ListFFmpegDevices() ([]string, error) {
	if runtime.GOOS == "windows" {
		cmd := exec.Command("ffmpeg", "-hide_banner", "-list_devices", "true", "-f", "dshow", "-i", "dummy")
		stderr := newTailBuffer(64 * 1024)
		cmd.Stderr = stderr
		// ffmpeg always exits non-zero here; the listing is on stderr
		cmd.Run()
		return parseDShowDevices(stderr.String()), nil
	}

	devices, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, err
	}
	sort.Strings(devices)
	return devices, nil
}

func parseDShowDevices(output string) []string {
	var cameras []string
	seen := make(map[string]bool)

	for _, m := range dshowVideoDevice.FindAllStringSubmatch(output, -1) {
		name := m[1]
		if name != "dummy" && !seen[name] {
			cameras = append(cameras, name)
			seen[name] = true
		}
	}

	return cameras
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}
