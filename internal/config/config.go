package config

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type SourceType string

const (
	SourceOpenCV SourceType = "opencv"
	SourceFFmpeg SourceType = "ffmpeg"
	SourceFile   SourceType = "file"

	DetectorLocal  = "local"
	DetectorRemote = "remote"

	DefaultConfigPath  string = "config.json"
	DefaultModelPath   string = "yolo12n.onnx"
	DefaultRemoteAddr  string = "localhost:8080"
	DefaultWindowTitle string = "YOLO Object Detection App"

	envPrefix = "DETECTCAM"
)

const (
	DefaultFrameWidth  = 640
	DefaultFrameHeight = 480
	DefaultMaxProbe    = 5

	DefaultThreshold = 0.5
	MinThreshold     = 0.1
	MaxThreshold     = 1.0
)

var SourcesList = [...]string{
	string(SourceOpenCV),
	string(SourceFFmpeg),
	string(SourceFile),
}

type ModelConfig struct {
	Path         string  `mapstructure:"path" json:"path"`
	NamesPath    string  `mapstructure:"names_path" json:"names_path"`
	InputSize    int     `mapstructure:"input_size" json:"input_size"`
	NMSThreshold float64 `mapstructure:"nms_threshold" json:"nms_threshold"`
	Backend      string  `mapstructure:"backend" json:"backend"`
	Target       string  `mapstructure:"target" json:"target"`
}

type DetectorConfig struct {
	Mode       string        `mapstructure:"mode" json:"mode"`
	RemoteAddr string        `mapstructure:"remote_addr" json:"remote_addr"`
	Timeout    time.Duration `mapstructure:"timeout" json:"timeout"`
}

type FileConfig struct {
	Path string `mapstructure:"path" json:"path"`
}

type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
	File  string `mapstructure:"file" json:"file"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" json:"addr"`
}

type WindowConfig struct {
	Title string `mapstructure:"title" json:"title"`
}

type Config struct {
	mu sync.RWMutex

	Source         SourceType `mapstructure:"source" json:"source"`
	DeviceID       string     `mapstructure:"device_id" json:"device_id"`
	MaxProbe       int        `mapstructure:"max_probe" json:"max_probe"`
	FrameWidth     int        `mapstructure:"frame_width" json:"frame_width"`
	FrameHeight    int        `mapstructure:"frame_height" json:"frame_height"`
	ScoreThreshold float64    `mapstructure:"score_threshold" json:"score_threshold"`

	Model    ModelConfig    `mapstructure:"model" json:"model"`
	Detector DetectorConfig `mapstructure:"detector" json:"detector"`
	File     FileConfig     `mapstructure:"file" json:"file"`
	Log      LogConfig      `mapstructure:"log" json:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" json:"metrics"`
	Window   WindowConfig   `mapstructure:"window" json:"window"`
}

func (c *Config) GetDeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.DeviceID
}

func (c *Config) SetDeviceID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DeviceID = id
}

func (c *Config) GetThreshold() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ScoreThreshold
}

func (c *Config) SetThreshold(v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScoreThreshold = ClampThreshold(v)
}

// ClampThreshold bounds v to the range the threshold slider offers.
func ClampThreshold(v float64) float64 {
	if v < MinThreshold {
		return MinThreshold
	}
	if v > MaxThreshold {
		return MaxThreshold
	}
	return v
}

// Save writes the config as indented JSON, replacing any previous file.
func (c *Config) Save(path string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Load reads defaults, then the JSON file at path if present, then
// DETECTCAM_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			log.Infof("Config file %s does not exist, using defaults", path)
		} else {
			v.SetConfigFile(path)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			log.Infof("Config loaded from %s", path)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewDefaultConfig returns the built-in defaults without touching disk or env.
func NewDefaultConfig() *Config {
	v := viper.New()
	setDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		// defaults are static; a failure here is a programming error
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source", string(SourceOpenCV))
	v.SetDefault("device_id", "0")
	v.SetDefault("max_probe", DefaultMaxProbe)
	v.SetDefault("frame_width", DefaultFrameWidth)
	v.SetDefault("frame_height", DefaultFrameHeight)
	v.SetDefault("score_threshold", DefaultThreshold)

	v.SetDefault("model.path", DefaultModelPath)
	v.SetDefault("model.names_path", "")
	v.SetDefault("model.input_size", 640)
	v.SetDefault("model.nms_threshold", 0.45)
	v.SetDefault("model.backend", "default")
	v.SetDefault("model.target", "cpu")

	v.SetDefault("detector.mode", DetectorLocal)
	v.SetDefault("detector.remote_addr", DefaultRemoteAddr)
	v.SetDefault("detector.timeout", 5*time.Second)

	v.SetDefault("file.path", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("metrics.addr", "")

	v.SetDefault("window.title", DefaultWindowTitle)
}

func (c *Config) validate() error {
	if !slices.Contains(SourcesList[:], string(c.Source)) {
		return fmt.Errorf("unknown source: %q (want one of %s)", c.Source, strings.Join(SourcesList[:], ", "))
	}

	switch c.Detector.Mode {
	case DetectorLocal, DetectorRemote:
	default:
		return fmt.Errorf("unknown detector mode: %q", c.Detector.Mode)
	}

	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", c.FrameWidth, c.FrameHeight)
	}

	if c.MaxProbe <= 0 {
		c.MaxProbe = DefaultMaxProbe
	}
	if c.Model.InputSize <= 0 {
		c.Model.InputSize = 640
	}
	c.ScoreThreshold = ClampThreshold(c.ScoreThreshold)

	return nil
}
