package logger

import (
	"io"
	"os"
	"path/filepath"

	"detectcam/internal/config"

	log "github.com/sirupsen/logrus"
)

// Init configures the package-level logrus logger. The returned closer
// releases the log file, if one was opened.
func Init(cfg config.LogConfig) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info': %v", cfg.Level, err)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	if cfg.File == "" {
		log.SetOutput(os.Stdout)
		return noopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0750); err != nil {
		log.SetOutput(os.Stdout)
		return noopCloser{}, err
	}

	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0660)
	if err != nil {
		log.SetOutput(os.Stdout)
		return noopCloser{}, err
	}

	log.SetOutput(io.MultiWriter(os.Stdout, file))
	log.Infof("Logging additionally to file: %s", cfg.File)

	return file, nil
}

type noopCloser struct{}

func (noopCloser) Close() error { return nil }
