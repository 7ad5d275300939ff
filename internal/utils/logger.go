package utils

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig configures the logger.
type LogConfig struct {
	Level      string `mapstructure:"level"`       // trace, debug, info, warn, error
	LogDir     string `mapstructure:"log_dir"`     // directory for rotated files
	MaxSize    int    `mapstructure:"max_size"`    // MB per file
	MaxBackups int    `mapstructure:"max_backups"` // rotated files kept
	MaxAge     int    `mapstructure:"max_age"`     // days
	Compress   bool   `mapstructure:"compress"`    // gzip rotated files
	NoConsole  bool   `mapstructure:"-"`           // file output only (tests)
}

// DefaultLogConfig returns the default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		LogDir:     "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

// InitLogger builds the run logger: colored console, a rotating main log and a
// rotating error log that only receives error level and above.
// The returned logger is also installed as the zerolog global for the CLI layer.
func InitLogger(config LogConfig) (zerolog.Logger, error) {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return zerolog.Nop(), err
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}

	mainLogFile := &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, "poharvest.log"),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}

	errorLogFile := &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, "poharvest_error.log"),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}

	writers := []io.Writer{
		mainLogFile,
		&FilteredWriter{Writer: errorLogFile, MinLevel: zerolog.ErrorLevel},
	}
	if !config.NoConsole {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// MultiLevelWriter hands the level to FilteredWriter.WriteLevel.
	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()

	log.Logger = logger

	logger.Info().
		Str("level", level.String()).
		Str("log_dir", config.LogDir).
		Msg("logger initialised")

	return logger, nil
}

// FilteredWriter only passes entries at MinLevel or above.
type FilteredWriter struct {
	Writer   io.Writer
	MinLevel zerolog.Level
}

// Write drops unleveled writes; every zerolog event goes through WriteLevel.
func (w *FilteredWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

// WriteLevel implements zerolog.LevelWriter.
func (w *FilteredWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	if level >= w.MinLevel {
		return w.Writer.Write(p)
	}
	return len(p), nil
}
