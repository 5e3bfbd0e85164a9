package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"chat-guard/internal/config"
)

// sugar is a no-op until Setup runs so packages can log from tests.
var sugar = zap.NewNop().Sugar()

// createLogFilePath generates a log file path with the current date
func createLogFilePath(logDir, prefix string) string {
	currentDate := time.Now().Format("2006-01-02")
	return filepath.Join(logDir, fmt.Sprintf("%s-%s.log", prefix, currentDate))
}

// createRotatingLogger creates a lumberjack rotating logger
func createRotatingLogger(logFilePath string, cfg *config.Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    cfg.Logger.Rotation.MaxSize,
		MaxBackups: cfg.Logger.Rotation.MaxBackups,
		MaxAge:     cfg.Logger.Rotation.MaxAge,
		Compress:   cfg.Logger.Rotation.Compress,
	}
}

// parseLevel maps the config level names onto zap levels
func parseLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARNING", "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func timeEncoder(cfg *config.Config) zapcore.TimeEncoder {
	loc := time.Local
	if cfg.Logger.Timezone != "" && cfg.Logger.Timezone != "Local" {
		if l, err := time.LoadLocation(cfg.Logger.Timezone); err == nil {
			loc = l
		}
	}
	layout := cfg.Logger.TimeFormat
	if layout == "" {
		layout = "2006/01/02 15:04:05"
	}
	return func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(loc).Format(layout))
	}
}

// newCore builds a console core writing to w at the configured level
func newCore(cfg *config.Config, w io.Writer) zapcore.Core {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = timeEncoder(cfg)
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), parseLevel(cfg.Logger.Level))
}

// Setup configures logging to output to both stdout and a rotating log file
func Setup(cfg *config.Config) error {
	logDir := cfg.Logger.Directory

	// Create log directory if it doesn't exist
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFilePath := createLogFilePath(logDir, "chat-guard")
	rotatingLogger := createRotatingLogger(logFilePath, cfg)

	core := newCore(cfg, io.MultiWriter(os.Stdout, rotatingLogger))
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	sugar = l.Sugar()

	// keep third-party code using the std logger in the same files
	zap.RedirectStdLog(l.WithOptions(zap.AddCallerSkip(-1)))

	sugar.Infof("Logging initialized: writing to %s", logFilePath)
	return nil
}

// Sugar returns the underlying sugared logger. It satisfies the logger
// interfaces expected by telego.
func Sugar() *zap.SugaredLogger {
	return sugar.WithOptions(zap.AddCallerSkip(-1))
}

// Sync flushes buffered entries
func Sync() {
	_ = sugar.Sync()
}

// Debug logs at debug level
func Debug(args ...interface{}) {
	sugar.Debug(args...)
}

// Debugf logs a formatted message at debug level
func Debugf(format string, args ...interface{}) {
	sugar.Debugf(format, args...)
}

// Info logs at info level
func Info(args ...interface{}) {
	sugar.Info(args...)
}

// Infof logs a formatted message at info level
func Infof(format string, args ...interface{}) {
	sugar.Infof(format, args...)
}

// Warning logs at warn level
func Warning(args ...interface{}) {
	sugar.Warn(args...)
}

// Warningf logs a formatted message at warn level
func Warningf(format string, args ...interface{}) {
	sugar.Warnf(format, args...)
}

// Error logs at error level
func Error(args ...interface{}) {
	sugar.Error(args...)
}

// Errorf logs a formatted message at error level
func Errorf(format string, args ...interface{}) {
	sugar.Errorf(format, args...)
}

// Fatalf logs a formatted message and exits the process
func Fatalf(format string, args ...interface{}) {
	sugar.Fatalf(format, args...)
}
