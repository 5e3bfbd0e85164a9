package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	customlogger "chat-guard/internal/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

// CustomGormLogger 将 GORM 日志转发到应用的 zap logger
type CustomGormLogger struct {
	LogLevel                  logger.LogLevel
	SlowThreshold             time.Duration
	SkipCallerLookup          bool
	IgnoreRecordNotFoundError bool
}

// NewCustomGormLogger 创建一个新的GORM日志适配器
func NewCustomGormLogger(level string) logger.Interface {
	var logLevel logger.LogLevel

	// 将我们的日志级别映射到GORM的日志级别
	switch strings.ToUpper(level) {
	case "DEBUG":
		logLevel = logger.Info
	case "INFO", "WARNING", "WARN":
		logLevel = logger.Warn
	default:
		logLevel = logger.Error
	}

	return &CustomGormLogger{
		LogLevel:                  logLevel,
		SlowThreshold:             200 * time.Millisecond,
		IgnoreRecordNotFoundError: true,
	}
}

// LogMode 设置日志级别
func (l *CustomGormLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

// Info 输出信息级别日志
func (l *CustomGormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Info {
		customlogger.Infof(msg, data...)
	}
}

// Warn 输出警告级别日志
func (l *CustomGormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Warn {
		customlogger.Warningf(msg, data...)
	}
}

// Error 输出错误级别日志
func (l *CustomGormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Error {
		customlogger.Errorf(msg, data...)
	}
}

// Trace 记录SQL执行情况
func (l *CustomGormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()
	ms := float64(elapsed.Nanoseconds()) / 1e6

	// 调用位置作为前缀
	prefix := fmt.Sprintf("[%.3fms]", ms)
	if !l.SkipCallerLookup {
		prefix += " [" + utils.FileWithLineNum() + "]"
	}

	switch {
	case err != nil && l.LogLevel >= logger.Error && (!errors.Is(err, gorm.ErrRecordNotFound) || !l.IgnoreRecordNotFoundError):
		customlogger.Errorf("%s %s; error=%v", prefix, sql, err)
	case elapsed > l.SlowThreshold && l.SlowThreshold != 0 && l.LogLevel >= logger.Warn:
		customlogger.Warningf("%s %s; SLOW SQL >= %v, rows=%d", prefix, sql, l.SlowThreshold, rows)
	case l.LogLevel == logger.Info:
		customlogger.Debugf("%s %s; rows=%d", prefix, sql, rows)
	}
}
