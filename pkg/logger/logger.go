package logger

import (
	"fmt"
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var InfoLogger, FatalLogger *zap.Logger

var (
	serviceName = "default"
)

// Config — настройки вывода логов; файл ротируется lumberjack'ом.
type Config struct {
	Level      string `yaml:"level"`
	FileName   string `yaml:"file-name"`
	MaxSize    int    `yaml:"max-size"` // MB
	MaxBackups int    `yaml:"max-backups"`
	MaxAge     int    `yaml:"max-age"` // days
	Compress   bool   `yaml:"compress"`
	Console    bool   `yaml:"console"`
	JSON       bool   `yaml:"json"`
}

func SetServiceName(newName string) string {
	oldName := serviceName
	serviceName = newName

	return oldName
}

// New собирает zap-логгер: консоль и/или файл с ротацией.
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.Set(cfg.Level); err != nil {
			return nil, fmt.Errorf("log level %q: %w", cfg.Level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	newEncoder := func() zapcore.Encoder {
		if cfg.JSON {
			return zapcore.NewJSONEncoder(encCfg)
		}
		return zapcore.NewConsoleEncoder(encCfg)
	}

	var cores []zapcore.Core
	if cfg.FileName != "" {
		w := &lumberjack.Logger{
			Filename:   cfg.FileName,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), level))
	}
	if cfg.Console || cfg.FileName == "" {
		cores = append(cores, zapcore.NewCore(newEncoder(), zapcore.Lock(os.Stderr), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()).
		With(zap.String("service", serviceName)), nil
}

// Init выставляет глобальные логгеры для хелперов Info/Error/Fatal.
func Init(cfg Config) (*zap.Logger, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}
	InfoLogger = l
	FatalLogger = l
	return l, nil
}

func Info(format string, args ...interface{}) {
	if InfoLogger == nil {
		panic("InfoLogger is not initialized")
	}

	InfoLogger.Info(fmt.Sprintf(format, args...))
}

func Warn(format string, args ...interface{}) {
	if InfoLogger == nil {
		panic("InfoLogger is not initialized")
	}

	InfoLogger.Warn(fmt.Sprintf(format, args...))
}

func Error(format string, args ...interface{}) {
	if InfoLogger == nil {
		panic("InfoLogger is not initialized")
	}

	InfoLogger.Error(fmt.Sprintf(format, args...))
}

func Fatal(format string, args ...interface{}) {
	if FatalLogger == nil {
		panic("FatalLogger is not initialized")
	}

	FatalLogger.Fatal(fmt.Sprintf(format, args...))
}

// Sync сбрасывает буферы; ошибки stderr-sync на linux игнорируются.
func Sync() {
	if InfoLogger != nil {
		_ = InfoLogger.Sync()
	}
}
