package bootstrap

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger пишет JSON-лог клиента в файл с ротацией, чтобы не смешивать его с выводом команд.
// Пустой путь: логирование выключено.
func NewLogger(path string, level zapcore.Level) (*zap.SugaredLogger, func() error) {
	if path == "" {
		return zap.NewNop().Sugar(), func() error { return nil }
	}
	_ = os.MkdirAll(filepath.Dir(path), 0o700)
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    5, // MB
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(lj), level)
	logger := zap.New(core)
	return logger.Sugar(), func() error {
		_ = logger.Sync()
		return lj.Close()
	}
}
