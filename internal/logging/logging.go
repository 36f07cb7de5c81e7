package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger = zap.SugaredLogger

// New builds a logger that writes timestamped lines to both the console and
// logFile (appended). An empty logFile logs to the console only. The returned
// closer syncs the logger and closes the file.
func New(logFile, level string) (*Logger, func() error, error) {
	return newLogger(os.Stderr, logFile, level)
}

func newLogger(console io.Writer, logFile, level string) (*Logger, func() error, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("log level: %w", err)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	enc := zapcore.NewConsoleEncoder(encCfg)

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.AddSync(console), lvl)}

	var f *os.File
	if logFile != "" {
		f, err = os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(f), lvl))
	}

	l := zap.New(zapcore.NewTee(cores...)).Sugar()
	closer := func() error {
		_ = l.Sync()
		if f != nil {
			return f.Close()
		}
		return nil
	}
	return l, closer, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return zap.NewNop().Sugar()
}
