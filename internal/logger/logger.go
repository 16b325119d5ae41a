package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	InfoLogger  *logrus.Logger
	ErrorLogger *logrus.Logger
)

// InitLoggers wires both loggers to stdout/stderr and a size-rotated file.
// Call once from main before anything else logs.
func InitLoggers(logFile string) {
	rotated := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // MB
		MaxBackups: 5,
		Compress:   true,
	}

	InfoLogger = logrus.New()
	InfoLogger.SetLevel(logrus.InfoLevel)
	InfoLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	InfoLogger.SetOutput(io.MultiWriter(os.Stdout, rotated))

	ErrorLogger = logrus.New()
	ErrorLogger.SetLevel(logrus.ErrorLevel)
	ErrorLogger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	ErrorLogger.SetOutput(io.MultiWriter(os.Stderr, rotated))
}

func init() {
	// Safe defaults so package-level loggers work in tests without InitLoggers.
	InfoLogger = logrus.New()
	ErrorLogger = logrus.New()
}
