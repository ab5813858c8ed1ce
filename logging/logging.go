package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/op/go-logging"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zos-network/bridge-watcher/config"
)

var Logger = logging.MustGetLogger("bridge-watcher")

var format = logging.MustStringFormatter(
	`%{time:2006-01-02T15:04:05.000Z07:00} %{level:.4s} %{shortfile} %{message}`,
)

// InitLogger sets up the process-wide logger according to the log config.
// Must be called once at startup before any component starts logging.
func InitLogger(cfg *config.LogConfig) {
	backends := make([]logging.Backend, 0, 2)
	if cfg.UseConsoleLogger {
		backends = append(backends, logging.NewLogBackend(os.Stdout, "", 0))
	}
	if cfg.UseFileLogger {
		var writer io.Writer = &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxFileSizeInMB,
			MaxBackups: cfg.MaxBackupsOfLogFiles,
			MaxAge:     cfg.MaxAgeToRetainLogFilesInDays,
			Compress:   cfg.Compress,
		}
		backends = append(backends, logging.NewLogBackend(writer, "", 0))
	}

	leveled := make([]logging.Backend, 0, len(backends))
	level, err := logging.LogLevel(cfg.Level)
	if err != nil {
		panic(fmt.Sprintf("invalid log level %s, err=%s", cfg.Level, err.Error()))
	}
	for _, backend := range backends {
		formatted := logging.NewBackendFormatter(backend, format)
		leveledBackend := logging.AddModuleLevel(formatted)
		leveledBackend.SetLevel(level, "")
		leveled = append(leveled, leveledBackend)
	}
	logging.SetBackend(leveled...)
}
