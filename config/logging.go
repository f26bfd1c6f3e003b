package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
)

// LogWriter receives application and SQL logs once InitLogging has run.
var LogWriter io.Writer = os.Stdout

// LogConfig places the log file.
type LogConfig struct {
	Dir  string
	File string
}

// Path is the full path of the log file served by /logs.
func (l LogConfig) Path() string {
	return filepath.Join(l.Dir, l.File)
}

// InitLogging tees the standard logger into the log file. When the file cannot
// be opened logging stays on stdout and the returned closer is nil.
func InitLogging(lc LogConfig) (io.Closer, io.Writer) {
	if err := os.MkdirAll(lc.Dir, 0o755); err != nil {
		log.Printf("⚠️ Cannot create log directory %s: %v", lc.Dir, err)
	}

	f, err := os.OpenFile(lc.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("⚠️ Logging to stdout only: %v", err)
		LogWriter = os.Stdout
	} else {
		LogWriter = io.MultiWriter(os.Stdout, f)
	}
	log.SetOutput(LogWriter)
	if f == nil {
		return nil, LogWriter
	}
	return f, LogWriter
}
