package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// hourlyWriter appends to one log file per wall-clock hour under dir,
// rotating on the first write past each hour boundary.
type hourlyWriter struct {
	mu   sync.Mutex
	dir  string
	hour string
	file *os.File
}

func newHourlyWriter(dir string) (*hourlyWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %s: %w", dir, err)
	}
	return &hourlyWriter{dir: dir}, nil
}

func (w *hourlyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().Format("2006-01-02_15")
	if hour != w.hour {
		if w.file != nil {
			w.file.Close()
		}
		f, err := os.OpenFile(
			filepath.Join(w.dir, "cogru_"+hour+".log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return 0, err
		}
		w.file = f
		w.hour = hour
	}
	return w.file.Write(p)
}

// setupLogger configures logrus: the requested level, full timestamps, and
// output teed to stdout and the hourly-rotated file under ./.cogru/.
func setupLogger(levelName string) {
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	w, err := newHourlyWriter(dotCogru)
	if err != nil {
		logrus.Warnf("[log] %v; logging to stdout only", err)
		return
	}
	logrus.SetOutput(io.MultiWriter(os.Stdout, w))
}
