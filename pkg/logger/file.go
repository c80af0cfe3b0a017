package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultLogDir        = "logs"
	DefaultRetentionDays = 30
	filePrefix           = "assetneat-"
	fileSuffix           = ".log"
)

// FileOptions configures the dated file sink.
type FileOptions struct {
	Dir           string
	RetentionDays int
}

func (o FileOptions) withDefaults() FileOptions {
	if strings.TrimSpace(o.Dir) == "" {
		o.Dir = DefaultLogDir
	}
	if o.RetentionDays == 0 {
		o.RetentionDays = DefaultRetentionDays
	}
	return o
}

// FilePath returns the log file used for the day containing t.
func (o FileOptions) FilePath(t time.Time) string {
	o = o.withDefaults()
	return filepath.Join(o.Dir, filePrefix+t.Format("2006-01-02")+fileSuffix)
}

// CleanupOldLogs removes dated log files in dir last modified before
// now minus retentionDays. A negative retentionDays disables pruning.
// Files that do not follow the dated naming scheme are left alone.
func CleanupOldLogs(dir string, retentionDays int, now time.Time) ([]string, error) {
	if retentionDays < 0 {
		return nil, nil
	}
	cutoff := now.AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var removed []string
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		full := filepath.Join(dir, name)
		if err := os.Remove(full); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, full)
	}
	return removed, errors.Join(errs...)
}
