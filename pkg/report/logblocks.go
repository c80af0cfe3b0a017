package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulmenhq/assetneat/pkg/pipeline"
)

const (
	SummaryLogName = "summary.log"
	ErrorLogName   = "error.log"

	blockTimeLayout = "2006-01-02 15:04:05"
)

// AppendLogBlocks appends one block per failed file to error.log and one
// summary block to summary.log in dir. error.log is untouched when nothing
// failed.
func AppendLogBlocks(dir string, s *pipeline.Summary, now time.Time) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	if len(s.ErrorFiles) > 0 {
		var b strings.Builder
		for _, fe := range s.ErrorFiles {
			b.WriteString(ErrorBlock(fe, now))
		}
		if err := appendFile(filepath.Join(dir, ErrorLogName), b.String()); err != nil {
			return err
		}
	}
	return appendFile(filepath.Join(dir, SummaryLogName), SummaryBlock(s, now))
}

// ErrorBlock formats one failed file.
func ErrorBlock(fe pipeline.FileError, now time.Time) string {
	return fmt.Sprintf(`
=============== File Error ===============
Time: %s
File: %s
Stage: %s
Reason: %s
==========================================
`, now.Format(blockTimeLayout), fe.Path, fe.Stage, fe.Reason)
}

// SummaryBlock formats the run totals and the numbered list of failed files.
func SummaryBlock(s *pipeline.Summary, now time.Time) string {
	var files strings.Builder
	for i, fe := range s.ErrorFiles {
		fmt.Fprintf(&files, "  %d. %s\n", i+1, fe.Path)
	}
	return fmt.Sprintf(`
=============== Processing Summary ===============
Time: %s
Root: %s
Total files processed: %d
Files with errors: %d
Error files:
%s==================================================
`, now.Format(blockTimeLayout), s.Root, s.Processed, s.Errored, files.String())
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("append %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
