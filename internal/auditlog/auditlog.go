package auditlog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrWriteFailed is returned when the audit entry could not be opened or
// written. The termination sequence surfaces it but does not abort on it.
var ErrWriteFailed = errors.New("audit log write failed")

// The audit log is shared with the service: the service writes its own
// lifecycle entries, the supervisor appends on its behalf when it kills the
// service externally (the service cannot log its own death). The file is
// append-only and never truncated or rotated here; both writers must agree
// on the line format.
const timestampLayout = "2006-01-02 15:04:05,000"

// Writer appends termination entries to the shared audit log file.
type Writer struct {
	Path string

	// now is overridable for tests; nil means time.Now.
	now func() time.Time
}

// AppendTermination writes one entry recording that the supervisor stopped
// the service with the given PID. Best-effort: the caller logs failures and
// continues the cleanup sequence.
func (w Writer) AppendTermination(pid int) error {
	ts := time.Now()
	if w.now != nil {
		ts = w.now()
	}
	line := fmt.Sprintf("%s - INFO - Server stopped by closing the application | PID: %d\n",
		ts.Format(timestampLayout), pid)

	if dir := filepath.Dir(w.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
	}
	f, err := os.OpenFile(w.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}
