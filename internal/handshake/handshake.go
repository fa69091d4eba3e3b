package handshake

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// The service advertises itself by writing a small key-value file at a fixed
// path once it has bound its listen address. The supervisor never holds a
// direct handle to the service process; this file is the only channel through
// which the service's URL and PID are discovered. While the file exists it is
// assumed to describe a live service; absence means not-yet-started or
// cleanly stopped.

var (
	// ErrNotFound is returned by Read when the handshake file does not exist.
	ErrNotFound = errors.New("handshake file not found")
	// ErrMalformed is returned by Read when the file exists but the url or
	// pid entry is missing or unparsable.
	ErrMalformed = errors.New("malformed handshake file")
	// ErrDeleteFailed is returned by Remove when the filesystem denies the
	// delete. Callers treat it as non-fatal: absence is the desired end state.
	ErrDeleteFailed = errors.New("handshake file delete failed")
)

// ServiceInfo is the in-memory record parsed from the handshake file.
// It has no lifecycle beyond the Read call that produced it.
type ServiceInfo struct {
	URL string
	PID int
}

// File reads and removes the handshake artifact at a fixed path.
type File struct {
	Path string
}

// Read parses the handshake file. Entries are located by key, not by line
// index, so extra or reordered lines are tolerated. The original service
// emitted uppercase keys at one point, so matching is case-insensitive.
func (f File) Read() (ServiceInfo, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return ServiceInfo{}, fmt.Errorf("%w: %s", ErrNotFound, f.Path)
		}
		return ServiceInfo{}, fmt.Errorf("read %s: %w", f.Path, err)
	}

	var url, pidStr string
	var haveURL, havePID bool
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "url":
			url = value
			haveURL = true
		case "pid":
			pidStr = strings.TrimSpace(value)
			havePID = true
		}
	}
	if !haveURL || !havePID {
		return ServiceInfo{}, fmt.Errorf("%w: url/pid entry missing", ErrMalformed)
	}
	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid < 0 {
		return ServiceInfo{}, fmt.Errorf("%w: invalid pid %q", ErrMalformed, pidStr)
	}
	return ServiceInfo{URL: url, PID: pid}, nil
}

// Remove deletes the handshake file. Removing an already-removed file yields
// ErrDeleteFailed; callers log and continue.
func (f File) Remove() error {
	if err := os.Remove(f.Path); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// WaitReady blocks until the handshake file can be read successfully or ctx
// expires. It watches the parent directory with fsnotify and falls back to
// periodic polling, which covers the race where the service writes the file
// between watcher setup and the first event.
func (f File) WaitReady(ctx context.Context) (ServiceInfo, error) {
	if info, err := f.Read(); err == nil {
		return info, nil
	}

	var events chan fsnotify.Event
	w, err := fsnotify.NewWatcher()
	if err == nil {
		defer func() { _ = w.Close() }()
		if werr := w.Add(filepath.Dir(f.Path)); werr == nil {
			events = w.Events
		}
	}

	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			info, rerr := f.Read()
			if rerr == nil {
				return info, nil
			}
			return ServiceInfo{}, rerr
		case ev := <-events:
			if ev.Name != f.Path {
				continue
			}
			if info, rerr := f.Read(); rerr == nil {
				return info, nil
			}
		case <-tick.C:
			if info, rerr := f.Read(); rerr == nil {
				return info, nil
			}
		}
	}
}
