package handshake

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service.info")
	cases := []struct {
		name    string
		content string
	}{
		{"url_first", "url=http://127.0.0.1:8721\npid=4242\n"},
		{"pid_first", "pid=4242\nurl=http://127.0.0.1:8721\n"},
		{"uppercase_keys", "URL=http://127.0.0.1:8721\nPID=4242\n"},
		{"extra_lines", "comment=ignored\nurl=http://127.0.0.1:8721\n\npid=4242\nother=x\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			writeFile(t, path, tc.content)
			info, err := File{Path: path}.Read()
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if info.URL != "http://127.0.0.1:8721" {
				t.Fatalf("url mismatch: %q", info.URL)
			}
			if info.PID != 4242 {
				t.Fatalf("pid mismatch: %d", info.PID)
			}
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	f := File{Path: filepath.Join(t.TempDir(), "absent.info")}
	_, err := f.Read()
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReadMalformed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service.info")
	cases := []struct {
		name    string
		content string
	}{
		{"missing_pid", "url=http://127.0.0.1:8721\n"},
		{"missing_url", "pid=4242\n"},
		{"non_numeric_pid", "url=http://127.0.0.1:8721\npid=abc\n"},
		{"negative_pid", "url=http://127.0.0.1:8721\npid=-7\n"},
		{"empty", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			writeFile(t, path, tc.content)
			info, err := File{Path: path}.Read()
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v (info=%+v)", err, info)
			}
			if info != (ServiceInfo{}) {
				t.Fatalf("expected zero ServiceInfo on error, got %+v", info)
			}
		})
	}
}

func TestRemoveIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service.info")
	writeFile(t, path, "url=http://x\npid=1\n")
	f := File{Path: path}
	if err := f.Remove(); err != nil {
		t.Fatalf("first Remove: %v", err)
	}
	err := f.Remove()
	if !errors.Is(err, ErrDeleteFailed) {
		t.Fatalf("expected ErrDeleteFailed on second Remove, got %v", err)
	}
}

func TestWaitReadyDelayedWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service.info")
	f := File{Path: path}

	go func() {
		time.Sleep(150 * time.Millisecond)
		_ = os.WriteFile(path, []byte("url=http://127.0.0.1:9000\npid=77\n"), 0o600)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	info, err := f.WaitReady(ctx)
	if err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	if info.URL != "http://127.0.0.1:9000" || info.PID != 77 {
		t.Fatalf("unexpected info: %+v", info)
	}
}

func TestWaitReadyTimeout(t *testing.T) {
	f := File{Path: filepath.Join(t.TempDir(), "never.info")}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err := f.WaitReady(ctx)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after timeout, got %v", err)
	}
}
