package singleinstance

import (
	"bufio"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Guard ensures only one application instance runs per data directory. The
// first instance listens on a unix domain socket; later instances detect the
// listener, ask it to focus its window, and decline to start. A stale socket
// left by a crashed instance is removed when nobody answers on it.
type Guard struct {
	SocketPath string

	ln net.Listener
}

const focusRequest = "FOCUS"

// Acquire attempts to become the primary instance. It returns true when this
// process owns the instance lock; onFocus is invoked (on a background
// goroutine) each time a secondary launch pings the socket. A nil onFocus is
// a degraded but tolerated state: the ping is logged and dropped.
func (g *Guard) Acquire(onFocus func()) (bool, error) {
	if g.ping() {
		return false, nil
	}
	// Nobody home; clear any stale socket before binding.
	if _, err := os.Stat(g.SocketPath); err == nil {
		_ = os.Remove(g.SocketPath)
	}
	if err := os.MkdirAll(filepath.Dir(g.SocketPath), 0o750); err != nil {
		return false, fmt.Errorf("create socket dir: %w", err)
	}
	ln, err := net.Listen("unix", g.SocketPath)
	if err != nil {
		return false, fmt.Errorf("bind instance socket: %w", err)
	}
	g.ln = ln
	go g.serve(onFocus)
	return true, nil
}

// NotifyExisting asks the primary instance to focus its window. Used by a
// secondary launch after Acquire returned false.
func (g *Guard) NotifyExisting() error {
	conn, err := net.DialTimeout("unix", g.SocketPath, time.Second)
	if err != nil {
		return fmt.Errorf("dial primary instance: %w", err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
	if _, err := fmt.Fprintln(conn, focusRequest); err != nil {
		return fmt.Errorf("notify primary instance: %w", err)
	}
	return nil
}

// Release closes the socket. Safe to call when Acquire never succeeded.
func (g *Guard) Release() {
	if g.ln != nil {
		_ = g.ln.Close()
		g.ln = nil
	}
	_ = os.Remove(g.SocketPath)
}

func (g *Guard) serve(onFocus func()) {
	for {
		conn, err := g.ln.Accept()
		if err != nil {
			return
		}
		go func(c net.Conn) {
			defer func() { _ = c.Close() }()
			_ = c.SetReadDeadline(time.Now().Add(time.Second))
			line, err := bufio.NewReader(c).ReadString('\n')
			if err != nil || strings.TrimSpace(line) != focusRequest {
				return
			}
			if onFocus == nil {
				slog.Warn("second launch detected but no focus handler registered")
				return
			}
			slog.Info("second launch detected, focusing existing window")
			onFocus()
		}(conn)
	}
}

func (g *Guard) ping() bool {
	conn, err := net.DialTimeout("unix", g.SocketPath, 250*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
